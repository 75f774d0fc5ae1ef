package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/synthetic"
)

// StampLayout formats the run timestamp embedded in exported file names
const StampLayout = "20060102_150405"

// FileExporter writes pipeline artifacts into one output directory. Every
// timestamped artifact of a run shares the same stamp.
type FileExporter struct {
	dir   string
	stamp string
	mutex sync.Mutex
	files []string
}

// NewFileExporter creates dir if needed and stamps file names with at
func NewFileExporter(dir string, at time.Time) (*FileExporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %v", err)
	}
	return &FileExporter{
		dir:   dir,
		stamp: at.Format(StampLayout),
	}, nil
}

// Dir returns the output directory
func (e *FileExporter) Dir() string {
	return e.dir
}

// Stamp returns the timestamp shared by this exporter's file names
func (e *FileExporter) Stamp() string {
	return e.stamp
}

// Files lists every file written so far, in write order
func (e *FileExporter) Files() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	out := make([]string, len(e.files))
	copy(out, e.files)
	return out
}

// Name builds "<prefix>_<stamp>.<ext>"
func (e *FileExporter) Name(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, e.stamp, ext)
}

// CSV writes ds as <prefix>_<stamp>.csv
func (e *FileExporter) CSV(prefix string, ds *dataset.Dataset) (string, error) {
	if ds == nil {
		return "", fmt.Errorf("no data to export for %s", prefix)
	}
	path := filepath.Join(e.dir, e.Name(prefix, "csv"))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %v", path, err)
	}
	if err := ds.WriteCSV(file); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write %s: %v", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %v", path, err)
	}

	e.track(path)
	klog.V(2).InfoS("Exported dataset", "file", path, "records", ds.Len())
	return path, nil
}

// JSON writes v indented as <prefix>_<stamp>.json
func (e *FileExporter) JSON(prefix string, v any) (string, error) {
	return e.writeJSON(e.Name(prefix, "json"), v)
}

// JSONFile writes v indented under a fixed file name
func (e *FileExporter) JSONFile(filename string, v any) (string, error) {
	return e.writeJSON(filename, v)
}

func (e *FileExporter) writeJSON(filename string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %v", filename, err)
	}
	return e.write(filename, data)
}

// GeoJSON writes emergency requests as a point FeatureCollection in
// <prefix>_<stamp>.geojson
func (e *FileExporter) GeoJSON(prefix string, requests []synthetic.EmergencyRequest) (string, error) {
	data, err := json.Marshal(EmergencyFeatures(requests))
	if err != nil {
		return "", fmt.Errorf("failed to encode emergency features: %v", err)
	}
	return e.write(e.Name(prefix, "geojson"), data)
}

// EmergencyFeatures converts requests into GeoJSON point features keyed by
// request ID
func EmergencyFeatures(requests []synthetic.EmergencyRequest) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(requests))}
	for _, r := range requests {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.RequestID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{r.Longitude, r.Latitude}),
			Properties: map[string]any{
				"timestamp":                  r.Timestamp.Format(dataset.TimestampLayout),
				"service_type":               string(r.ServiceType),
				"priority":                   string(r.Priority),
				"status":                     string(r.Status),
				"district":                   r.District,
				"description":                r.Description,
				"estimated_resolution_hours": r.ResolutionHours,
			},
		})
	}
	return fc
}

func (e *FileExporter) write(filename string, data []byte) (string, error) {
	path := filepath.Join(e.dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %v", path, err)
	}
	e.track(path)
	klog.V(2).InfoS("Exported file", "file", path, "bytes", len(data))
	return path, nil
}

func (e *FileExporter) track(path string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.files = append(e.files, path)
}
