package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/collector"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/config"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/export"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/metrics"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/synthetic"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/validation"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/weather"
)

// Step names used for logging and the step duration histogram
const (
	StepCollect  = "collect"
	StepGenerate = "generate"
	StepValidate = "validate"
	StepExport   = "export"
)

// Export keys for artifacts that are not datasets
const (
	exportWeather    = "weather"
	exportValidation = "validation"
	exportGeoJSON    = "synthetic_emergency_geojson"
	exportSQLite     = "sqlite"
)

const syntheticPrefix = "synthetic_"

// Collector gathers the real datasets
type Collector interface {
	Collect(ctx context.Context) (*collector.Result, error)
}

// Pipeline runs collection, generation, validation and export for one city
type Pipeline struct {
	cfg       *config.Config
	collector Collector
	validator *validation.Validator
	recorder  *metrics.Recorder
	clock     clock.PassiveClock
	location  *time.Location
	runID     string
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithCollector replaces the collector built from configuration
func WithCollector(c Collector) Option {
	return func(p *Pipeline) {
		p.collector = c
	}
}

// WithClock sets the clock used for timestamps, durations and generation
func WithClock(clk clock.PassiveClock) Option {
	return func(p *Pipeline) {
		p.clock = clk
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithRunID fixes the run identifier instead of generating one
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// New builds a pipeline from cfg
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	loc, err := cfg.City.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid city timezone: %v", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		clock:    clock.RealClock{},
		location: loc,
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.collector == nil {
		p.collector = NewCollector(cfg, p.clock)
	}
	if p.recorder == nil {
		p.recorder = metrics.NewRecorder()
	}
	p.validator = validation.New(
		validation.WithClock(p.clock),
		validation.WithDistrictTerm(cfg.Validation.DistrictTerm),
		validation.WithBounds(cfg.City.Bounds),
		validation.WithMinYear(cfg.Validation.MinYear),
	)
	return p, nil
}

// NewCollector builds the source collector for cfg. When weather is enabled
// readings go through a cache so repeated runs within the TTL reuse them.
func NewCollector(cfg *config.Config, clk clock.PassiveClock) *collector.Collector {
	opts := []collector.Option{collector.WithClock(clk)}
	if cfg.Weather.Enabled {
		cache := weather.NewCache(cfg.Weather.CacheTTL, 0, clk)
		opts = append(opts, collector.WithWeather(weather.NewCachedFetcher(weather.NewClient(cfg.Weather), cache)))
	}
	return collector.New(cfg, opts...)
}

// RunID identifies this pipeline's run in logs and exports
func (p *Pipeline) RunID() string {
	return p.runID
}

// Recorder returns the metrics recorder
func (p *Pipeline) Recorder() *metrics.Recorder {
	return p.recorder
}

// Results is the outcome of a complete run
type Results struct {
	RunID        string            `json:"run_id"`
	Summary      *Summary          `json:"summary"`
	Collected    []string          `json:"collected_datasets"`
	Synthetic    []string          `json:"synthetic_datasets"`
	QualityScore float64           `json:"quality_score"`
	ExportFiles  map[string]string `json:"export_files"`
	Success      bool              `json:"pipeline_success"`
}

// run carries the state of one Run call between steps
type run struct {
	start     time.Time
	collected *collector.Result
	synthetic *synthetic.Result
	overall   *validation.Overall
	exports   map[string]string
}

// Run executes every step and writes the summary file. Source failures are
// logged and recorded in the collection status; only export errors fail the run.
func (p *Pipeline) Run(ctx context.Context) (*Results, error) {
	r := &run{start: p.clock.Now()}
	klog.InfoS("Starting pipeline", "runID", p.runID, "city", p.cfg.City.Name)

	p.timed(StepCollect, func() {
		r.collected = p.Collect(ctx)
	})
	p.timed(StepGenerate, func() {
		r.synthetic = p.Generate(p.VehicleCount(r.collected.Datasets[common.DatasetVehicles]))
	})
	p.timed(StepValidate, func() {
		r.overall = p.Validate(r.collected, r.synthetic)
	})

	exporter, err := export.NewFileExporter(p.cfg.Output.Dir, r.start.In(p.location))
	if err != nil {
		return nil, err
	}
	p.timed(StepExport, func() {
		r.exports, err = p.Export(exporter, r.collected, r.synthetic, r.overall)
	})
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	summary := p.summarize(r)
	results := &Results{
		RunID:        p.runID,
		Summary:      summary,
		Collected:    sortedKeys(r.collected.Datasets),
		Synthetic:    []string{common.DatasetEnergy, common.DatasetEmergency},
		QualityScore: r.overall.OverallQuality,
		ExportFiles:  r.exports,
		Success:      true,
	}

	if p.cfg.Output.SummaryFile != "" {
		if _, err := exporter.JSONFile(p.cfg.Output.SummaryFile, results); err != nil {
			return nil, err
		}
	}
	p.recorder.MarkFinished(summary.Execution.EndTime)
	if p.cfg.Observability.MetricsEnabled && p.cfg.Observability.MetricsTextfile != "" {
		if err := p.recorder.WriteTextfile(p.outputPath(p.cfg.Observability.MetricsTextfile)); err != nil {
			klog.ErrorS(err, "Failed to write metrics textfile")
		}
	}

	klog.InfoS("Pipeline completed",
		"runID", p.runID,
		"qualityScore", results.QualityScore,
		"status", summary.DataQuality.QualityStatus,
		"exportFiles", len(results.ExportFiles),
		"durationMinutes", summary.Execution.DurationMinutes)
	return results, nil
}

// Collect gathers the real datasets. Failures of individual sources are
// logged; the partial result is always returned.
func (p *Pipeline) Collect(ctx context.Context) *collector.Result {
	result, err := p.collector.Collect(ctx)
	if err != nil {
		klog.ErrorS(err, "Some sources could not be collected", "runID", p.runID)
	}
	if result == nil {
		result = &collector.Result{
			Datasets:  map[string]*dataset.Dataset{},
			Status:    map[string]bool{},
			Timestamp: p.clock.Now(),
		}
	}

	p.recorder.SetSources(result.Status)
	for name, ds := range result.Datasets {
		p.recorder.AddRecords(name, "collected", ds.Len())
	}
	return result
}

// VehicleCount picks the registered vehicle count that scales the synthetic
// series: the configured override, else the collected Total sum, else the
// city default.
func (p *Pipeline) VehicleCount(vehicles *dataset.Dataset) int {
	if p.cfg.Synthetic.VehicleCount > 0 {
		return p.cfg.Synthetic.VehicleCount
	}
	if vehicles != nil && vehicles.HasColumn(common.ColumnVehicleTotal) {
		if total := int(vehicles.SumColumn(common.ColumnVehicleTotal)); total > 0 {
			return total
		}
	}
	return common.DefaultVehicleCount
}

// Generate builds the synthetic energy and emergency series
func (p *Pipeline) Generate(vehicleCount int) *synthetic.Result {
	gen := synthetic.NewSeeded(p.cfg.Synthetic.RandomSeed, p.clock,
		synthetic.WithLocation(p.location),
		synthetic.WithPopulation(p.cfg.City.PopulationEstimate),
		synthetic.WithWindows(p.cfg.Synthetic.EnergyWindowDays, p.cfg.Synthetic.EmergencyWindowDays),
	)
	result := gen.GenerateAll(vehicleCount)

	p.recorder.AddRecords(common.DatasetEnergy, "synthetic", len(result.Energy))
	p.recorder.AddRecords(common.DatasetEmergency, "synthetic", len(result.Emergency))
	return result
}

// Validate scores the collected and synthetic datasets together
func (p *Pipeline) Validate(collected *collector.Result, generated *synthetic.Result) *validation.Overall {
	all := make(map[string]*dataset.Dataset, len(collected.Datasets)+2)
	for name, ds := range collected.Datasets {
		all[name] = ds
	}
	all[common.DatasetEnergy] = synthetic.EnergyDataset(generated.Energy)
	all[common.DatasetEmergency] = synthetic.EmergencyDataset(generated.Emergency)

	overall := p.validator.ValidateAll(all)
	p.recorder.RecordValidation(overall)
	if overall.OverallQuality < p.cfg.Validation.QualityThreshold {
		klog.InfoS("Overall quality below threshold",
			"overallQuality", overall.OverallQuality,
			"threshold", p.cfg.Validation.QualityThreshold)
	}
	return overall
}

// Export writes every artifact of the run and returns their paths keyed by
// artifact name
func (p *Pipeline) Export(e *export.FileExporter, collected *collector.Result, generated *synthetic.Result, overall *validation.Overall) (map[string]string, error) {
	paths := make(map[string]string)

	for _, name := range sortedKeys(collected.Datasets) {
		path, err := e.CSV(name, collected.Datasets[name])
		if err != nil {
			return nil, err
		}
		paths[name] = path
	}

	syntheticSets := map[string]*dataset.Dataset{
		common.DatasetEnergy:    synthetic.EnergyDataset(generated.Energy),
		common.DatasetEmergency: synthetic.EmergencyDataset(generated.Emergency),
	}
	for _, name := range sortedKeys(syntheticSets) {
		path, err := e.CSV(syntheticPrefix+name, syntheticSets[name])
		if err != nil {
			return nil, err
		}
		paths[syntheticPrefix+name] = path
	}

	if p.cfg.Output.GeoJSON {
		path, err := e.GeoJSON(syntheticPrefix+common.DatasetEmergency, generated.Emergency)
		if err != nil {
			return nil, err
		}
		paths[exportGeoJSON] = path
	}

	if collected.Weather != nil {
		path, err := e.JSON("weather_data", collected.Weather)
		if err != nil {
			return nil, err
		}
		paths[exportWeather] = path
	}

	path, err := e.JSON("validation_results", overall)
	if err != nil {
		return nil, err
	}
	paths[exportValidation] = path

	if p.cfg.Output.SQLite {
		path, err := p.exportSQLite(filepath.Join(e.Dir(), e.Stamp()+".sqlite"), collected, generated, overall)
		if err != nil {
			return nil, err
		}
		paths[exportSQLite] = path
	}

	klog.V(2).InfoS("Exported run artifacts", "runID", p.runID, "files", len(paths), "dir", e.Dir())
	return paths, nil
}

func (p *Pipeline) exportSQLite(path string, collected *collector.Result, generated *synthetic.Result, overall *validation.Overall) (string, error) {
	bundle, err := export.NewSQLiteExporter(path)
	if err != nil {
		return "", err
	}
	defer bundle.Close()

	if err := bundle.StoreEnergy(p.runID, generated.Energy); err != nil {
		return "", err
	}
	if err := bundle.StoreEmergency(p.runID, generated.Emergency); err != nil {
		return "", err
	}
	for _, name := range sortedKeys(collected.Datasets) {
		if err := bundle.StoreDataset(p.runID, name, collected.Datasets[name]); err != nil {
			return "", err
		}
	}
	if err := bundle.StoreReports(p.runID, overall.Datasets); err != nil {
		return "", err
	}
	return bundle.Path(), nil
}

func (p *Pipeline) timed(step string, fn func()) {
	start := p.clock.Now()
	fn()
	elapsed := p.clock.Since(start)
	p.recorder.ObserveStep(step, elapsed)
	klog.V(2).InfoS("Pipeline step finished", "runID", p.runID, "step", step, "elapsed", elapsed)
}

func (p *Pipeline) outputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.cfg.Output.Dir, name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
