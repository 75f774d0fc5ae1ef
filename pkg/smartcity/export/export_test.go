package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/synthetic"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/validation"
)

var runTime = time.Date(2024, 6, 3, 12, 34, 56, 0, time.UTC)

func generated(t *testing.T) *synthetic.Result {
	t.Helper()
	gen := synthetic.NewSeeded(common.DefaultRandomSeed, clocktesting.NewFakePassiveClock(runTime))
	return gen.GenerateAll(common.DefaultVehicleCount)
}

func TestFileExporterCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	e, err := NewFileExporter(dir, runTime)
	require.NoError(t, err)
	assert.Equal(t, "20240603_123456", e.Stamp())

	ds := dataset.New("Division/ District", "Total")
	ds.AppendValues("Lahore", 6663603.0)
	ds.AppendValues("Lahore Cantt", nil)

	path, err := e.CSV(common.DatasetVehicles, ds)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "traffic_vehicles_20240603_123456.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Division/ District,Total\nLahore,6663603\nLahore Cantt,\n", string(data))

	_, err = e.CSV("missing", nil)
	assert.Error(t, err)
	assert.Equal(t, []string{path}, e.Files())
}

func TestFileExporterJSON(t *testing.T) {
	e, err := NewFileExporter(t.TempDir(), runTime)
	require.NoError(t, err)

	path, err := e.JSON("validation_results", map[string]int{"quality_score": 85})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "validation_results_20240603_123456.json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"quality_score\": 85\n}", string(data))

	summary, err := e.JSONFile("summary.json", struct{}{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.Dir(), "summary.json"), summary)
	assert.Len(t, e.Files(), 2)
}

func TestFileExporterGeoJSON(t *testing.T) {
	requests := generated(t).Emergency
	require.NotEmpty(t, requests)

	e, err := NewFileExporter(t.TempDir(), runTime)
	require.NoError(t, err)
	path, err := e.GeoJSON("synthetic_emergency", requests)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".geojson"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, len(requests))

	first := fc.Features[0]
	assert.Equal(t, requests[0].RequestID, first.ID)
	point, ok := first.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, requests[0].Longitude, point.X())
	assert.Equal(t, requests[0].Latitude, point.Y())
	assert.Equal(t, string(requests[0].ServiceType), first.Properties["service_type"])
}

func TestSQLiteExporter(t *testing.T) {
	result := generated(t)
	e, err := NewSQLiteExporter(filepath.Join(t.TempDir(), "bundle", "run.sqlite"))
	require.NoError(t, err)
	defer e.Close()

	const runID = "run-1"
	require.NoError(t, e.StoreEnergy(runID, result.Energy))
	require.NoError(t, e.StoreEmergency(runID, result.Emergency))

	first := result.Energy[0].Timestamp
	stored, err := e.EnergyRange(runID, first, first.Add(23*time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 24)
	assert.True(t, first.Equal(stored[0].Timestamp))
	assert.InDelta(t, result.Energy[0].TotalConsumptionMW, stored[0].TotalConsumptionMW, 1e-9)

	pkt := time.FixedZone("PKT", 5*60*60)
	local, err := e.EnergyRange(runID, first.In(pkt), first.Add(2*time.Hour).In(pkt))
	require.NoError(t, err)
	assert.Len(t, local, 3, "bounds in any zone select the same readings")

	other, err := e.EnergyRange("other-run", first, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, other)

	counts, err := e.RequestsByService(runID)
	require.NoError(t, err)
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, len(result.Emergency), total)
}

func TestSQLiteExporterDatasetsAndReports(t *testing.T) {
	e, err := NewSQLiteExporter(filepath.Join(t.TempDir(), "run.sqlite"))
	require.NoError(t, err)
	defer e.Close()

	ds := dataset.New("YEAR", "DISTRICT", "NO OF CASES")
	ds.AppendValues(2019.0, "Lahore", 150.0)
	require.NoError(t, e.StoreDataset("run-1", common.DatasetAccidents, ds))

	report, err := validation.New().Validate(validation.KindAccidents, ds)
	require.NoError(t, err)
	require.NoError(t, e.StoreReports("run-1", map[string]*validation.Report{common.DatasetAccidents: report}))
	// replacing a report for the same run and dataset must not fail
	require.NoError(t, e.StoreReports("run-1", map[string]*validation.Report{common.DatasetAccidents: report}))

	var data string
	require.NoError(t, e.db.QueryRow(`SELECT data FROM dataset_rows WHERE dataset = ?`, common.DatasetAccidents).Scan(&data))
	assert.JSONEq(t, `{"YEAR": 2019, "DISTRICT": "Lahore", "NO OF CASES": 150}`, data)

	var score, count int
	require.NoError(t, e.db.QueryRow(`SELECT quality_score, COUNT(*) FROM validation_reports`).Scan(&score, &count))
	assert.Equal(t, report.QualityScore, score)
	assert.Equal(t, 1, count)
}
