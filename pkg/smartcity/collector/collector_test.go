package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/config"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/weather"
)

const vehiclesCSV = `Division/ District ,Total,"Motor Cars, Jeeps and Station Wagons",Motor Cycles
Lahore Division,"6,663,603",1200000,n/a
Lahore District,5000000,900000,4000000
Multan,2000000,300000,1700000
`

const accidentsCSV = `YEAR ,PROVINCE,DISTRICT,ACCIDENT/CAUSALITIES,NO OF CASES
2019,Punjab,LAHORE,Accidents,100
2020,Punjab,Lahore,Accidents,unknown
2021,Punjab,Karachi,Accidents,300
`

const healthcareCSV = `Year,Hospitals,Dispensaries,Total Beds
2018,1279,5671,"131,049"
2019,1282,,133707
`

type fakeWeather struct {
	reading *weather.Reading
	err     error
	calls   int
}

func (f *fakeWeather) Current(ctx context.Context, lat, lon float64) (*weather.Reading, error) {
	f.calls++
	return f.reading, f.err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		City: config.CityConfig{
			Latitude:  common.CityLatitude,
			Longitude: common.CityLongitude,
		},
		Sources: config.SourcesConfig{
			DataDir:    dir,
			Vehicles:   "vehicles.csv",
			Accidents:  "accidents.csv",
			Healthcare: "healthcare.csv",
		},
		Validation: config.ValidationConfig{DistrictTerm: "Lahore"},
	}
}

func seedSources(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, dir, "vehicles.csv", vehiclesCSV)
	writeFile(t, dir, "accidents.csv", accidentsCSV)
	writeFile(t, dir, "healthcare.csv", healthcareCSV)
	return dir
}

func TestVehicles(t *testing.T) {
	c := New(testConfig(seedSources(t)))

	ds, err := c.Vehicles()
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Contains(t, ds.Columns, common.ColumnVehicleDistrict, "headers are trimmed")

	first := ds.Rows[0]
	assert.Equal(t, "Lahore Division", first[common.ColumnVehicleDistrict])
	assert.Equal(t, 6663603.0, first[common.ColumnVehicleTotal])
	assert.Equal(t, 0.0, first["Motor Cycles"], "unparseable cells become zero")
	assert.Equal(t, 11663603.0, ds.SumColumn(common.ColumnVehicleTotal))
}

func TestVehiclesMissingDistrictColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vehicles.csv", "Region,Total\nLahore,10\n")

	_, err := New(testConfig(dir)).Vehicles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestAccidentsCSV(t *testing.T) {
	c := New(testConfig(seedSources(t)))

	ds, err := c.Accidents()
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 2019.0, ds.Rows[0][common.ColumnAccidentYear])
	assert.Equal(t, 100.0, ds.Rows[0][common.ColumnAccidentCases])
	assert.Nil(t, ds.Rows[1][common.ColumnAccidentCases], "unparseable counts become nil")
	assert.Equal(t, "Punjab", ds.Rows[1][common.ColumnAccidentProvince])
}

func TestAccidentsWorkbook(t *testing.T) {
	dir := t.TempDir()
	f := excelize.NewFile()
	_, err := f.NewSheet("Accidents")
	require.NoError(t, err)
	rows := [][]any{
		{"YEAR", "PROVINCE", "DISTRICT", "ACCIDENT/CAUSALITIES", "NO OF CASES"},
		{2022, "Punjab", "Lahore", "Accidents", 412},
		{2022, "Punjab", "Faisalabad", "Accidents", 99},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Accidents", cell, &row))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, "accidents.xlsx")))
	require.NoError(t, f.Close())

	cfg := testConfig(dir)
	cfg.Sources.Accidents = "accidents.xlsx"
	cfg.Sources.AccidentsSheet = "Accidents"

	ds, err := New(cfg).Accidents()
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, 2022.0, ds.Rows[0][common.ColumnAccidentYear])
	assert.Equal(t, 412.0, ds.Rows[0][common.ColumnAccidentCases])
}

func TestHealthcare(t *testing.T) {
	ds, err := New(testConfig(seedSources(t))).Healthcare()
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 2018.0, ds.Rows[0][common.ColumnHealthYear])
	assert.Equal(t, 131049.0, ds.Rows[0][common.ColumnHealthBeds])
	assert.Equal(t, 0.0, ds.Rows[1][common.ColumnHealthDispensaries])
}

func TestCollect(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	fw := &fakeWeather{reading: &weather.Reading{Location: "Lahore", TemperatureC: 40}}
	c := New(testConfig(seedSources(t)),
		WithWeather(fw),
		WithClock(clocktesting.NewFakePassiveClock(now)))

	result, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, result.Timestamp)
	assert.Len(t, result.Datasets, 3)
	assert.Equal(t, map[string]bool{
		common.DatasetVehicles:   true,
		common.DatasetAccidents:  true,
		common.DatasetHealthcare: true,
		common.DatasetWeather:    true,
	}, result.Status)
	assert.Equal(t, 1, fw.calls)
	assert.Equal(t, "Lahore", result.Weather.Location)
}

func TestCollectPartialFailure(t *testing.T) {
	dir := seedSources(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "healthcare.csv")))
	fw := &fakeWeather{err: errors.New("rate limit exceeded")}

	result, err := New(testConfig(dir), WithWeather(fw)).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), common.DatasetHealthcare)
	assert.Contains(t, err.Error(), "rate limit exceeded")

	assert.False(t, result.Status[common.DatasetHealthcare])
	assert.False(t, result.Status[common.DatasetWeather])
	assert.True(t, result.Status[common.DatasetVehicles])
	assert.NotContains(t, result.Datasets, common.DatasetHealthcare)
	assert.Nil(t, result.Weather)
}

func TestCollectWithoutWeather(t *testing.T) {
	result, err := New(testConfig(seedSources(t))).Collect(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Status[common.DatasetWeather])
}

func TestCollectUnconfiguredSource(t *testing.T) {
	cfg := testConfig(seedSources(t))
	cfg.Sources.Vehicles = ""

	result, err := New(cfg).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source configured")
	assert.False(t, result.Status[common.DatasetVehicles])
}
