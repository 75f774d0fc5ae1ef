package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CITY_CONFIG_PATH", "")
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("DATA_DIR", dir)
	t.Setenv("ENERGY_WINDOW_DAYS", "1")
	t.Setenv("EMERGENCY_WINDOW_DAYS", "1")
	t.Setenv("WEATHER_ENABLED", "false")
	t.Setenv("QUALITY_THRESHOLD", "50")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "generate", "--vehicles", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 25 energy readings")

	for _, pattern := range []string{"synthetic_energy_*.csv", "synthetic_emergency_*.csv", "synthetic_emergency_*.geojson"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		require.NoError(t, err)
		assert.Len(t, matches, 1, pattern)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "accidents.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"YEAR ,PROVINCE,DISTRICT,ACCIDENT/CAUSALITIES,NO OF CASES\n2019,Punjab,Lahore,Accidents,150\n"), 0644))

	out, err := execute(t, "validate", "traffic_accidents="+path)
	require.NoError(t, err)

	var overall struct {
		OverallQuality float64 `json:"overall_quality"`
		Datasets       map[string]struct {
			QualityScore int `json:"quality_score"`
		} `json:"dataset_validations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &overall))
	assert.Equal(t, 100.0, overall.OverallQuality)
	assert.Equal(t, 100, overall.Datasets["traffic_accidents"].QualityScore)
}

func TestValidateCommandBelowThreshold(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("QUALITY_THRESHOLD", "80")
	path := filepath.Join(dir, "vehicles.csv")
	require.NoError(t, os.WriteFile(path, []byte("Division/ District,Total\nMultan,10\n"), 0644))

	_, err := execute(t, "validate", "vehicles="+path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below threshold")
}

func TestValidateCommandBadArguments(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "validate", "no-separator")
	assert.Error(t, err)

	_, err = execute(t, "validate", "traffic=whatever.csv")
	assert.Error(t, err)
}

func TestRunCommandWithoutSources(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("METRICS_PORT", "0")

	out, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Datasets: 0 real, 2 synthetic")
	assert.FileExists(t, filepath.Join(dir, "summary.json"))
	assert.FileExists(t, filepath.Join(dir, "metrics.prom"))
}

func TestInspectCommand(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("EXPORT_SQLITE", "true")

	out, err := execute(t, "run")
	require.NoError(t, err)
	var runID string
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) == 3 && fields[0] == "Pipeline" && fields[2] == "completed" {
			runID = fields[1]
		}
	}
	require.NotEmpty(t, runID)

	bundles, err := filepath.Glob(filepath.Join(dir, "*.sqlite"))
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	out, err = execute(t, "inspect", bundles[0], runID)
	require.NoError(t, err)
	assert.Contains(t, out, "Requests by service:")
	assert.Contains(t, out, "Energy readings: 25")
	assert.Contains(t, out, "Peak load:")

	out, err = execute(t, "inspect", bundles[0], "unknown-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Energy readings: 0")

	_, err = execute(t, "inspect", bundles[0], runID, "--from", "yesterday")
	assert.Error(t, err)

	_, err = execute(t, "inspect", filepath.Join(dir, "missing.sqlite"), runID)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "missing.sqlite"))
}
