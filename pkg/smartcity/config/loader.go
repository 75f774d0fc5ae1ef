package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/synthetic"
)

// ConfigPathEnv names the optional YAML file overlaid on the environment
const ConfigPathEnv = "CITY_CONFIG_PATH"

// Default source file names as published by the Punjab open data portal
const (
	DefaultVehiclesFile   = "motor-vehicles-registered-by-type-division-and-district-the-punjab-uptil-2021.csv"
	DefaultAccidentsFile  = "accidents-district-wise-punjab.xlsx"
	DefaultHealthcareFile = "number-of-hospitals-dispensaries-maternity-rural-health-centre-and-number-of-beds-in-pakistan-2.csv"
)

// LoadFromEnv loads configuration from environment variables, then overlays
// the YAML file named by CITY_CONFIG_PATH when set
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

// Load builds the environment configuration and overlays the YAML file at
// path. An empty path skips the overlay.
func Load(path string) (*Config, error) {
	cfg := fromEnv()

	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	klog.V(2).InfoS("Loaded configuration",
		"city", cfg.City.Name,
		"dataDir", cfg.Sources.DataDir,
		"randomSeed", cfg.Synthetic.RandomSeed,
		"weatherEnabled", cfg.Weather.Enabled,
		"outputDir", cfg.Output.Dir,
		"configFile", path)

	return cfg, nil
}

func fromEnv() *Config {
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	return &Config{
		City: CityConfig{
			Name:               getEnvOrDefault("CITY_NAME", common.CityName),
			Country:            getEnvOrDefault("CITY_COUNTRY", common.Country),
			Timezone:           getEnvOrDefault("CITY_TIMEZONE", common.Timezone),
			Latitude:           getFloatOrDefault("CITY_LATITUDE", common.CityLatitude),
			Longitude:          getFloatOrDefault("CITY_LONGITUDE", common.CityLongitude),
			Bounds:             common.DefaultBounds(),
			PopulationEstimate: getIntOrDefault("CITY_POPULATION", common.PopulationEstimate),
		},
		Sources: SourcesConfig{
			DataDir:        getEnvOrDefault("DATA_DIR", filepath.Join("data", "processed")),
			Vehicles:       getEnvOrDefault("VEHICLES_SOURCE", DefaultVehiclesFile),
			Accidents:      getEnvOrDefault("ACCIDENTS_SOURCE", DefaultAccidentsFile),
			AccidentsSheet: os.Getenv("ACCIDENTS_SHEET"),
			Healthcare:     getEnvOrDefault("HEALTHCARE_SOURCE", DefaultHealthcareFile),
		},
		Synthetic: SyntheticConfig{
			RandomSeed:          getUintOrDefault("RANDOM_SEED", common.DefaultRandomSeed),
			EnergyWindowDays:    getIntOrDefault("ENERGY_WINDOW_DAYS", synthetic.DefaultEnergyWindowDays),
			EmergencyWindowDays: getIntOrDefault("EMERGENCY_WINDOW_DAYS", synthetic.DefaultEmergencyWindowDays),
			VehicleCount:        getIntOrDefault("VEHICLE_COUNT", 0),
		},
		Validation: ValidationConfig{
			CompletenessThreshold: getFloatOrDefault("COMPLETENESS_THRESHOLD", 0.95),
			QualityThreshold:      getFloatOrDefault("QUALITY_THRESHOLD", 80),
			MinYear:               getIntOrDefault("MIN_YEAR", 2000),
			DistrictTerm:          getEnvOrDefault("DISTRICT_TERM", common.CityName),
		},
		Weather: WeatherConfig{
			Enabled:    getBoolOrDefault("WEATHER_ENABLED", apiKey != ""),
			APIKey:     apiKey,
			BaseURL:    getEnvOrDefault("OPENWEATHER_API_URL", "https://api.openweathermap.org/data/2.5"),
			Timeout:    getDurationOrDefault("WEATHER_TIMEOUT", 10*time.Second),
			MaxRetries: getIntOrDefault("WEATHER_MAX_RETRIES", 3),
			RetryDelay: getDurationOrDefault("WEATHER_RETRY_DELAY", 1*time.Second),
			CacheTTL:   getDurationOrDefault("WEATHER_CACHE_TTL", 10*time.Minute),
		},
		Output: OutputConfig{
			Dir:         getEnvOrDefault("OUTPUT_DIR", filepath.Join("data", "processed")),
			SQLite:      getBoolOrDefault("EXPORT_SQLITE", false),
			GeoJSON:     getBoolOrDefault("EXPORT_GEOJSON", true),
			SummaryFile: getEnvOrDefault("SUMMARY_FILE", "summary.json"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:  getBoolOrDefault("METRICS_ENABLED", true),
			MetricsPort:     getIntOrDefault("METRICS_PORT", 0),
			MetricsTextfile: getEnvOrDefault("METRICS_TEXTFILE", "metrics.prom"),
		},
	}
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return nil
}

// SourcePath resolves a source file name against the data directory.
// Absolute names are returned unchanged.
func (s SourcesConfig) SourcePath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getUintOrDefault(key string, defaultValue uint64) uint64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseUint(strValue, 10, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid unsigned value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		value, err := strconv.ParseBool(strValue)
		if err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid boolean value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}
