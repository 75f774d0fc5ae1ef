package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // city time zones must resolve on hosts without zoneinfo

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
)

// Config holds all configuration for the city pipeline
type Config struct {
	City          CityConfig          `yaml:"city"`
	Sources       SourcesConfig       `yaml:"sources"`
	Synthetic     SyntheticConfig     `yaml:"synthetic"`
	Validation    ValidationConfig    `yaml:"validation"`
	Weather       WeatherConfig       `yaml:"weather"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CityConfig describes the city the pipeline is scoped to
type CityConfig struct {
	Name               string        `yaml:"name"`
	Country            string        `yaml:"country"`
	Timezone           string        `yaml:"timezone"`
	Latitude           float64       `yaml:"latitude"`
	Longitude          float64       `yaml:"longitude"`
	Bounds             common.Bounds `yaml:"bounds"`
	PopulationEstimate int           `yaml:"populationEstimate"`
}

// SourcesConfig locates the government datasets on disk
type SourcesConfig struct {
	DataDir        string `yaml:"dataDir"`
	Vehicles       string `yaml:"vehicles"`
	Accidents      string `yaml:"accidents"`
	AccidentsSheet string `yaml:"accidentsSheet"` // empty selects the first sheet
	Healthcare     string `yaml:"healthcare"`
}

// SyntheticConfig controls data generation
type SyntheticConfig struct {
	RandomSeed          uint64 `yaml:"randomSeed"`
	EnergyWindowDays    int    `yaml:"energyWindowDays"`
	EmergencyWindowDays int    `yaml:"emergencyWindowDays"`
	VehicleCount        int    `yaml:"vehicleCount"` // 0 derives the count from collected registrations
}

// ValidationConfig holds quality thresholds
type ValidationConfig struct {
	CompletenessThreshold float64 `yaml:"completenessThreshold"` // Share of non-null cells, 0-1
	QualityThreshold      float64 `yaml:"qualityThreshold"`      // Minimum acceptable overall score
	MinYear               int     `yaml:"minYear"`
	DistrictTerm          string  `yaml:"districtTerm"`
}

// WeatherConfig holds OpenWeatherMap settings
type WeatherConfig struct {
	Enabled    bool          `yaml:"enabled"`
	APIKey     string        `yaml:"apiKey"`
	BaseURL    string        `yaml:"baseUrl"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
	CacheTTL   time.Duration `yaml:"cacheTTL"`
}

// OutputConfig controls exported artifacts
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	SQLite      bool   `yaml:"sqlite"`
	GeoJSON     bool   `yaml:"geojson"`
	SummaryFile string `yaml:"summaryFile"`
}

// ObservabilityConfig holds configuration for monitoring
type ObservabilityConfig struct {
	MetricsEnabled  bool   `yaml:"metricsEnabled"`
	MetricsPort     int    `yaml:"metricsPort"` // 0 disables the HTTP listener
	MetricsTextfile string `yaml:"metricsTextfile"`
}

// Location loads the city time zone
func (c CityConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.City.Name == "" {
		return fmt.Errorf("city name is required")
	}
	if _, err := c.City.Location(); err != nil {
		return fmt.Errorf("invalid city timezone %q: %v", c.City.Timezone, err)
	}
	if err := c.City.Bounds.Validate(); err != nil {
		return fmt.Errorf("invalid city bounds: %v", err)
	}
	if !c.City.Bounds.Contains(c.City.Latitude, c.City.Longitude) {
		return fmt.Errorf("city centre (%v, %v) lies outside the city bounds", c.City.Latitude, c.City.Longitude)
	}

	if c.Synthetic.EnergyWindowDays <= 0 {
		return fmt.Errorf("energy window must be positive")
	}
	if c.Synthetic.EmergencyWindowDays <= 0 {
		return fmt.Errorf("emergency window must be positive")
	}
	if c.Synthetic.VehicleCount < 0 {
		return fmt.Errorf("vehicle count cannot be negative")
	}

	if c.Validation.CompletenessThreshold <= 0 || c.Validation.CompletenessThreshold > 1 {
		return fmt.Errorf("completeness threshold must be in (0, 1]")
	}
	if c.Validation.QualityThreshold < 0 || c.Validation.QualityThreshold > 100 {
		return fmt.Errorf("quality threshold must be between 0 and 100")
	}
	if c.Validation.DistrictTerm == "" {
		return fmt.Errorf("district filter term is required")
	}

	if c.Weather.Enabled {
		if c.Weather.APIKey == "" {
			return fmt.Errorf("OpenWeatherMap API key is required when weather is enabled")
		}
		if c.Weather.Timeout <= 0 {
			return fmt.Errorf("weather timeout must be positive")
		}
		if c.Weather.MaxRetries < 0 {
			return fmt.Errorf("weather retries cannot be negative")
		}
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}
	if p := c.Observability.MetricsPort; p < 0 || p > 65535 {
		return fmt.Errorf("invalid metrics port %d", p)
	}

	return nil
}
