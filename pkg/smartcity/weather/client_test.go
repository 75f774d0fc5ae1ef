package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/config"
)

const currentBody = `{
  "name": "Lahore",
  "dt": 1717416000,
  "main": {"temp": 313.15, "feels_like": 315.65, "humidity": 20, "pressure": 1002},
  "weather": [{"main": "Haze", "description": "haze"}],
  "wind": {"speed": 3.6}
}`

func testConfig() config.WeatherConfig {
	return config.WeatherConfig{
		Enabled:    true,
		APIKey:     "test-key",
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

func TestCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "31.5497", r.URL.Query().Get("lat"))
		switch r.URL.Path {
		case "/weather":
			w.Write([]byte(currentBody))
		case "/air_pollution":
			w.Write([]byte(`{"list": [{"main": {"aqi": 4}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(), WithBaseURL(server.URL))
	reading, err := client.Current(context.Background(), common.CityLatitude, common.CityLongitude)
	require.NoError(t, err)

	assert.Equal(t, "Lahore", reading.Location)
	assert.Equal(t, 40.0, reading.TemperatureC)
	assert.Equal(t, 42.5, reading.FeelsLikeC)
	assert.Equal(t, "haze", reading.Description)
	assert.Equal(t, ConditionMisty, reading.Condition)
	require.NotNil(t, reading.AQI)
	assert.Equal(t, 4, *reading.AQI)
	assert.Equal(t, "Poor", reading.AQIDescription)
	assert.Equal(t, time.Unix(1717416000, 0).UTC(), reading.Timestamp)
}

func TestCurrentWithoutAirQuality(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/weather" {
			w.Write([]byte(currentBody))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	reading, err := NewClient(testConfig(), WithBaseURL(server.URL)).
		Current(context.Background(), common.CityLatitude, common.CityLongitude)
	require.NoError(t, err)
	assert.Nil(t, reading.AQI)
	assert.Equal(t, "Unknown", reading.AQIDescription)
}

func TestCurrentRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/weather" && calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/weather" {
			w.Write([]byte(currentBody))
			return
		}
		w.Write([]byte(`{"list": []}`))
	}))
	defer server.Close()

	reading, err := NewClient(testConfig(), WithBaseURL(server.URL)).
		Current(context.Background(), common.CityLatitude, common.CityLongitude)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Nil(t, reading.AQI, "empty air quality list leaves AQI unset")
}

func TestCurrentFailures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expectError string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, expectError: "invalid API key"},
		{name: "rate limited", status: http.StatusTooManyRequests, expectError: "rate limit exceeded"},
		{name: "bad json", status: http.StatusOK, body: "{", expectError: "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			cfg := testConfig()
			cfg.MaxRetries = 0
			_, err := NewClient(cfg, WithBaseURL(server.URL)).Current(context.Background(), 0, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestCurrentContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RetryDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(cfg, WithBaseURL(server.URL)).Current(ctx, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestBackoffIsCapped(t *testing.T) {
	c := NewClient(config.WeatherConfig{RetryDelay: time.Second})
	assert.Equal(t, time.Second, c.backoff(0))
	assert.Equal(t, 4*time.Second, c.backoff(2))
	assert.Equal(t, maxBackoff, c.backoff(10))
}
