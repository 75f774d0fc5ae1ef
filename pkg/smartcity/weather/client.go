package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/config"
)

const maxBackoff = 30 * time.Second

// HTTPClient interface allows mocking http.Client in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Reading is a flattened snapshot of current conditions and air quality
type Reading struct {
	Timestamp      time.Time `json:"timestamp"`
	Location       string    `json:"location"`
	TemperatureC   float64   `json:"temperature_c"`
	FeelsLikeC     float64   `json:"feels_like_c"`
	Humidity       float64   `json:"humidity"`
	PressureHPa    float64   `json:"pressure_hpa"`
	WindSpeed      float64   `json:"wind_speed"`
	Description    string    `json:"description"`
	Condition      string    `json:"condition"`
	AQI            *int      `json:"aqi,omitempty"`
	AQIDescription string    `json:"aqi_description"`
}

// OpenWeatherMap response structures
type owmCurrentResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Timestamp int64 `json:"dt"`
}

type owmAirResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
	} `json:"list"`
}

// Client fetches current conditions from OpenWeatherMap
type Client struct {
	apiKey     string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	httpClient HTTPClient
}

// ClientOption allows customizing the client
type ClientOption func(*Client)

// WithHTTPClient allows injecting a custom HTTP client
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL points the client at another API root
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new OpenWeatherMap client
func NewClient(cfg config.WeatherConfig, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current fetches weather and air quality for a coordinate. A failed air
// quality lookup leaves AQI unset rather than failing the reading.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Reading, error) {
	var current owmCurrentResponse
	if err := c.getWithRetry(ctx, "weather", lat, lon, &current); err != nil {
		return nil, fmt.Errorf("failed to fetch current weather: %v", err)
	}

	reading := &Reading{
		Timestamp:    time.Unix(current.Timestamp, 0).UTC(),
		Location:     current.Name,
		TemperatureC: KelvinToCelsius(current.Main.Temp),
		FeelsLikeC:   KelvinToCelsius(current.Main.FeelsLike),
		Humidity:     current.Main.Humidity,
		PressureHPa:  current.Main.Pressure,
		WindSpeed:    current.Wind.Speed,
	}
	if len(current.Weather) > 0 {
		reading.Description = current.Weather[0].Description
	}
	reading.Condition = CategorizeCondition(reading.Description)

	var air owmAirResponse
	if err := c.get(ctx, "air_pollution", lat, lon, &air); err != nil {
		klog.V(2).InfoS("Air quality lookup failed, continuing without AQI", "error", err)
	} else if len(air.List) > 0 {
		reading.AQI = ptr.To(air.List[0].Main.AQI)
	}
	reading.AQIDescription = AirQualityDescription(ptr.Deref(reading.AQI, 0))

	klog.V(2).InfoS("Fetched weather reading",
		"location", reading.Location,
		"temperatureC", reading.TemperatureC,
		"condition", reading.Condition,
		"aqi", reading.AQIDescription)
	return reading, nil
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.get(ctx, endpoint, lat, lon, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}
		klog.V(2).InfoS("Weather request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"maxRetries", c.maxRetries,
			"error", err)

		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during backoff: %v", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("all retries failed: %v", lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryDelay * time.Duration(1<<uint(attempt))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (c *Client) get(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	query.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limit exceeded")
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid API key")
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %v", endpoint, err)
	}
	return nil
}
