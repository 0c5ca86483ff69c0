package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kadkongta/crowd-insight/pkg/config"
)

// ErrWeatherNotConfigured is returned when no API key is set
var ErrWeatherNotConfigured = errors.New("weather provider not configured")

// Conditions is the pre-normalized ambient snapshot the core consumes.
// Any field may be absent; consumers must tolerate nil.
type Conditions struct {
	Temperature *float64
	Humidity    *float64
	Description string
	PM25        *float64
	Rain1h      float64
}

// WeatherClient fetches current weather and air quality from the provider
type WeatherClient struct {
	apiKey  string
	lat     float64
	lon     float64
	baseURL string
	client  *http.Client
}

// NewWeatherClient creates a weather/air-quality client
func NewWeatherClient(cfg *config.WeatherConfig) *WeatherClient {
	return &WeatherClient{
		apiKey:  cfg.APIKey,
		lat:     cfg.Lat,
		lon:     cfg.Lon,
		baseURL: "https://api.openweathermap.org/data/2.5",
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type weatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

type airQualityResponse struct {
	List []struct {
		Components struct {
			PM25 *float64 `json:"pm2_5"`
		} `json:"components"`
	} `json:"list"`
}

// Current fetches the present conditions. Air quality trouble degrades to a
// snapshot without PM2.5 instead of failing the whole call.
func (c *WeatherClient) Current(ctx context.Context) (*Conditions, error) {
	if c.apiKey == "" {
		return nil, ErrWeatherNotConfigured
	}

	var weather weatherResponse
	url := fmt.Sprintf("%s/weather?lat=%f&lon=%f&units=metric&appid=%s",
		c.baseURL, c.lat, c.lon, c.apiKey)
	if err := c.get(ctx, url, &weather); err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}

	conditions := &Conditions{
		Temperature: weather.Main.Temp,
		Humidity:    weather.Main.Humidity,
		Rain1h:      weather.Rain.OneHour,
	}
	if len(weather.Weather) > 0 {
		conditions.Description = weather.Weather[0].Description
	}

	var air airQualityResponse
	url = fmt.Sprintf("%s/air_pollution?lat=%f&lon=%f&appid=%s",
		c.baseURL, c.lat, c.lon, c.apiKey)
	if err := c.get(ctx, url, &air); err != nil {
		fmt.Printf("[Weather] Air quality unavailable: %v\n", err)
	} else if len(air.List) > 0 {
		conditions.PM25 = air.List[0].Components.PM25
	}

	return conditions, nil
}

func (c *WeatherClient) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
