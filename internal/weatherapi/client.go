package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dlindgren/weather-forecast-service/internal/models"
	"github.com/dlindgren/weather-forecast-service/internal/observability"
)

// ErrFetchFailed marks any weather fetch failure: transport errors, non-2xx
// responses, or a current-conditions response without its mandatory fields.
var ErrFetchFailed = errors.New("weather fetch failed")

const (
	defaultCurrentURL  = "https://api.openweathermap.org/data/2.5/weather"
	defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
)

// Client fetches current conditions and the 5-day outlook from
// OpenWeatherMap in imperial units. Exactly one attempt per upstream call,
// no retries, no caching.
type Client struct {
	apiKey      string
	currentURL  string
	forecastURL string
	client      *http.Client
}

// New returns a weather Client. An empty apiKey is allowed: the provider
// rejects the call and that failure surfaces per request rather than at
// construction.
func New(apiKey, currentURL, forecastURL string, timeout time.Duration) *Client {
	if currentURL == "" {
		currentURL = defaultCurrentURL
	}
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	return &Client{
		apiKey:      apiKey,
		currentURL:  currentURL,
		forecastURL: forecastURL,
		client:      &http.Client{Timeout: timeout},
	}
}

type weatherElement struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type currentMain struct {
	Temp     float64 `json:"temp"`
	TempMax  float64 `json:"temp_max"`
	TempMin  float64 `json:"temp_min"`
	Humidity *int    `json:"humidity"`
}

type currentResponse struct {
	Main    *currentMain     `json:"main"`
	Weather []weatherElement `json:"weather"`
	Wind    struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

type forecastSample struct {
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []weatherElement `json:"weather"`
}

type forecastResponse struct {
	List []forecastSample `json:"list"`
}

// Forecast fetches current conditions and the extended outlook for the
// coordinates. Humidity and wind speed are optional and stay nil when the
// provider omits them; a missing temperature block or current-conditions
// element fails the call.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (models.Report, error) {
	var current currentResponse
	if err := c.fetch(ctx, "current", c.currentURL, lat, lon, &current); err != nil {
		return models.Report{}, err
	}
	if current.Main == nil {
		return models.Report{}, fmt.Errorf("%w: response missing temperature data", ErrFetchFailed)
	}
	if len(current.Weather) == 0 {
		return models.Report{}, fmt.Errorf("%w: response missing current conditions", ErrFetchFailed)
	}

	var extended forecastResponse
	if err := c.fetch(ctx, "forecast", c.forecastURL, lat, lon, &extended); err != nil {
		return models.Report{}, err
	}

	return models.Report{
		CurrentTemp: round(current.Main.Temp),
		HighTemp:    round(current.Main.TempMax),
		LowTemp:     round(current.Main.TempMin),
		Description: capitalize(current.Weather[0].Description),
		Humidity:    current.Main.Humidity,
		WindSpeed:   current.Wind.Speed,
		Extended:    aggregateDaily(extended.List),
	}, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, rawURL string, lat, lon float64, out interface{}) error {
	start := time.Now()
	err := c.call(ctx, rawURL, lat, lon, out)
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(duration)
	return err
}

func (c *Client) call(ctx context.Context, rawURL string, lat, lon float64, out interface{}) error {
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid API URL: %v", ErrFetchFailed, err)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "imperial")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, transportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d %s", ErrFetchFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", ErrFetchFailed, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrFetchFailed, err)
	}
	return nil
}

func round(v float64) int {
	return int(math.Round(v))
}

// transportErr unwraps *url.Error so the request URL, which carries the API
// key in its query string, never appears in error text.
func transportErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
