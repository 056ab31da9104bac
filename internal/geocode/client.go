package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dlindgren/weather-forecast-service/internal/models"
	"github.com/dlindgren/weather-forecast-service/internal/observability"
)

// ErrGeocodeFailed marks any geocoding failure: transport errors, a non-OK
// provider status, or a result without geometry.
var ErrGeocodeFailed = errors.New("geocoding failed")

const defaultAPIURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client resolves free-text addresses via the Google Maps Geocoding API.
// Exactly one attempt per call, no retries, no caching.
type Client struct {
	apiKey string
	apiURL string
	client *http.Client
}

// New returns a geocoding Client. An empty apiKey is allowed: the provider
// rejects the call and that failure surfaces per request rather than at
// construction.
func New(apiKey, apiURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type geocodeResult struct {
	Geometry struct {
		Location *struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	AddressComponents []addressComponent `json:"address_components"`
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

// Geocode resolves address to coordinates plus postal components. Postal
// code, city, and state are optional in the provider's component list and
// come back empty when missing; a non-OK status or absent geometry fails the
// whole call with the provider's reason attached.
func (c *Client) Geocode(ctx context.Context, address string) (models.Location, error) {
	start := time.Now()
	loc, err := c.call(ctx, address)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.GeocodeCallsTotal.WithLabelValues("error").Inc()
		observability.GeocodeDuration.WithLabelValues("error").Observe(duration)
		return models.Location{}, err
	}
	observability.GeocodeCallsTotal.WithLabelValues("success").Inc()
	observability.GeocodeDuration.WithLabelValues("success").Observe(duration)
	return loc, nil
}

func (c *Client) call(ctx context.Context, address string) (models.Location, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: invalid API URL: %v", ErrGeocodeFailed, err)
	}
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: create request: %v", ErrGeocodeFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %v", ErrGeocodeFailed, transportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Location{}, fmt.Errorf("%w: HTTP %d %s", ErrGeocodeFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: read response body: %v", ErrGeocodeFailed, err)
	}

	var apiResp geocodeResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Location{}, fmt.Errorf("%w: parse response: %v", ErrGeocodeFailed, err)
	}

	if apiResp.Status != "OK" {
		if apiResp.ErrorMessage != "" {
			return models.Location{}, fmt.Errorf("%w: %s - %s", ErrGeocodeFailed, apiResp.Status, apiResp.ErrorMessage)
		}
		return models.Location{}, fmt.Errorf("%w: %s", ErrGeocodeFailed, apiResp.Status)
	}
	if len(apiResp.Results) == 0 || apiResp.Results[0].Geometry.Location == nil {
		return models.Location{}, fmt.Errorf("%w: result has no geometry", ErrGeocodeFailed)
	}

	result := apiResp.Results[0]
	return models.Location{
		Latitude:  result.Geometry.Location.Lat,
		Longitude: result.Geometry.Location.Lng,
		ZipCode:   componentByType(result.AddressComponents, "postal_code"),
		City:      componentByType(result.AddressComponents, "locality"),
		State:     componentByType(result.AddressComponents, "administrative_area_level_1"),
	}, nil
}

// componentByType returns the long name of the first component carrying the
// wanted type, or "" when no component has it.
func componentByType(components []addressComponent, want string) string {
	for _, comp := range components {
		for _, t := range comp.Types {
			if t == want {
				return comp.LongName
			}
		}
	}
	return ""
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
