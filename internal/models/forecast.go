package models

import "time"

// Location is a geocoded address: coordinates plus the postal components
// extracted from the provider's address breakdown. ZipCode, City, and State
// may be empty when the provider omits them.
type Location struct {
	Latitude  float64
	Longitude float64
	ZipCode   string
	City      string
	State     string
}

// DailyForecast is one aggregated day of the extended forecast.
type DailyForecast struct {
	Date        string `json:"date"`
	HighTemp    int    `json:"high_temp"`
	LowTemp     int    `json:"low_temp"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// Report is the weather provider's answer for one coordinate pair: current
// conditions plus the aggregated 5-day outlook. Humidity and WindSpeed are
// nil when the provider omits them.
type Report struct {
	CurrentTemp int
	HighTemp    int
	LowTemp     int
	Description string
	Humidity    *int
	WindSpeed   *float64
	Extended    []DailyForecast
}

// ForecastPayload is the assembled response for one address lookup. This is
// the value the cache stores and the forecast endpoint returns. Humidity and
// WindSpeed carry "N/A" when the provider omitted them.
type ForecastPayload struct {
	Location    string          `json:"location"`
	CurrentTemp int             `json:"current_temp"`
	HighTemp    int             `json:"high_temp"`
	LowTemp     int             `json:"low_temp"`
	Description string          `json:"description"`
	Humidity    string          `json:"humidity"`
	WindSpeed   string          `json:"wind_speed"`
	Forecast    []DailyForecast `json:"forecast"`
	Cached      bool            `json:"cached"`
}

// ResolvedAddress is the durable record of one geocoded raw address.
// Created once per distinct raw string and never updated afterwards, even
// when a later geocode of the same string drifts.
type ResolvedAddress struct {
	ID          int64
	FullAddress string
	ZipCode     string
	Latitude    float64
	Longitude   float64
	City        string
	State       string
	CreatedAt   time.Time
}

// ForecastRecord is the durable latest forecast for one postal code.
// Addresses sharing a postal code share one record.
type ForecastRecord struct {
	ID          int64           `json:"id"`
	ZipCode     string          `json:"zip_code"`
	Temperature int             `json:"temperature"`
	HighTemp    int             `json:"high_temp"`
	LowTemp     int             `json:"low_temp"`
	Description string          `json:"description"`
	Extended    []DailyForecast `json:"extended_forecast"`
	CachedAt    time.Time       `json:"cached_at"`
}

// Expired reports whether the record is outside the freshness window at the
// given instant. A record aged exactly the window duration is expired.
func (f ForecastRecord) Expired(now time.Time, window time.Duration) bool {
	return !f.CachedAt.After(now.Add(-window))
}
