package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dlindgren/weather-forecast-service/internal/cache"
	"github.com/dlindgren/weather-forecast-service/internal/models"
	"github.com/dlindgren/weather-forecast-service/internal/normalize"
	"github.com/dlindgren/weather-forecast-service/internal/observability"
)

// ErrEmptyAddress reports a blank address. It never reaches the providers.
var ErrEmptyAddress = errors.New("address is required")

// ErrNoPostalCode reports a geocode result without a postal code. Durable
// records are keyed by postal code, so such a location cannot be persisted.
var ErrNoPostalCode = errors.New("address did not resolve to a postal code")

// NotAvailable is the sentinel rendered for optional fields the provider
// omitted.
const NotAvailable = "N/A"

// Geocoder resolves a raw address to coordinates and postal components.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Location, error)
}

// WeatherFetcher resolves coordinates to current conditions plus the
// extended outlook.
type WeatherFetcher interface {
	Forecast(ctx context.Context, lat, lon float64) (models.Report, error)
}

// AddressRepository is the durable create-once store for resolved addresses.
type AddressRepository interface {
	FindOrCreate(ctx context.Context, fullAddress string, loc models.Location) (models.ResolvedAddress, error)
}

// ForecastRepository is the durable per-postal-code forecast store with the
// freshness rule applied on upsert.
type ForecastRepository interface {
	FindOrRefresh(ctx context.Context, zipCode string, report models.Report, now time.Time) (models.ForecastRecord, error)
}

// ForecastService answers "weather for this address" by composing the cache,
// the two provider clients, and the two durable stores. On a cache hit it
// returns the stored payload with no provider calls or writes; on a miss it
// geocodes, fetches weather, persists, populates the cache, and returns the
// live result. The cache TTL and the durable record's freshness window are
// independent clocks.
type ForecastService struct {
	geocoder  Geocoder
	weather   WeatherFetcher
	addresses AddressRepository
	forecasts ForecastRepository
	cache     cache.Cache
	ttl       time.Duration
	now       func() time.Time
}

// NewForecastService creates a ForecastService. ttl is the ephemeral cache
// expiry for assembled payloads.
func NewForecastService(geocoder Geocoder, weather WeatherFetcher, addresses AddressRepository, forecasts ForecastRepository, c cache.Cache, ttl time.Duration) *ForecastService {
	return &ForecastService{
		geocoder:  geocoder,
		weather:   weather,
		addresses: addresses,
		forecasts: forecasts,
		cache:     c,
		ttl:       ttl,
		now:       time.Now,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Forecast returns the assembled forecast payload for a raw address.
// Failures propagate with the upstream reason attached; nothing is persisted
// or cached unless both provider calls and both upserts succeed.
func (s *ForecastService) Forecast(ctx context.Context, address string) (models.ForecastPayload, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return models.ForecastPayload{}, ErrEmptyAddress
	}

	key := normalize.Key(addr)
	start := time.Now()
	logger := loggerFromContext(ctx)
	observability.ForecastRequestsTotal.Inc()

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("forecast").Inc()
		cached.Cached = true
		if logger != nil {
			logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return cached, nil
	}

	if logger != nil {
		logger.Debug("cache miss, resolving address", zap.String("key", key))
	}

	loc, err := s.geocoder.Geocode(ctx, addr)
	if err != nil {
		return models.ForecastPayload{}, fmt.Errorf("unable to geocode address %q: %w", addr, err)
	}
	if loc.ZipCode == "" {
		return models.ForecastPayload{}, fmt.Errorf("%w: %q", ErrNoPostalCode, addr)
	}

	report, err := s.weather.Forecast(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return models.ForecastPayload{}, fmt.Errorf("unable to fetch weather data: %w", err)
	}

	now := s.now()
	// The durable address row keys on the raw string as submitted, not the
	// trimmed form used for lookups.
	if _, err := s.addresses.FindOrCreate(ctx, address, loc); err != nil {
		observability.PersistenceFailuresTotal.Inc()
		return models.ForecastPayload{}, err
	}
	if _, err := s.forecasts.FindOrRefresh(ctx, loc.ZipCode, report, now); err != nil {
		observability.PersistenceFailuresTotal.Inc()
		return models.ForecastPayload{}, err
	}

	payload := assemblePayload(loc, report)
	if setErr := s.cache.Set(ctx, key, payload, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	if logger != nil {
		logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return payload, nil
}

// assemblePayload builds the response from the live provider results. The
// payload is stored with Cached=false; the hit path flips the flag on read.
func assemblePayload(loc models.Location, report models.Report) models.ForecastPayload {
	p := models.ForecastPayload{
		Location:    fmt.Sprintf("%s, %s", loc.City, loc.State),
		CurrentTemp: report.CurrentTemp,
		HighTemp:    report.HighTemp,
		LowTemp:     report.LowTemp,
		Description: report.Description,
		Humidity:    NotAvailable,
		WindSpeed:   NotAvailable,
		Forecast:    report.Extended,
	}
	if p.Forecast == nil {
		p.Forecast = []models.DailyForecast{}
	}
	if report.Humidity != nil {
		p.Humidity = strconv.Itoa(*report.Humidity)
	}
	if report.WindSpeed != nil {
		p.WindSpeed = strconv.FormatFloat(*report.WindSpeed, 'f', -1, 64)
	}
	return p
}
