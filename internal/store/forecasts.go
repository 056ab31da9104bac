package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dlindgren/weather-forecast-service/internal/models"
)

// ForecastStore persists the latest forecast per postal code. A record is
// created on first resolution, overwritten in place when found outside the
// freshness window, and left untouched while fresh.
type ForecastStore struct {
	db     *DB
	window time.Duration
}

// NewForecastStore returns a ForecastStore with the given freshness window.
func NewForecastStore(db *DB, window time.Duration) *ForecastStore {
	return &ForecastStore{db: db, window: window}
}

const forecastColumns = "id, zip_code, temperature, high_temp, low_temp, description, extended_forecast, cached_at"

// FindOrRefresh applies the freshness rule for zipCode: create the record
// when absent, overwrite every weather field and reset cached_at when the
// stored record is expired at now, and return the stored record unchanged
// while fresh. In the fresh case report is discarded for persistence; the
// caller's response still reflects it.
func (s *ForecastStore) FindOrRefresh(ctx context.Context, zipCode string, report models.Report, now time.Time) (models.ForecastRecord, error) {
	rec, err := s.GetByZipCode(ctx, zipCode)
	switch {
	case err == nil && rec.Expired(now, s.window):
		return s.refresh(ctx, rec.ID, report, now)
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrNotFound):
		return s.create(ctx, zipCode, report, now)
	default:
		return models.ForecastRecord{}, err
	}
}

// GetByID fetches a persisted record by its internal identifier.
func (s *ForecastStore) GetByID(ctx context.Context, id int64) (models.ForecastRecord, error) {
	const query = `SELECT ` + forecastColumns + ` FROM weather_forecasts WHERE id = $1`

	rec, err := scanForecast(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ForecastRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("%w: get forecast: %v", ErrPersistence, err)
	}
	return rec, nil
}

// GetByZipCode fetches the record for a postal code.
func (s *ForecastStore) GetByZipCode(ctx context.Context, zipCode string) (models.ForecastRecord, error) {
	const query = `SELECT ` + forecastColumns + ` FROM weather_forecasts WHERE zip_code = $1`

	rec, err := scanForecast(s.db.QueryRowContext(ctx, query, zipCode))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ForecastRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("%w: get forecast: %v", ErrPersistence, err)
	}
	return rec, nil
}

func (s *ForecastStore) create(ctx context.Context, zipCode string, report models.Report, now time.Time) (models.ForecastRecord, error) {
	extended, err := marshalExtended(report.Extended)
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("%w: encode extended forecast: %v", ErrPersistence, err)
	}

	const insert = `
		INSERT INTO weather_forecasts (zip_code, temperature, high_temp, low_temp, description, extended_forecast, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (zip_code) DO NOTHING
		RETURNING ` + forecastColumns

	row := s.db.QueryRowContext(ctx, insert,
		zipCode, report.CurrentTemp, report.HighTemp, report.LowTemp, report.Description, extended, now)
	rec, err := scanForecast(row)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the create race; the winner's record stands until it expires.
		return s.GetByZipCode(ctx, zipCode)
	}
	return models.ForecastRecord{}, fmt.Errorf("%w: create forecast: %v", ErrPersistence, err)
}

func (s *ForecastStore) refresh(ctx context.Context, id int64, report models.Report, now time.Time) (models.ForecastRecord, error) {
	extended, err := marshalExtended(report.Extended)
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("%w: encode extended forecast: %v", ErrPersistence, err)
	}

	const update = `
		UPDATE weather_forecasts
		SET temperature = $2, high_temp = $3, low_temp = $4, description = $5,
		    extended_forecast = $6, cached_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + forecastColumns

	row := s.db.QueryRowContext(ctx, update,
		id, report.CurrentTemp, report.HighTemp, report.LowTemp, report.Description, extended, now)
	rec, err := scanForecast(row)
	if err != nil {
		return models.ForecastRecord{}, fmt.Errorf("%w: refresh forecast: %v", ErrPersistence, err)
	}
	return rec, nil
}

func marshalExtended(extended []models.DailyForecast) ([]byte, error) {
	if extended == nil {
		extended = []models.DailyForecast{}
	}
	return json.Marshal(extended)
}

func scanForecast(row *sql.Row) (models.ForecastRecord, error) {
	var rec models.ForecastRecord
	var extended []byte
	err := row.Scan(&rec.ID, &rec.ZipCode, &rec.Temperature, &rec.HighTemp, &rec.LowTemp, &rec.Description, &extended, &rec.CachedAt)
	if err != nil {
		return models.ForecastRecord{}, err
	}
	if len(extended) > 0 {
		if err := json.Unmarshal(extended, &rec.Extended); err != nil {
			return models.ForecastRecord{}, fmt.Errorf("decode extended forecast: %w", err)
		}
	}
	return rec, nil
}
