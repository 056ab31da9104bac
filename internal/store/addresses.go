package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dlindgren/weather-forecast-service/internal/models"
)

// AddressStore persists resolved addresses keyed by the exact raw address
// string. Rows are created once and never updated.
type AddressStore struct {
	db *DB
}

// NewAddressStore returns an AddressStore backed by db.
func NewAddressStore(db *DB) *AddressStore {
	return &AddressStore{db: db}
}

const addressColumns = "id, full_address, zip_code, latitude, longitude, city, state, created_at"

// FindOrCreate returns the stored row for fullAddress, creating it from loc
// when absent. An existing row wins even when loc differs from what was
// stored at creation time; the unique constraint on full_address resolves
// concurrent creates to a single row.
func (s *AddressStore) FindOrCreate(ctx context.Context, fullAddress string, loc models.Location) (models.ResolvedAddress, error) {
	addr, err := s.getByFullAddress(ctx, fullAddress)
	if err == nil {
		return addr, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.ResolvedAddress{}, err
	}

	const insert = `
		INSERT INTO addresses (full_address, zip_code, latitude, longitude, city, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (full_address) DO NOTHING
		RETURNING ` + addressColumns

	row := s.db.QueryRowContext(ctx, insert,
		fullAddress, loc.ZipCode, loc.Latitude, loc.Longitude, loc.City, loc.State)
	addr, err = scanAddress(row)
	if err == nil {
		return addr, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the create race; the winner's row is authoritative.
		return s.getByFullAddress(ctx, fullAddress)
	}
	return models.ResolvedAddress{}, fmt.Errorf("%w: create address: %v", ErrPersistence, err)
}

func (s *AddressStore) getByFullAddress(ctx context.Context, fullAddress string) (models.ResolvedAddress, error) {
	const query = `SELECT ` + addressColumns + ` FROM addresses WHERE full_address = $1`

	addr, err := scanAddress(s.db.QueryRowContext(ctx, query, fullAddress))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ResolvedAddress{}, ErrNotFound
	}
	if err != nil {
		return models.ResolvedAddress{}, fmt.Errorf("%w: get address: %v", ErrPersistence, err)
	}
	return addr, nil
}

func scanAddress(row *sql.Row) (models.ResolvedAddress, error) {
	var a models.ResolvedAddress
	var city, state sql.NullString
	err := row.Scan(&a.ID, &a.FullAddress, &a.ZipCode, &a.Latitude, &a.Longitude, &city, &state, &a.CreatedAt)
	if err != nil {
		return models.ResolvedAddress{}, err
	}
	a.City = city.String
	a.State = state.String
	return a, nil
}
