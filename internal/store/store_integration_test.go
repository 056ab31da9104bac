//go:build integration
// +build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dlindgren/weather-forecast-service/internal/models"
)

// testDB connects using TEST_DATABASE_URL and applies migrations, skipping
// the test when no database is reachable.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Connect(dsn)
	if err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(temp int) models.Report {
	return models.Report{
		CurrentTemp: temp,
		HighTemp:    temp + 5,
		LowTemp:     temp - 5,
		Description: "Broken clouds",
		Extended: []models.DailyForecast{
			{Date: "Monday, June 03", HighTemp: temp + 5, LowTemp: temp - 5, Description: "Broken clouds", Icon: "04d"},
		},
	}
}

// TestAddressStore_FindOrCreate_Integration verifies create-once semantics:
// the first call creates the row and later calls return it unchanged even
// when the geocode result differs.
func TestAddressStore_FindOrCreate_Integration(t *testing.T) {
	db := testDB(t)
	s := NewAddressStore(db)
	ctx := context.Background()

	raw := fmt.Sprintf("123 Main St %d", time.Now().UnixNano())
	loc := models.Location{Latitude: 40.7128, Longitude: -74.0060, ZipCode: "10001", City: "New York", State: "New York"}

	first, err := s.FindOrCreate(ctx, raw, loc)
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	if first.FullAddress != raw || first.ZipCode != "10001" {
		t.Errorf("created row = %+v", first)
	}

	drifted := loc
	drifted.ZipCode = "99999"
	second, err := s.FindOrCreate(ctx, raw, drifted)
	if err != nil {
		t.Fatalf("FindOrCreate() second call error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second call ID = %d, want %d (same row)", second.ID, first.ID)
	}
	if second.ZipCode != "10001" {
		t.Errorf("second call ZipCode = %q, want original %q", second.ZipCode, "10001")
	}
}

// TestAddressStore_FindOrCreate_ConcurrentOneRow verifies that concurrent
// creation attempts resolve to exactly one stored row.
func TestAddressStore_FindOrCreate_ConcurrentOneRow(t *testing.T) {
	db := testDB(t)
	s := NewAddressStore(db)
	ctx := context.Background()

	raw := fmt.Sprintf("456 Oak Ave %d", time.Now().UnixNano())
	loc := models.Location{Latitude: 40.0, Longitude: -74.0, ZipCode: "10002", City: "New York", State: "New York"}

	const writers = 8
	results := make(chan int64, writers)
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			a, err := s.FindOrCreate(ctx, raw, loc)
			if err != nil {
				errs <- err
				return
			}
			results <- a.ID
		}()
	}

	var firstID int64
	for i := 0; i < writers; i++ {
		select {
		case err := <-errs:
			t.Fatalf("FindOrCreate() error = %v", err)
		case id := <-results:
			if firstID == 0 {
				firstID = id
			} else if id != firstID {
				t.Errorf("got row ID %d, want %d (single row)", id, firstID)
			}
		}
	}
}

// TestForecastStore_FindOrRefresh_Integration walks the three freshness
// states: absent creates, fresh returns unchanged, expired overwrites in
// place.
func TestForecastStore_FindOrRefresh_Integration(t *testing.T) {
	db := testDB(t)
	s := NewForecastStore(db, 30*time.Minute)
	ctx := context.Background()

	zip := fmt.Sprintf("%d", time.Now().UnixNano()%100000000)
	now := time.Now().UTC().Truncate(time.Second)

	created, err := s.FindOrRefresh(ctx, zip, testReport(75), now)
	if err != nil {
		t.Fatalf("FindOrRefresh() create error = %v", err)
	}
	if created.Temperature != 75 {
		t.Errorf("created Temperature = %d, want 75", created.Temperature)
	}
	if len(created.Extended) != 1 {
		t.Errorf("created Extended len = %d, want 1", len(created.Extended))
	}

	// Fresh record: the new report is discarded for persistence.
	fresh, err := s.FindOrRefresh(ctx, zip, testReport(90), now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("FindOrRefresh() fresh error = %v", err)
	}
	if fresh.ID != created.ID || fresh.Temperature != 75 {
		t.Errorf("fresh record = %+v, want unchanged original", fresh)
	}

	// Expired record: overwritten in place, same row.
	refreshed, err := s.FindOrRefresh(ctx, zip, testReport(90), now.Add(31*time.Minute))
	if err != nil {
		t.Fatalf("FindOrRefresh() refresh error = %v", err)
	}
	if refreshed.ID != created.ID {
		t.Errorf("refresh created a new row: ID %d vs %d", refreshed.ID, created.ID)
	}
	if refreshed.Temperature != 90 {
		t.Errorf("refreshed Temperature = %d, want 90", refreshed.Temperature)
	}
	if !refreshed.CachedAt.After(created.CachedAt) {
		t.Errorf("cached_at not advanced: %v -> %v", created.CachedAt, refreshed.CachedAt)
	}
}
