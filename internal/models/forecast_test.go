package models

import (
	"testing"
	"time"
)

// TestForecastRecord_Expired verifies the freshness boundary: records younger
// than the window are fresh, records at or past the window are expired.
func TestForecastRecord_Expired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 30 * time.Minute

	tests := []struct {
		name     string
		cachedAt time.Time
		want     bool
	}{
		{
			name:     "29 minutes old is fresh",
			cachedAt: now.Add(-29 * time.Minute),
			want:     false,
		},
		{
			name:     "exactly 30 minutes old is expired",
			cachedAt: now.Add(-30 * time.Minute),
			want:     true,
		},
		{
			name:     "31 minutes old is expired",
			cachedAt: now.Add(-31 * time.Minute),
			want:     true,
		},
		{
			name:     "just written is fresh",
			cachedAt: now,
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := ForecastRecord{CachedAt: tc.cachedAt}
			if got := rec.Expired(now, window); got != tc.want {
				t.Errorf("Expired() = %v, want %v (age %s)", got, tc.want, now.Sub(tc.cachedAt))
			}
		})
	}
}
