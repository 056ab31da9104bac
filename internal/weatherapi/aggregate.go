package weatherapi

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dlindgren/weather-forecast-service/internal/models"
)

const maxForecastDays = 5

// aggregateDaily folds the provider's 3-hour samples into per-day summaries.
// Samples group by calendar date in the order dates first appear in the
// stream; no re-sort is applied even if the provider returns dates out of
// order. High/low are the max/min across the date's sample temperatures,
// rounded after aggregation. Description and icon come from the date's first
// sample. At most 5 distinct dates are emitted.
func aggregateDaily(samples []forecastSample) []models.DailyForecast {
	type bucket struct {
		first forecastSample
		high  float64
		low   float64
	}

	var order []string
	buckets := make(map[string]*bucket)
	for _, s := range samples {
		day := s.DtTxt
		if len(day) > 10 {
			day = day[:10]
		}
		b, ok := buckets[day]
		if !ok {
			buckets[day] = &bucket{first: s, high: s.Main.Temp, low: s.Main.Temp}
			order = append(order, day)
			continue
		}
		if s.Main.Temp > b.high {
			b.high = s.Main.Temp
		}
		if s.Main.Temp < b.low {
			b.low = s.Main.Temp
		}
	}

	if len(order) > maxForecastDays {
		order = order[:maxForecastDays]
	}

	out := make([]models.DailyForecast, 0, len(order))
	for _, day := range order {
		b := buckets[day]
		df := models.DailyForecast{
			Date:     formatDay(day),
			HighTemp: round(b.high),
			LowTemp:  round(b.low),
		}
		if len(b.first.Weather) > 0 {
			df.Description = capitalize(b.first.Weather[0].Description)
			df.Icon = b.first.Weather[0].Icon
		}
		out = append(out, df)
	}
	return out
}

// formatDay renders a "2006-01-02" date as "Monday, January 02". Unparseable
// input passes through unchanged.
func formatDay(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return t.Format("Monday, January 02")
}

// capitalize upcases the first rune and lowercases the rest, matching the
// provider descriptions' display form ("broken clouds" -> "Broken clouds").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
