package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func currentOKBody() map[string]interface{} {
	return map[string]interface{}{
		"main": map[string]interface{}{
			"temp":     74.6,
			"temp_max": 80.2,
			"temp_min": 69.8,
			"humidity": 65,
		},
		"weather": []map[string]interface{}{
			{"description": "broken clouds", "icon": "04d"},
		},
		"wind": map[string]interface{}{
			"speed": 8.5,
		},
	}
}

func forecastOKBody() map[string]interface{} {
	return map[string]interface{}{
		"list": []map[string]interface{}{
			{
				"dt_txt":  "2024-06-03 12:00:00",
				"main":    map[string]interface{}{"temp": 75.0},
				"weather": []map[string]interface{}{{"description": "broken clouds", "icon": "04d"}},
			},
		},
	}
}

// weatherServer serves the current and forecast endpoints from one test
// server, routing by path suffix.
func weatherServer(t *testing.T, current, forecast interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("units") != "imperial" {
			t.Errorf("units = %q, want imperial", q.Get("units"))
		}
		if q.Get("lat") == "" || q.Get("lon") == "" {
			t.Error("missing coordinates in query")
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/forecast"):
			_ = json.NewEncoder(w).Encode(forecast)
		default:
			_ = json.NewEncoder(w).Encode(current)
		}
	}))
}

// TestClient_Forecast_Success verifies current-conditions mapping: rounded
// temperatures, capitalized description, optional humidity and wind.
func TestClient_Forecast_Success(t *testing.T) {
	server := weatherServer(t, currentOKBody(), forecastOKBody())
	defer server.Close()

	c := New("test-key", server.URL+"/weather", server.URL+"/forecast", 2*time.Second)
	report, err := c.Forecast(context.Background(), 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if report.CurrentTemp != 75 {
		t.Errorf("CurrentTemp = %d, want 75", report.CurrentTemp)
	}
	if report.HighTemp != 80 || report.LowTemp != 70 {
		t.Errorf("High/Low = %d/%d, want 80/70", report.HighTemp, report.LowTemp)
	}
	if report.Description != "Broken clouds" {
		t.Errorf("Description = %q, want %q", report.Description, "Broken clouds")
	}
	if report.Humidity == nil || *report.Humidity != 65 {
		t.Errorf("Humidity = %v, want 65", report.Humidity)
	}
	if report.WindSpeed == nil || *report.WindSpeed != 8.5 {
		t.Errorf("WindSpeed = %v, want 8.5", report.WindSpeed)
	}
	if len(report.Extended) != 1 {
		t.Fatalf("Extended len = %d, want 1", len(report.Extended))
	}
}

// TestClient_Forecast_OptionalFieldsAbsent verifies that missing humidity and
// wind come back nil instead of failing the call.
func TestClient_Forecast_OptionalFieldsAbsent(t *testing.T) {
	current := map[string]interface{}{
		"main": map[string]interface{}{
			"temp":     74.6,
			"temp_max": 80.2,
			"temp_min": 69.8,
		},
		"weather": []map[string]interface{}{
			{"description": "clear sky", "icon": "01d"},
		},
	}
	server := weatherServer(t, current, forecastOKBody())
	defer server.Close()

	c := New("test-key", server.URL+"/weather", server.URL+"/forecast", 2*time.Second)
	report, err := c.Forecast(context.Background(), 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if report.Humidity != nil {
		t.Errorf("Humidity = %v, want nil", *report.Humidity)
	}
	if report.WindSpeed != nil {
		t.Errorf("WindSpeed = %v, want nil", *report.WindSpeed)
	}
}

// TestClient_Forecast_MissingCurrentConditions verifies that an empty weather
// element list fails the whole call.
func TestClient_Forecast_MissingCurrentConditions(t *testing.T) {
	current := map[string]interface{}{
		"main":    map[string]interface{}{"temp": 74.6},
		"weather": []interface{}{},
	}
	server := weatherServer(t, current, forecastOKBody())
	defer server.Close()

	c := New("test-key", server.URL+"/weather", server.URL+"/forecast", 2*time.Second)
	_, err := c.Forecast(context.Background(), 40.7128, -74.0060)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	if !strings.Contains(err.Error(), "current conditions") {
		t.Errorf("error %q should name the missing field", err)
	}
}

// TestClient_Forecast_MissingTemperatureBlock verifies that a 2xx response
// without the main temperature block fails rather than reporting zero
// temperatures.
func TestClient_Forecast_MissingTemperatureBlock(t *testing.T) {
	current := map[string]interface{}{
		"weather": []map[string]interface{}{
			{"description": "broken clouds", "icon": "04d"},
		},
	}
	server := weatherServer(t, current, forecastOKBody())
	defer server.Close()

	c := New("test-key", server.URL+"/weather", server.URL+"/forecast", 2*time.Second)
	_, err := c.Forecast(context.Background(), 40.7128, -74.0060)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error %q should name the missing field", err)
	}
}

// TestClient_Forecast_HTTPError verifies failure on non-2xx responses with
// the status code preserved in the message.
func TestClient_Forecast_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New("", server.URL+"/weather", server.URL+"/forecast", 2*time.Second)
	_, err := c.Forecast(context.Background(), 40.7128, -74.0060)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q missing status code", err)
	}
}

// TestClient_Forecast_KeyNeverInError verifies that transport failures do not
// leak the API key through the request URL embedded in the error.
func TestClient_Forecast_KeyNeverInError(t *testing.T) {
	c := New("super-secret-key", "http://127.0.0.1:1/weather", "http://127.0.0.1:1/forecast", 200*time.Millisecond)
	_, err := c.Forecast(context.Background(), 40.7128, -74.0060)
	if err == nil {
		t.Fatal("Forecast() expected connection error")
	}
	if strings.Contains(err.Error(), "super-secret-key") {
		t.Errorf("error text leaks API key: %q", err)
	}
}
