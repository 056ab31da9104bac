package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dlindgren/weather-forecast-service/internal/models"
	"github.com/dlindgren/weather-forecast-service/internal/service"
	"github.com/dlindgren/weather-forecast-service/internal/store"
)

// RecordGetter fetches persisted forecast records for the display endpoint.
type RecordGetter interface {
	GetByID(ctx context.Context, id int64) (models.ForecastRecord, error)
}

// HealthConfig holds the reachability probes for the health handler. Either
// probe may be nil when the backend has none (in-memory cache).
type HealthConfig struct {
	CachePing    func() error
	DatabasePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecasts    *service.ForecastService
	records      RecordGetter
	healthConfig *HealthConfig
	logger       *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(forecasts *service.ForecastService, records RecordGetter, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		forecasts:    forecasts,
		records:      records,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

type forecastRequest struct {
	Address string `json:"address"`
}

// PostForecast handles POST /weather/forecast. The outcome is reported
// through the body's success flag; the HTTP status is 200 either way.
func (h *Handler) PostForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Malformed or empty bodies read as a blank address.
		req.Address = ""
	}

	payload, err := h.forecasts.Forecast(r.Context(), req.Address)
	if err != nil {
		if logger := loggerFrom(r.Context()); logger != nil {
			logger.Error("forecast failed", zap.Error(err))
		}
		writeForecastError(w, errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"weather": payload,
	})
}

// GetForecastRecord handles GET /weather/{id}: a persisted record by its
// internal identifier. Unknown or malformed IDs redirect to the landing
// resource rather than returning 404.
func (h *Handler) GetForecastRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	rec, err := h.records.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if logger := loggerFrom(r.Context()); logger != nil {
			logger.Error("record lookup failed", zap.Int64("id", id), zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unable to load forecast"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetIndex handles GET /: the landing resource.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "weather-forecast-service",
		"endpoints": []string{
			"POST /weather/forecast",
			"GET /weather/{id}",
			"GET /health",
			"GET /metrics",
		},
	})
}

// GetHealth handles GET /health. Reports reachability of the cache backend
// and the database.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}
	if h.healthConfig != nil && h.healthConfig.DatabasePing != nil {
		if h.healthConfig.DatabasePing() == nil {
			checks["database"] = "healthy"
		} else {
			checks["database"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weather-forecast-service",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// errorMessage maps service errors to the user-facing message. Blank input
// has a fixed message; everything else surfaces the propagated reason.
func errorMessage(err error) string {
	if errors.Is(err, service.ErrEmptyAddress) {
		return "Please enter an address"
	}
	return err.Error()
}

func writeForecastError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggerFrom extracts the request-scoped logger placed by the correlation
// middleware, or nil.
func loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}
