package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dlindgren/weather-forecast-service/internal/cache"
	"github.com/dlindgren/weather-forecast-service/internal/config"
	"github.com/dlindgren/weather-forecast-service/internal/geocode"
	httphandler "github.com/dlindgren/weather-forecast-service/internal/http"
	"github.com/dlindgren/weather-forecast-service/internal/observability"
	"github.com/dlindgren/weather-forecast-service/internal/service"
	"github.com/dlindgren/weather-forecast-service/internal/store"
	"github.com/dlindgren/weather-forecast-service/internal/weatherapi"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.GeocodeAPIKey == "" {
		logger.Warn("GOOGLE_MAPS_API_KEY not set; geocoding requests will fail")
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY not set; weather requests will fail")
	}

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	if err := db.RunMigrations(cfg.MigrationsDir); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}
	addressStore := store.NewAddressStore(db)
	forecastStore := store.NewForecastStore(db, cfg.FreshnessWindow)

	var cacheSvc cache.Cache
	var cachePing func() error
	var cacheCloser interface{ Close() error }
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		cacheSvc = mc
		cachePing = mc.Ping
		cacheCloser = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "redis":
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cacheSvc = rc
		cachePing = func() error { return rc.Ping(context.Background()) }
		cacheCloser = rc
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	geocoder := geocode.New(cfg.GeocodeAPIKey, cfg.GeocodeAPIURL, cfg.GeocodeTimeout)
	weatherClient := weatherapi.New(cfg.WeatherAPIKey, cfg.WeatherCurrentURL, cfg.WeatherForecastURL, cfg.WeatherAPITimeout)
	forecastService := service.NewForecastService(geocoder, weatherClient, addressStore, forecastStore, cacheSvc, cfg.CacheTTL)

	healthConfig := &httphandler.HealthConfig{
		CachePing:    cachePing,
		DatabasePing: db.Ping,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(forecastService, forecastStore, healthConfig, logger)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/", handler.GetIndex).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.HandleFunc("/forecast", handler.PostForecast).Methods("POST")
	weatherRouter.HandleFunc("/{id}", handler.GetForecastRecord).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if cacheCloser != nil {
		if err := cacheCloser.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
