// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/neexbeast/weather-report/internal/weather"
)

// Config is the resolved server configuration.
type Config struct {
	Port     string
	Password string
	RedisURL string
	LogLevel slog.Level

	GeocodingURL      string
	ForecastURL       string
	GeocodeMaxResults int
	GeocodeCacheTTL   time.Duration
	ForecastCacheTTL  time.Duration
	HTTPTimeout       time.Duration
	BreakerTimeout    time.Duration

	RateLimitPerMinute int
}

// Load reads the configuration from the environment. Variables from the
// given dotenv files (or ./.env when none are given) are applied first
// without overriding anything already set. A missing ./.env is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Password:     os.Getenv("WEATHER_APP_PASSWORD"),
		RedisURL:     os.Getenv("REDIS_URL"),
		GeocodingURL: getEnv("GEOCODING_URL", weather.DefaultGeocodingURL),
		ForecastURL:  getEnv("FORECAST_URL", weather.DefaultForecastURL),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.GeocodeMaxResults, err = envInt("GEOCODE_MAX_RESULTS", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheTTL, err = envDuration("GEOCODE_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ForecastCacheTTL, err = envDuration("FORECAST_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerTimeout, err = envDuration("BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GeocodingClient returns the client settings for the geocoding upstream.
func (c *Config) GeocodingClient() weather.ClientConfig {
	return weather.ClientConfig{
		BaseURL:        c.GeocodingURL,
		Timeout:        c.HTTPTimeout,
		CacheTTL:       c.GeocodeCacheTTL,
		BreakerTimeout: c.BreakerTimeout,
	}
}

// ForecastClient returns the client settings for the forecast upstream.
func (c *Config) ForecastClient() weather.ClientConfig {
	return weather.ClientConfig{
		BaseURL:        c.ForecastURL,
		Timeout:        c.HTTPTimeout,
		CacheTTL:       c.ForecastCacheTTL,
		BreakerTimeout: c.BreakerTimeout,
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want a positive integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: want a positive duration, got %q", key, v)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
