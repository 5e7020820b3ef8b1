package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/neexbeast/weather-report/internal/cache"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	geocodeCacheTTL     = time.Hour
)

// GeocodingClient resolves free-text place names through the Open-Meteo
// geocoding API.
type GeocodingClient struct {
	baseURL string
	up      *upstream
}

// NewGeocodingClient constructs a GeocodingClient. Responses are cached in
// store for cfg.CacheTTL (default one hour).
func NewGeocodingClient(cfg ClientConfig, store cache.Store, log *slog.Logger) *GeocodingClient {
	cfg = cfg.withDefaults(DefaultGeocodingURL, geocodeCacheTTL)
	return &GeocodingClient{
		baseURL: cfg.BaseURL,
		up:      newUpstream("geocoding", cfg, store, log),
	}
}

type geocodeResponse struct {
	Results []struct {
		Name        string   `json:"name"`
		Admin1      string   `json:"admin1"`
		Country     string   `json:"country"`
		CountryCode string   `json:"country_code"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
		Timezone    string   `json:"timezone"`
	} `json:"results"`
}

// Resolve returns up to maxResults candidates for name in the service's
// relevance order. No match yields an empty slice and a nil error.
// Failures are returned as *GeocodingError.
func (c *GeocodingClient) Resolve(ctx context.Context, name string, maxResults int) ([]GeocodeResult, error) {
	if maxResults <= 0 {
		maxResults = 1
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(maxResults))
	q.Set("language", "en")
	q.Set("format", "json")
	endpoint := c.baseURL + "?" + q.Encode()

	// The geocoder matches names case-insensitively.
	key := cache.Key("geocode", strings.ToLower(name), strconv.Itoa(maxResults))

	body, fromCache, err := c.up.fetch(ctx, key, endpoint)
	if err != nil {
		return nil, &GeocodingError{Name: name, Err: err}
	}

	results, err := decodeGeocode(body)
	if err != nil {
		if fromCache {
			_ = c.up.store.Delete(ctx, key)
		}
		return nil, &GeocodingError{Name: name, Err: err}
	}

	if !fromCache {
		c.up.remember(ctx, key, body)
	}
	return results, nil
}

func decodeGeocode(body []byte) ([]GeocodeResult, error) {
	var raw geocodeResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}

	results := make([]GeocodeResult, 0, len(raw.Results))
	for i, r := range raw.Results {
		if r.Latitude == nil || r.Longitude == nil {
			return nil, fmt.Errorf("geocoding result %d (%q): %w", i, r.Name, errMissingCoordinates)
		}
		results = append(results, GeocodeResult{
			Name:        r.Name,
			Admin1:      r.Admin1,
			Country:     r.Country,
			CountryCode: r.CountryCode,
			Latitude:    *r.Latitude,
			Longitude:   *r.Longitude,
			Timezone:    r.Timezone,
		})
	}
	return results, nil
}

var errMissingCoordinates = errors.New("missing coordinates")
