package weather_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weather-report/internal/cache"
	"github.com/neexbeast/weather-report/internal/weather"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingServer wraps h and counts how many requests reached it.
func countingServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func londonGeocodeHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"name":         "London",
					"admin1":       "England",
					"country":      "United Kingdom",
					"country_code": "GB",
					"latitude":     51.5074,
					"longitude":    -0.1278,
					"timezone":     "Europe/London",
				},
			},
		})
	}
}

func forecastBody() map[string]any {
	return map[string]any{
		"latitude":           51.5,
		"longitude":          -0.12,
		"timezone":           "UTC",
		"utc_offset_seconds": 0,
		"current_weather": map[string]any{
			"temperature":   14.2,
			"windspeed":     11.5,
			"winddirection": 250,
			"weathercode":   3,
			"time":          "2024-05-01T12:00",
		},
		"hourly": map[string]any{
			"time":                 []string{"2024-05-01T00:00", "2024-05-01T01:00", "2024-05-01T02:00"},
			"temperature_2m":       []float64{10.1, 9.8, 9.5},
			"apparent_temperature": []float64{8.0, 7.6, 7.1},
			"precipitation":        []float64{0, 0.2, 0},
			"weathercode":          []int{3, 61, 2},
		},
		"daily": map[string]any{
			"time":               []string{"2024-05-01", "2024-05-02"},
			"temperature_2m_max": []float64{16.0, 18.5},
			"temperature_2m_min": []float64{8.0, 9.1},
			"weathercode":        []int{3, 61},
		},
	}
}

func forecastHandler(t *testing.T, body map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

// ---- GeocodingClient ----

func TestGeocodingClient_Resolve(t *testing.T) {
	var gotQuery map[string]string
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"name":     r.URL.Query().Get("name"),
			"count":    r.URL.Query().Get("count"),
			"language": r.URL.Query().Get("language"),
			"format":   r.URL.Query().Get("format"),
		}
		londonGeocodeHandler(t)(w, r)
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	results, err := c.Resolve(context.Background(), "London, UK", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "London", results[0].Name)
	assert.Equal(t, "England", results[0].Admin1)
	assert.Equal(t, "United Kingdom", results[0].Country)
	assert.InDelta(t, 51.5074, results[0].Latitude, 1e-9)
	assert.InDelta(t, -0.1278, results[0].Longitude, 1e-9)

	assert.Equal(t, "London, UK", gotQuery["name"])
	assert.Equal(t, "5", gotQuery["count"])
	assert.Equal(t, "en", gotQuery["language"])
	assert.Equal(t, "json", gotQuery["format"])
}

func TestGeocodingClient_NoResults(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generationtime_ms":0.5}`))
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	results, err := c.Resolve(context.Background(), "Atlantis", 5)
	require.NoError(t, err, "zero matches is not an error")
	assert.Empty(t, results)
}

func TestGeocodingClient_CachedWithinWindow(t *testing.T) {
	srv, calls := countingServer(t, londonGeocodeHandler(t))

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	ctx := context.Background()

	first, err := c.Resolve(ctx, "London", 5)
	require.NoError(t, err)
	second, err := c.Resolve(ctx, "London", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "second call should be served from cache")

	_, err = c.Resolve(ctx, "London", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "different maxResults is a different key")
}

func TestGeocodingClient_NameCaseSharesEntry(t *testing.T) {
	srv, calls := countingServer(t, londonGeocodeHandler(t))
	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())

	_, err := c.Resolve(context.Background(), "London", 5)
	require.NoError(t, err)
	_, err = c.Resolve(context.Background(), "LONDON", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocodingClient_CacheExpires(t *testing.T) {
	srv, calls := countingServer(t, londonGeocodeHandler(t))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryWithClock(func() time.Time { return now })
	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, store, discardLogger())
	ctx := context.Background()

	_, err := c.Resolve(ctx, "London", 5)
	require.NoError(t, err)

	now = now.Add(61 * time.Minute)
	_, err = c.Resolve(ctx, "London", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeocodingClient_ServerError(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	_, err := c.Resolve(context.Background(), "London", 5)
	require.Error(t, err)

	var gerr *weather.GeocodingError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "London", gerr.Name)

	var serr *weather.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusInternalServerError, serr.Code)
}

func TestGeocodingClient_FailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		londonGeocodeHandler(t)(w, r)
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	ctx := context.Background()

	_, err := c.Resolve(ctx, "London", 5)
	require.Error(t, err)

	fail.Store(false)
	results, err := c.Resolve(ctx, "London", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeocodingClient_SchemaMismatch(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"name":"Nowhere","country":"X"}]}`))
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	_, err := c.Resolve(context.Background(), "Nowhere", 5)
	require.Error(t, err)

	var gerr *weather.GeocodingError
	assert.True(t, errors.As(err, &gerr))
	assert.Contains(t, err.Error(), "missing coordinates")
}

func TestGeocodingClient_InvalidJSON(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	_, err := c.Resolve(context.Background(), "London", 5)
	var gerr *weather.GeocodingError
	require.True(t, errors.As(err, &gerr))
}

func TestGeocodingClient_Timeout(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})

	c := weather.NewGeocodingClient(
		weather.ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond},
		cache.NewMemory(), discardLogger(),
	)
	_, err := c.Resolve(context.Background(), "London", 5)
	var gerr *weather.GeocodingError
	require.True(t, errors.As(err, &gerr))
}

func TestGeocodingClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	c := weather.NewGeocodingClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := c.Resolve(ctx, "London", 5)
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), calls.Load(), "breaker should stop calls after five consecutive failures")
}

// ---- ForecastClient ----

func TestForecastClient_Fetch(t *testing.T) {
	var gotQuery url.Values
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		forecastHandler(t, forecastBody())(w, r)
	})

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	p, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 51.5074, Longitude: -0.1278})
	require.NoError(t, err)

	assert.Equal(t, "51.5074", gotQuery.Get("latitude"))
	assert.Equal(t, "-0.1278", gotQuery.Get("longitude"))
	assert.Equal(t, "true", gotQuery.Get("current_weather"))
	assert.Equal(t, "temperature_2m,apparent_temperature,precipitation,weathercode", gotQuery.Get("hourly"))
	assert.Equal(t, "temperature_2m_max,temperature_2m_min,weathercode", gotQuery.Get("daily"))
	assert.Equal(t, "UTC", gotQuery.Get("timezone"), "blank timezone defaults to UTC")
	assert.Empty(t, gotQuery.Get("temperature_unit"))

	require.NotNil(t, p.Current)
	assert.Equal(t, 14.2, p.Current.Temperature)
	assert.Equal(t, 11.5, p.Current.WindSpeed)
	assert.Equal(t, 3, p.Current.ConditionCode)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), p.Current.ObservedAt.UTC())
	assert.Equal(t, weather.Metric, p.Units)

	require.NotNil(t, p.Hourly)
	assert.Len(t, p.Hourly.Time, 3)
	require.NotNil(t, p.Daily)
	assert.Len(t, p.Daily.Date, 2)
	assert.NotEmpty(t, p.Raw)
}

func TestForecastClient_ImperialUnits(t *testing.T) {
	var gotQuery url.Values
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		forecastHandler(t, forecastBody())(w, r)
	})

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	p, err := c.Fetch(context.Background(), weather.ForecastQuery{
		Latitude: 40.7, Longitude: -74.0, Timezone: "America/New_York", Units: weather.Imperial,
	})
	require.NoError(t, err)

	assert.Equal(t, "fahrenheit", gotQuery.Get("temperature_unit"))
	assert.Equal(t, "mph", gotQuery.Get("wind_speed_unit"))
	assert.Equal(t, "inch", gotQuery.Get("precipitation_unit"))
	assert.Equal(t, "America/New_York", gotQuery.Get("timezone"))
	assert.Equal(t, weather.Imperial, p.Units)
}

func TestForecastClient_TimestampsInPayloadZone(t *testing.T) {
	body := forecastBody()
	body["timezone"] = "Europe/Berlin"
	body["utc_offset_seconds"] = 7200

	srv, _ := countingServer(t, forecastHandler(t, body))
	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())

	p, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 52.52, Longitude: 13.41, Timezone: "Europe/Berlin"})
	require.NoError(t, err)
	require.NotNil(t, p.Hourly)

	// 2024-05-01T00:00 in Berlin (CEST) is 22:00 UTC the previous day.
	assert.Equal(t, time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC), p.Hourly.Time[0].UTC())
}

func TestForecastClient_CachedWithinWindow(t *testing.T) {
	srv, calls := countingServer(t, forecastHandler(t, forecastBody()))

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	ctx := context.Background()
	q := weather.ForecastQuery{Latitude: 51.5074, Longitude: -0.1278, Timezone: "UTC"}

	first, err := c.Fetch(ctx, q)
	require.NoError(t, err)
	second, err := c.Fetch(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, first.Raw, second.Raw)
	assert.Equal(t, int32(1), calls.Load())

	q.Units = weather.Imperial
	_, err = c.Fetch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "units are part of the cache key")
}

func TestForecastClient_TimezoneCaseIsDistinct(t *testing.T) {
	var zones []string
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		zones = append(zones, r.URL.Query().Get("timezone"))
		forecastHandler(t, forecastBody())(w, r)
	})
	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())

	_, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2, Timezone: "Europe/London"})
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2, Timezone: "europe/london"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Europe/London", "europe/london"}, zones, "each spelling reaches the upstream as given")
}

func TestForecastClient_CacheExpiresAfterFiveMinutes(t *testing.T) {
	srv, calls := countingServer(t, forecastHandler(t, forecastBody()))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryWithClock(func() time.Time { return now })
	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, store, discardLogger())
	ctx := context.Background()
	q := weather.ForecastQuery{Latitude: 1, Longitude: 2}

	_, err := c.Fetch(ctx, q)
	require.NoError(t, err)

	now = now.Add(4 * time.Minute)
	_, err = c.Fetch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = c.Fetch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestForecastClient_BadRequestCarriesReason(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Invalid timezone"}`))
	})

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	_, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2, Timezone: "Mars/Olympus"})
	require.Error(t, err)

	var ferr *weather.ForecastError
	require.True(t, errors.As(err, &ferr))
	assert.Contains(t, err.Error(), "Invalid timezone")
}

func TestForecastClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"bad"}`))
	})

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	for i := 0; i < 8; i++ {
		_, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2})
		require.Error(t, err)
	}
	assert.Equal(t, int32(8), calls.Load())
}

func TestForecastClient_BadTimestamp(t *testing.T) {
	body := forecastBody()
	body["hourly"].(map[string]any)["time"] = []string{"yesterday"}

	srv, _ := countingServer(t, forecastHandler(t, body))
	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())

	_, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2})
	var ferr *weather.ForecastError
	require.True(t, errors.As(err, &ferr))
	assert.Contains(t, err.Error(), "hourly.time")
}

func TestForecastClient_MissingBlocks(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":1,"longitude":2,"timezone":"UTC"}`))
	})

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	p, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Nil(t, p.Current)
	assert.Nil(t, p.Hourly)
	assert.Nil(t, p.Daily)
}

func TestForecastClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())
	_, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2})
	var ferr *weather.ForecastError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, 1.0, ferr.Latitude)
}

func TestForecastClient_CancelledRequestsDoNotTripBreaker(t *testing.T) {
	srv, calls := countingServer(t, forecastHandler(t, forecastBody()))
	c := weather.NewForecastClient(weather.ClientConfig{BaseURL: srv.URL}, cache.NewMemory(), discardLogger())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 8; i++ {
		_, err := c.Fetch(cancelled, weather.ForecastQuery{Latitude: 1, Longitude: 2})
		require.ErrorIs(t, err, context.Canceled)
	}

	p, err := c.Fetch(context.Background(), weather.ForecastQuery{Latitude: 1, Longitude: 2})
	require.NoError(t, err, "breaker must still be closed")
	assert.NotNil(t, p.Current)
	assert.Equal(t, int32(1), calls.Load())
}

// ---- Units ----

func TestParseUnits(t *testing.T) {
	u, ok := weather.ParseUnits("")
	assert.True(t, ok)
	assert.Equal(t, weather.Metric, u)

	u, ok = weather.ParseUnits(" Imperial ")
	assert.True(t, ok)
	assert.Equal(t, weather.Imperial, u)

	_, ok = weather.ParseUnits("kelvin")
	assert.False(t, ok)

	assert.Equal(t, "°C", weather.Metric.Temperature())
	assert.Equal(t, "°F", weather.Imperial.Temperature())
	assert.Equal(t, "km/h", weather.Metric.WindSpeed())
	assert.Equal(t, "mph", weather.Imperial.WindSpeed())
}
