package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/neexbeast/weather-report/internal/cache"
)

const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	forecastCacheTTL   = 5 * time.Minute
	defaultTimezone    = "UTC"
)

var (
	hourlyVars = []string{"temperature_2m", "apparent_temperature", "precipitation", "weathercode"}
	dailyVars  = []string{"temperature_2m_max", "temperature_2m_min", "weathercode"}
)

// ForecastClient retrieves current, hourly and daily forecasts from the
// Open-Meteo forecast API.
type ForecastClient struct {
	baseURL string
	up      *upstream
}

// NewForecastClient constructs a ForecastClient. Responses are cached in
// store for cfg.CacheTTL (default five minutes).
func NewForecastClient(cfg ClientConfig, store cache.Store, log *slog.Logger) *ForecastClient {
	cfg = cfg.withDefaults(DefaultForecastURL, forecastCacheTTL)
	return &ForecastClient{
		baseURL: cfg.BaseURL,
		up:      newUpstream("forecast", cfg, store, log),
	}
}

type forecastResponse struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`
	CurrentWeather   *struct {
		Temperature   *float64 `json:"temperature"`
		WindSpeed     *float64 `json:"windspeed"`
		WindDirection *float64 `json:"winddirection"`
		WeatherCode   *int     `json:"weathercode"`
		Time          string   `json:"time"`
	} `json:"current_weather"`
	Hourly *struct {
		Time                []string   `json:"time"`
		Temperature         []*float64 `json:"temperature_2m"`
		ApparentTemperature []*float64 `json:"apparent_temperature"`
		Precipitation       []*float64 `json:"precipitation"`
		WeatherCode         []*int     `json:"weathercode"`
	} `json:"hourly"`
	Daily *struct {
		Time        []string   `json:"time"`
		TempMax     []*float64 `json:"temperature_2m_max"`
		TempMin     []*float64 `json:"temperature_2m_min"`
		WeatherCode []*int     `json:"weathercode"`
	} `json:"daily"`
}

func (c *ForecastClient) endpoint(q ForecastQuery) string {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	v.Set("current_weather", "true")
	v.Set("hourly", strings.Join(hourlyVars, ","))
	v.Set("daily", strings.Join(dailyVars, ","))
	v.Set("timezone", q.Timezone)
	if q.Units == Imperial {
		v.Set("temperature_unit", "fahrenheit")
		v.Set("wind_speed_unit", "mph")
		v.Set("precipitation_unit", "inch")
	}
	return c.baseURL + "?" + v.Encode()
}

// Fetch retrieves the forecast for q. A blank timezone means UTC and blank
// units mean metric. Failures are returned as *ForecastError; there is no retry.
func (c *ForecastClient) Fetch(ctx context.Context, q ForecastQuery) (*ForecastPayload, error) {
	if strings.TrimSpace(q.Timezone) == "" {
		q.Timezone = defaultTimezone
	}
	if q.Units == "" {
		q.Units = Metric
	}

	key := cache.Key("forecast",
		strconv.FormatFloat(q.Latitude, 'f', 4, 64),
		strconv.FormatFloat(q.Longitude, 'f', 4, 64),
		q.Timezone,
		string(q.Units),
	)

	body, fromCache, err := c.up.fetch(ctx, key, c.endpoint(q))
	if err != nil {
		return nil, &ForecastError{Latitude: q.Latitude, Longitude: q.Longitude, Err: err}
	}

	payload, err := decodeForecast(body, q.Units)
	if err != nil {
		if fromCache {
			_ = c.up.store.Delete(ctx, key)
		}
		return nil, &ForecastError{Latitude: q.Latitude, Longitude: q.Longitude, Err: err}
	}

	if !fromCache {
		c.up.remember(ctx, key, body)
	}
	return payload, nil
}

func decodeForecast(body []byte, units Units) (*ForecastPayload, error) {
	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding forecast response: %w", err)
	}

	loc := payloadLocation(raw.Timezone, raw.UTCOffsetSeconds)

	p := &ForecastPayload{
		Latitude:         raw.Latitude,
		Longitude:        raw.Longitude,
		Timezone:         raw.Timezone,
		UTCOffsetSeconds: raw.UTCOffsetSeconds,
		Units:            units,
		Raw:              json.RawMessage(body),
	}

	// A current block with a null reading is treated as absent.
	if cw := raw.CurrentWeather; cw != nil && cw.Temperature != nil && cw.WindSpeed != nil && cw.WeatherCode != nil {
		observed, err := parseLocalTime(cw.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("current_weather.time: %w", err)
		}
		p.Current = &CurrentConditions{
			Temperature:   *cw.Temperature,
			WindSpeed:     *cw.WindSpeed,
			WindDirection: valueOr(cw.WindDirection, 0),
			ConditionCode: *cw.WeatherCode,
			ObservedAt:    observed,
		}
	}

	if h := raw.Hourly; h != nil {
		times, err := parseTimes(h.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("hourly.time: %w", err)
		}
		p.Hourly = &HourlyBlock{
			Time:                times,
			Temperature:         untilNull(h.Temperature),
			ApparentTemperature: untilNull(h.ApparentTemperature),
			Precipitation:       untilNull(h.Precipitation),
			ConditionCode:       untilNull(h.WeatherCode),
		}
	}

	if d := raw.Daily; d != nil {
		dates, err := parseTimes(d.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("daily.time: %w", err)
		}
		p.Daily = &DailyBlock{
			Date:          dates,
			TempMax:       untilNull(d.TempMax),
			TempMin:       untilNull(d.TempMin),
			ConditionCode: untilNull(d.WeatherCode),
		}
	}

	return p, nil
}

// untilNull copies vals up to the first null. The normalizer then truncates
// the block to its shortest array.
func untilNull[T any](vals []*T) []T {
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			break
		}
		out = append(out, *v)
	}
	return out
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// payloadLocation resolves the zone the service used for its local
// timestamps, falling back to the reported fixed offset.
func payloadLocation(name string, offsetSeconds int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if offsetSeconds == 0 {
		return time.UTC
	}
	return time.FixedZone(name, offsetSeconds)
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseTimes(raw []string, loc *time.Location) ([]time.Time, error) {
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		t, err := parseLocalTime(s, loc)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}
