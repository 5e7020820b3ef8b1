package weather

import (
	"encoding/json"
	"strings"
	"time"
)

// GeocodeResult is one candidate location returned by the geocoding service.
type GeocodeResult struct {
	Name        string  `json:"name"`
	Admin1      string  `json:"admin1,omitempty"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`
}

// Units selects the measurement system requested from the forecast service.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// ParseUnits accepts "metric" or "imperial" (case-insensitive); blank means metric.
func ParseUnits(s string) (Units, bool) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case "", Metric:
		return Metric, true
	case Imperial:
		return Imperial, true
	}
	return "", false
}

func (u Units) Temperature() string {
	if u == Imperial {
		return "°F"
	}
	return "°C"
}

func (u Units) WindSpeed() string {
	if u == Imperial {
		return "mph"
	}
	return "km/h"
}

func (u Units) Precipitation() string {
	if u == Imperial {
		return "in"
	}
	return "mm"
}

// ForecastQuery identifies one forecast request.
type ForecastQuery struct {
	Latitude  float64
	Longitude float64
	Timezone  string
	Units     Units
}

// CurrentConditions is the current_weather block of a forecast.
type CurrentConditions struct {
	Temperature   float64   `json:"temperature"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	ConditionCode int       `json:"condition_code"`
	ObservedAt    time.Time `json:"observed_at"`
}

// HourlyBlock holds the hourly parallel arrays as received. Arrays are not
// guaranteed to have equal length.
type HourlyBlock struct {
	Time                []time.Time
	Temperature         []float64
	ApparentTemperature []float64
	Precipitation       []float64
	ConditionCode       []int
}

// DailyBlock holds the daily parallel arrays as received.
type DailyBlock struct {
	Date          []time.Time
	TempMax       []float64
	TempMin       []float64
	ConditionCode []int
}

// ForecastPayload is the typed form of one forecast response.
// Current, Hourly and Daily are nil when the service omitted the block.
type ForecastPayload struct {
	Latitude         float64
	Longitude        float64
	Timezone         string
	UTCOffsetSeconds int
	Units            Units
	Current          *CurrentConditions
	Hourly           *HourlyBlock
	Daily            *DailyBlock
	Raw              json.RawMessage
}

// HourlyEntry is one row of the hourly series.
type HourlyEntry struct {
	Time                time.Time `json:"time"`
	Temperature         float64   `json:"temperature"`
	ApparentTemperature float64   `json:"apparent_temperature"`
	Precipitation       float64   `json:"precipitation"`
	ConditionCode       int       `json:"condition_code"`
}

// DailyEntry is one row of the daily series.
type DailyEntry struct {
	Date          time.Time `json:"date"`
	TempMax       float64   `json:"temp_max"`
	TempMin       float64   `json:"temp_min"`
	ConditionCode int       `json:"condition_code"`
}

type HourlySeries []HourlyEntry

type DailySeries []DailyEntry
