package report

import (
	"time"

	"github.com/neexbeast/weather-report/internal/weather"
	"github.com/neexbeast/weather-report/internal/weathercode"
)

const (
	tableDays = 7

	placeholderNoCurrent = "No current weather found for this location."
	placeholderNoHourly  = "No hourly data available."
	placeholderNoNext24h = "No next-24-hour data available."
	placeholderNoDaily   = "No daily data available."
)

// Card is the current-conditions summary. Placeholder is set instead of the
// data fields when the forecast carried no current block.
type Card struct {
	Placeholder     string    `json:"placeholder,omitempty"`
	Glyph           string    `json:"glyph,omitempty"`
	Place           string    `json:"place,omitempty"`
	Temperature     float64   `json:"temperature"`
	TemperatureUnit string    `json:"temperature_unit,omitempty"`
	WindSpeed       float64   `json:"wind_speed"`
	WindSpeedUnit   string    `json:"wind_speed_unit,omitempty"`
	Description     string    `json:"description,omitempty"`
	ObservedAt      time.Time `json:"observed_at"`
	Code            int       `json:"code"`
}

// BuildCard builds the current-conditions card for place.
func BuildCard(p *weather.ForecastPayload, place string) Card {
	if p == nil || p.Current == nil {
		return Card{Placeholder: placeholderNoCurrent}
	}
	cw := p.Current
	return Card{
		Glyph:           weathercode.Glyph(cw.ConditionCode),
		Place:           place,
		Temperature:     cw.Temperature,
		TemperatureUnit: p.Units.Temperature(),
		WindSpeed:       cw.WindSpeed,
		WindSpeedUnit:   p.Units.WindSpeed(),
		Description:     weathercode.Describe(cw.ConditionCode),
		ObservedAt:      cw.ObservedAt,
		Code:            cw.ConditionCode,
	}
}

// TableRow is one day of the multi-day summary.
type TableRow struct {
	Date  string  `json:"date"`
	Glyph string  `json:"glyph"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
}

// Table is the multi-day summary.
type Table struct {
	Placeholder     string     `json:"placeholder,omitempty"`
	TemperatureUnit string     `json:"temperature_unit,omitempty"`
	Rows            []TableRow `json:"rows,omitempty"`
}

// BuildTable takes at most the first seven days of daily.
func BuildTable(daily weather.DailySeries, units weather.Units) Table {
	if len(daily) == 0 {
		return Table{Placeholder: placeholderNoDaily}
	}

	n := min(len(daily), tableDays)
	rows := make([]TableRow, n)
	for i, d := range daily[:n] {
		rows[i] = TableRow{
			Date:  d.Date.Format(time.DateOnly),
			Glyph: weathercode.Glyph(d.ConditionCode),
			High:  d.TempMax,
			Low:   d.TempMin,
		}
	}
	return Table{TemperatureUnit: units.Temperature(), Rows: rows}
}
