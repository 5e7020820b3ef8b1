package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/neexbeast/weather-report/internal/weather"
)

const (
	chartHours     = 24
	chartTickEvery = 6
)

// ChartPoint is one hour plotted on the short-range chart.
type ChartPoint struct {
	Time                time.Time `json:"time"`
	Temperature         float64   `json:"temperature"`
	ApparentTemperature float64   `json:"apparent_temperature"`
}

// Chart is the next-24-hours view of the hourly series.
type Chart struct {
	Placeholder     string       `json:"placeholder,omitempty"`
	TemperatureUnit string       `json:"temperature_unit,omitempty"`
	Points          []ChartPoint `json:"points,omitempty"`
}

// BuildChart keeps the hourly entries at or after now, at most 24 of them.
func BuildChart(hourly weather.HourlySeries, now time.Time, units weather.Units) Chart {
	if len(hourly) == 0 {
		return Chart{Placeholder: placeholderNoHourly}
	}

	points := make([]ChartPoint, 0, chartHours)
	for _, h := range hourly {
		if h.Time.Before(now) {
			continue
		}
		points = append(points, ChartPoint{
			Time:                h.Time,
			Temperature:         h.Temperature,
			ApparentTemperature: h.ApparentTemperature,
		})
		if len(points) == chartHours {
			break
		}
	}

	if len(points) == 0 {
		return Chart{Placeholder: placeholderNoNext24h}
	}
	return Chart{TemperatureUnit: units.Temperature(), Points: points}
}

// Tick is a labelled position on the time axis.
type Tick struct {
	X     float64
	Label string
}

// Geometry holds SVG coordinates for the two chart lines. Each line is
// scaled to its own min/max.
type Geometry struct {
	Width, Height            float64
	Temperature              string
	Apparent                 string
	TempMin, TempMax         float64
	ApparentMin, ApparentMax float64
	Ticks                    []Tick
}

// Geometry lays the chart out in a width x height box with pad on each side.
func (c Chart) Geometry(width, height, pad float64) Geometry {
	g := Geometry{Width: width, Height: height}
	if len(c.Points) == 0 {
		return g
	}

	temps := make([]float64, len(c.Points))
	apparent := make([]float64, len(c.Points))
	for i, p := range c.Points {
		temps[i] = p.Temperature
		apparent[i] = p.ApparentTemperature
	}

	g.TempMin, g.TempMax = bounds(temps)
	g.ApparentMin, g.ApparentMax = bounds(apparent)

	xs := make([]float64, len(c.Points))
	for i := range c.Points {
		xs[i] = xAt(i, len(c.Points), width, pad)
	}

	g.Temperature = polyline(xs, temps, g.TempMin, g.TempMax, height, pad)
	g.Apparent = polyline(xs, apparent, g.ApparentMin, g.ApparentMax, height, pad)

	for i := 0; i < len(c.Points); i += chartTickEvery {
		g.Ticks = append(g.Ticks, Tick{X: xs[i], Label: c.Points[i].Time.Format("15:04")})
	}
	return g
}

func bounds(vals []float64) (lo, hi float64) {
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

func xAt(i, n int, width, pad float64) float64 {
	if n == 1 {
		return width / 2
	}
	return pad + float64(i)*(width-2*pad)/float64(n-1)
}

func yAt(v, lo, hi, height, pad float64) float64 {
	if hi == lo {
		return height / 2
	}
	return pad + (hi-v)/(hi-lo)*(height-2*pad)
}

func polyline(xs, vals []float64, lo, hi, height, pad float64) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(xs[i], 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(yAt(v, lo, hi, height, pad), 'f', 1, 64))
	}
	return b.String()
}
