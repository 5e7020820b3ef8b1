package report

import (
	"fmt"

	"github.com/neexbeast/weather-report/internal/weather"
)

// NoChoice marks a request in which the user has not picked a candidate yet.
const NoChoice = -1

// SelectionState is the outcome of resolving geocoding candidates to one place.
type SelectionState int

const (
	Selected SelectionState = iota
	NotFound
	NeedsChoice
)

func (s SelectionState) String() string {
	switch s {
	case Selected:
		return "selected"
	case NotFound:
		return "not_found"
	case NeedsChoice:
		return "needs_choice"
	}
	return fmt.Sprintf("SelectionState(%d)", int(s))
}

// Select picks one candidate. A single candidate is selected without asking;
// several require choice to be a valid index.
func Select(results []weather.GeocodeResult, choice int) (weather.GeocodeResult, SelectionState) {
	switch {
	case len(results) == 0:
		return weather.GeocodeResult{}, NotFound
	case len(results) == 1:
		return results[0], Selected
	case choice >= 0 && choice < len(results):
		return results[choice], Selected
	}
	return weather.GeocodeResult{}, NeedsChoice
}

// Label renders a candidate for the disambiguation list, e.g.
// "Springfield, Illinois United States (39.802,-89.644)".
func Label(r weather.GeocodeResult) string {
	region := r.Country
	if r.Admin1 != "" {
		region = r.Admin1 + " " + r.Country
	}
	return fmt.Sprintf("%s, %s (%.3f,%.3f)", r.Name, region, r.Latitude, r.Longitude)
}

// PlaceLabel renders the selected place, e.g. "London, England, United Kingdom".
func PlaceLabel(r weather.GeocodeResult) string {
	if r.Admin1 == "" {
		return r.Name + ", " + r.Country
	}
	return r.Name + ", " + r.Admin1 + ", " + r.Country
}

// Option is one entry of the disambiguation list.
type Option struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

func options(results []weather.GeocodeResult) []Option {
	opts := make([]Option, len(results))
	for i, r := range results {
		opts[i] = Option{Index: i, Label: Label(r)}
	}
	return opts
}
