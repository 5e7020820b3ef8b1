package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neexbeast/weather-report/internal/weather"
	"github.com/neexbeast/weather-report/internal/weathercode"
)

const (
	defaultMaxResults = 5
	defaultTimezone   = "UTC"

	notFoundMessage    = "Location not found. Try adding country or state (e.g., 'Springfield, IL')."
	needsChoiceMessage = "Multiple matches found, choose one."
)

// Geocoder resolves a place name to candidate locations.
type Geocoder interface {
	Resolve(ctx context.Context, name string, maxResults int) ([]weather.GeocodeResult, error)
}

// Forecaster retrieves a forecast for a location.
type Forecaster interface {
	Fetch(ctx context.Context, q weather.ForecastQuery) (*weather.ForecastPayload, error)
}

// Status tells the caller which parts of a Report are populated.
type Status string

const (
	StatusReady       Status = "ready"
	StatusNotFound    Status = "not_found"
	StatusNeedsChoice Status = "needs_choice"
)

// Request is one user-initiated report request.
type Request struct {
	City     string
	Units    string
	Timezone string
	Choice   int
}

// Report is everything rendered for one request.
type Report struct {
	Status     Status                 `json:"status"`
	Message    string                 `json:"message,omitempty"`
	Query      string                 `json:"query"`
	Options    []Option               `json:"options,omitempty"`
	Place      *weather.GeocodeResult `json:"place,omitempty"`
	PlaceLabel string                 `json:"place_label,omitempty"`
	Units      weather.Units          `json:"units"`
	Timezone   string                 `json:"timezone"`
	Card       Card                   `json:"card"`
	Chart      Chart                  `json:"chart"`
	Table      Table                  `json:"table"`
	Raw        json.RawMessage        `json:"-"`
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	MaxResults int
	Now        func() time.Time
}

// Service runs the resolve, select, fetch and render steps for one request.
type Service struct {
	geo        Geocoder
	forecast   Forecaster
	maxResults int
	now        func() time.Time
	log        *slog.Logger
}

// NewService constructs a Service.
func NewService(geo Geocoder, forecast Forecaster, log *slog.Logger, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		geo:        geo,
		forecast:   forecast,
		maxResults: opts.MaxResults,
		now:        opts.Now,
		log:        log,
	}
}

// Resolve validates name and returns the geocoding candidates for it.
func (s *Service) Resolve(ctx context.Context, name string, maxResults int) ([]weather.GeocodeResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "city", Message: "please enter a city name"}
	}
	if maxResults <= 0 || maxResults > 100 {
		maxResults = s.maxResults
	}
	return s.geo.Resolve(ctx, name, maxResults)
}

// Build runs the whole report flow. Soft outcomes (no match, ambiguous
// match) come back as a Report with the matching Status; hard failures
// come back as *ValidationError, *weather.GeocodingError or
// *weather.ForecastError.
func (s *Service) Build(ctx context.Context, req Request) (*Report, error) {
	start := s.now()

	city := strings.TrimSpace(req.City)
	if city == "" {
		return nil, &ValidationError{Field: "city", Message: "please enter a city name"}
	}

	units, ok := weather.ParseUnits(req.Units)
	if !ok {
		return nil, &ValidationError{Field: "units", Message: fmt.Sprintf("unsupported units %q", req.Units)}
	}

	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}

	rep := &Report{Query: city, Units: units, Timezone: tz}

	matches, err := s.geo.Resolve(ctx, city, s.maxResults)
	if err != nil {
		return nil, err
	}

	place, state := Select(matches, req.Choice)
	switch state {
	case NotFound:
		s.log.Info("no location match", "city", city)
		rep.Status = StatusNotFound
		rep.Message = notFoundMessage
		return rep, nil
	case NeedsChoice:
		rep.Status = StatusNeedsChoice
		rep.Message = needsChoiceMessage
		rep.Options = options(matches)
		return rep, nil
	}

	rep.Place = &place
	rep.PlaceLabel = PlaceLabel(place)

	payload, err := s.forecast.Fetch(ctx, weather.ForecastQuery{
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		Timezone:  tz,
		Units:     units,
	})
	if err != nil {
		return nil, err
	}

	if cw := payload.Current; cw != nil && !weathercode.Known(cw.ConditionCode) {
		s.log.Debug("unknown weather code", "code", cw.ConditionCode, "place", rep.PlaceLabel)
	}

	rep.Status = StatusReady
	rep.Raw = payload.Raw
	rep.Card = BuildCard(payload, rep.PlaceLabel)
	rep.Chart = BuildChart(weather.ToHourlySeries(payload), s.now(), units)
	rep.Table = BuildTable(weather.ToDailySeries(payload), units)

	s.log.Info("report built",
		"city", city,
		"place", rep.PlaceLabel,
		"units", units,
		"timezone", tz,
		"duration", s.now().Sub(start),
	)
	return rep, nil
}
