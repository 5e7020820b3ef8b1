package weather

import "fmt"

// GeocodingError reports a failed location lookup. The flow that triggered it
// halts; the cause is shown to the user.
type GeocodingError struct {
	Name string
	Err  error
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("geocoding %q: %v", e.Name, e.Err)
}

func (e *GeocodingError) Unwrap() error { return e.Err }

// ForecastError reports a failed forecast retrieval.
type ForecastError struct {
	Latitude  float64
	Longitude float64
	Err       error
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("forecast for (%.4f,%.4f): %v", e.Latitude, e.Longitude, e.Err)
}

func (e *ForecastError) Unwrap() error { return e.Err }

// StatusError is returned when an upstream answers with a non-200 status.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("upstream returned status %d", e.Code)
}
