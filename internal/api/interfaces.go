package api

import (
	"context"

	"github.com/neexbeast/weather-report/internal/report"
	"github.com/neexbeast/weather-report/internal/weather"
)

// ReportBuilder defines the report operations needed by handlers.
type ReportBuilder interface {
	Build(ctx context.Context, req report.Request) (*report.Report, error)
	Resolve(ctx context.Context, name string, maxResults int) ([]weather.GeocodeResult, error)
}

// cachePinger is the connectivity check behind the health endpoint.
type cachePinger interface {
	Ping(ctx context.Context) error
}
