package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/neexbeast/weather-report/internal/report"
	"github.com/neexbeast/weather-report/internal/weather"
)

const (
	chartWidth   = 600
	chartHeight  = 220
	chartPadding = 16
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	reports ReportBuilder
	gate    *Gate
	log     *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(reports ReportBuilder, gate *Gate, log *slog.Logger) *Handlers {
	return &Handlers{
		reports: reports,
		gate:    gate,
		log:     log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type formValues struct {
	City     string
	Units    string
	Timezone string
}

// pageData is everything the dashboard template reads.
type pageData struct {
	Gate        bool
	GateWarning string
	Form        formValues
	Error       string
	Report      *report.Report
	Geometry    report.Geometry
	Coordinates string
	MapURL      string
	RawJSON     string
}

func renderPage(w http.ResponseWriter, status int, data pageData, log *slog.Logger) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error("rendering page failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// requestFromQuery reads a report request from the query string. A missing
// or malformed choice means no choice was made.
func requestFromQuery(q url.Values) report.Request {
	req := report.Request{
		City:     q.Get("city"),
		Units:    q.Get("units"),
		Timezone: q.Get("tz"),
		Choice:   report.NoChoice,
	}
	if c, err := strconv.Atoi(q.Get("choice")); err == nil && c >= 0 {
		req.Choice = c
	}
	return req
}

// dashboardRequest is requestFromQuery for the HTML form. The form keeps the
// options dropdown after the city is edited, so a choice only counts when
// choice_for names the city it was picked for.
func dashboardRequest(q url.Values) report.Request {
	req := requestFromQuery(q)
	if strings.TrimSpace(q.Get("choice_for")) != strings.TrimSpace(req.City) {
		req.Choice = report.NoChoice
	}
	return req
}

// errorStatus maps a report failure to an HTTP status and a user-facing message.
func errorStatus(err error) (int, string) {
	var verr *report.ValidationError
	var gerr *weather.GeocodingError
	var ferr *weather.ForecastError
	// Upstream errors wrap context errors, so those are checked first.
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The request timed out."
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &gerr):
		return http.StatusBadGateway, fmt.Sprintf("Geocoding failed: %v", gerr.Err)
	case errors.As(err, &ferr):
		return http.StatusBadGateway, fmt.Sprintf("Weather fetch failed: %v", ferr.Err)
	}
	return http.StatusInternalServerError, "internal server error"
}

// Dashboard handles GET /.
// Without a city parameter it renders the empty form; otherwise it runs the
// report and renders it inline.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pageData{Form: formValues{City: q.Get("city"), Units: q.Get("units"), Timezone: q.Get("tz")}}
	if !q.Has("city") {
		renderPage(w, http.StatusOK, data, h.log)
		return
	}

	rep, err := h.reports.Build(r.Context(), dashboardRequest(q))
	if err != nil {
		status, msg := errorStatus(err)
		h.log.Warn("report failed", "city", data.Form.City, "status", status, "err", err)
		data.Error = msg
		renderPage(w, status, data, h.log)
		return
	}

	data.Report = rep
	if rep.Status == report.StatusReady && rep.Place != nil {
		data.Geometry = rep.Chart.Geometry(chartWidth, chartHeight, chartPadding)
		data.Coordinates = fmt.Sprintf("%.4f, %.4f", rep.Place.Latitude, rep.Place.Longitude)
		data.MapURL = mapURL(rep.Place.Latitude, rep.Place.Longitude)
		data.RawJSON = prettyJSON(rep.Raw)
	}
	renderPage(w, http.StatusOK, data, h.log)
}

// Report handles GET /api/v1/report.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Build(r.Context(), requestFromQuery(r.URL.Query()))
	if err != nil {
		status, msg := errorStatus(err)
		h.log.Warn("report failed", "city", r.URL.Query().Get("city"), "status", status, "err", err)
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Geocode handles GET /api/v1/geocode.
func (h *Handlers) Geocode(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))

	results, err := h.reports.Resolve(r.Context(), name, count)
	if err != nil {
		status, msg := errorStatus(err)
		h.log.Warn("geocode failed", "name", name, "status", status, "err", err)
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	type candidate struct {
		weather.GeocodeResult
		Label string `json:"label"`
	}
	out := make([]candidate, len(results))
	for i, res := range results {
		out[i] = candidate{GeocodeResult: res, Label: report.Label(res)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// Unlock handles POST /unlock.
// A matching password sets the grant cookie and redirects to the dashboard;
// anything else re-renders the gate with a warning.
func (h *Handlers) Unlock(w http.ResponseWriter, r *http.Request) {
	if !h.gate.Enabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		renderPage(w, http.StatusBadRequest, pageData{Gate: true, GateWarning: "Enter password to continue"}, h.log)
		return
	}
	if !h.gate.CheckPassword(r.PostForm.Get("password")) {
		h.log.Warn("gate: wrong password", "remote", r.RemoteAddr)
		renderPage(w, http.StatusUnauthorized, pageData{Gate: true, GateWarning: "Incorrect password."}, h.log)
		return
	}
	http.SetCookie(w, h.gate.GrantCookie(r.TLS != nil))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func mapURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.4f&mlon=%.4f#map=10/%.4f/%.4f", lat, lon, lat, lon)
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// HealthHandlerFunc returns an http.HandlerFunc that checks cache connectivity.
func HealthHandlerFunc(store cachePinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		cacheStatus := "ok"
		if err := store.Ping(ctx); err != nil {
			log.Error("health check: cache ping failed", "err", err)
			cacheStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"cache":  cacheStatus,
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
