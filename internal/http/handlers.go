package http

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"pulse/internal/core"
	plog "pulse/internal/log"
)

var templateFuncs = template.FuncMap{
	"formatCount":  formatCount,
	"formatAmount": formatAmount,
}

type indexPage struct {
	Dimensions     core.Dimensions
	Version        uint64
	Degraded       bool
	DegradedReason string
	LoadedAt       time.Time
	Summary        summaryView
}

// render executes a named template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		InternalServerError(r, "templates unavailable").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		plog.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			plog.FieldOperation, plog.OpRender, "template", name, plog.FieldError, err)
		InternalServerError(r, "render failed").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	res := s.dashboard.Dashboard(r.Context(), core.FilterSelection{})
	s.render(w, r, "index.html", indexPage{
		Dimensions:     s.dashboard.Dimensions(),
		Version:        res.Version,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		LoadedAt:       res.LoadedAt,
		Summary:        newSummaryView(res),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	res := s.dashboard.Dashboard(r.Context(), sel)
	s.render(w, r, "summary.html", newSummaryView(res))
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.dashboard.Dimensions())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	JSON(w, newDashboardJSON(s.dashboard.Dashboard(r.Context(), sel)))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	snap := s.dashboard.Snapshot()
	records := s.dashboard.Records(sel)
	if records == nil {
		records = []core.TransactionRecord{}
	}
	JSON(w, map[string]any{
		"version": snap.Version,
		"rows":    len(records),
		"records": records,
	})
}

func (s *Server) handleLoadReport(w http.ResponseWriter, r *http.Request) {
	JSON(w, newReportJSON(s.dashboard.LoadReport()))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := plog.FromContext(ctx)

	snap, err := s.dashboard.Reload(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Manual reload failed", plog.FieldOperation, plog.OpReload, plog.FieldError, err)
		InternalServerError(r, "reload failed: "+err.Error()).
			TriggerNotification(NotificationError, "Reload failed", 5000).
			Write(w)
		return
	}

	notifType, message := NotificationSuccess, "Dataset reloaded"
	if snap.Degraded() {
		notifType, message = NotificationWarning, "Dataset reloaded in degraded mode: "+snap.Report.DegradedReason
	}
	logger.InfoContext(ctx, "Manual reload finished",
		plog.FieldOperation, plog.OpReload,
		plog.FieldVersion, snap.Version,
		plog.FieldRecords, len(snap.Records),
		"degraded", snap.Degraded())

	b := NewHTMXResponse().
		TriggerDatasetReloaded(snap.Version, snap.Degraded()).
		TriggerNotification(notifType, message, 3000)
	if isHTMX(r) {
		b.BodyHTML(`<span class="reload-status">` + template.HTMLEscapeString(message) + `</span>`)
	} else {
		b.BodyJSON(map[string]any{
			"version":         snap.Version,
			"records":         len(snap.Records),
			"degraded":        snap.Degraded(),
			"degraded_reason": snap.Report.DegradedReason,
		})
	}
	b.Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics := s.tracer.GetMetrics()
	JSON(w, map[string]any{
		"status":              "ok",
		"uptime_seconds":      int64(time.Since(s.started).Seconds()),
		"requests":            metrics.TotalRequests,
		"avg_response_ms":     metrics.AverageResponseTime.Milliseconds(),
		"suspicious_requests": s.detector.SuspiciousRequests(),
		"rate_limited":        s.rateLimiter.Rejected(),
	})
}

// handleReady answers 503 until a first load attempt has produced a snapshot.
// A degraded snapshot still serves, so it is reported as ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		NewHTMXResponse().Status(http.StatusServiceUnavailable).
			BodyJSON(map[string]string{"status": "templates not loaded"}).Write(w)
		return
	}
	snap := s.dashboard.Snapshot()
	if snap.Version == 0 {
		NewHTMXResponse().Status(http.StatusServiceUnavailable).
			BodyJSON(map[string]string{"status": "loading"}).Write(w)
		return
	}
	status := "ready"
	if snap.Degraded() {
		status = "degraded"
	}
	JSON(w, map[string]any{
		"status":      status,
		"version":     snap.Version,
		"records":     len(snap.Records),
		"loaded_at":   snap.LoadedAt,
		"fingerprint": snap.Fingerprint,
	})
}
