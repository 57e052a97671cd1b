package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/export"
	"github.com/ppiankov/gdeltwatch/internal/llm"
	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/pipeline"
	"github.com/ppiankov/gdeltwatch/internal/query"
	"github.com/ppiankov/gdeltwatch/internal/stats"
	"github.com/ppiankov/gdeltwatch/internal/websocket"
)

// HealthStatus is the body of GET /api/v1/health
type HealthStatus struct {
	Status           string     `json:"status"`
	Version          string     `json:"version,omitempty"`
	Uptime           string     `json:"uptime"`
	HasSnapshot      bool       `json:"has_snapshot"`
	RefreshedAt      *time.Time `json:"refreshed_at,omitempty"`
	Events           int        `json:"events"`
	WebSocketClients int        `json:"websocket_clients"`
	BriefingEnabled  bool       `json:"briefing_enabled"`
}

// RefreshSummary is the body of a successful POST /api/v1/refresh
type RefreshSummary struct {
	RefreshedAt       time.Time              `json:"refreshed_at"`
	Cutoff            time.Time              `json:"cutoff"`
	Window            string                 `json:"window"`
	Events            int                    `json:"events"`
	ArchivesListed    int                    `json:"archives_listed"`
	ArchivesProcessed int                    `json:"archives_processed"`
	Skipped           []model.SkippedArchive `json:"skipped"`
	DurationMs        int64                  `json:"duration_ms"`
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	stats.Summary
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// MapResponse is the body of GET /api/v1/map
type MapResponse struct {
	Precision uint            `json:"precision"`
	Matched   int             `json:"matched"` // Events passing the filter, with or without coordinates
	Clusters  []stats.Cluster `json:"clusters"`
}

func summarizeRefresh(s *model.Snapshot) RefreshSummary {
	skipped := s.Diagnostics.Skipped
	if skipped == nil {
		skipped = []model.SkippedArchive{}
	}
	return RefreshSummary{
		RefreshedAt:       s.RefreshedAt,
		Cutoff:            s.Cutoff,
		Window:            s.Window.String(),
		Events:            len(s.Events),
		ArchivesListed:    s.Diagnostics.ArchivesListed,
		ArchivesProcessed: s.Diagnostics.ArchivesProcessed,
		Skipped:           skipped,
		DurationMs:        s.Diagnostics.Duration.Milliseconds(),
	}
}

// currentSnapshot writes a 503 and returns nil when no refresh has succeeded yet
func (s *Server) currentSnapshot(w http.ResponseWriter, r *http.Request) *model.Snapshot {
	snapshot := s.store.Current()
	if snapshot == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeNoSnapshot, "no data available; refresh first", nil)
	}
	return snapshot
}

// Health reports liveness and the current snapshot's age
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:          "ok",
		Version:         s.version,
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		BriefingEnabled: s.summarizer.IsEnabled(),
	}
	if s.hub != nil {
		health.WebSocketClients = s.hub.ClientCount()
	}

	var refreshedAt *time.Time
	if snapshot := s.store.Current(); snapshot != nil {
		at := snapshot.RefreshedAt
		refreshedAt = &at
		health.HasSnapshot = true
		health.RefreshedAt = refreshedAt
		health.Events = len(snapshot.Events)
	}
	respondSuccess(w, health, refreshedAt)
}

// Refresh runs the pipeline and replaces the snapshot
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Refresh(r.Context())
	if err != nil {
		var indexErr *pipeline.IndexFetchError
		switch {
		case errors.Is(err, ErrRefreshInProgress):
			respondError(w, r, http.StatusConflict, CodeRefreshInProgress, err.Error(), nil)
		case errors.As(err, &indexErr):
			s.notifyFailure(CodeIndexFetchFailed, "no data available")
			respondError(w, r, http.StatusBadGateway, CodeIndexFetchFailed, "no data available", err)
		default:
			s.notifyFailure(CodeRefreshFailed, "refresh failed")
			respondError(w, r, http.StatusInternalServerError, CodeRefreshFailed, "refresh failed", err)
		}
		return
	}

	summary := summarizeRefresh(snapshot)
	if s.hub != nil {
		s.hub.BroadcastRefreshCompleted(websocket.NewRefreshCompletedData(snapshot))
	}

	at := snapshot.RefreshedAt
	respondSuccess(w, summary, &at)
}

func (s *Server) notifyFailure(code, message string) {
	if s.hub != nil {
		s.hub.BroadcastRefreshFailed(code, message)
	}
}

// Events returns a filtered, paged slice of the snapshot
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	snapshot := s.currentSnapshot(w, r)
	if snapshot == nil {
		return
	}

	filter, err := query.FromValues(r.URL.Query())
	if err != nil {
		respondValidation(w, r, err)
		return
	}

	at := snapshot.RefreshedAt
	respondSuccess(w, filter.Apply(snapshot.Events), &at)
}

func respondValidation(w http.ResponseWriter, r *http.Request, err error) {
	var verr *query.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, &APIResponse{
			Status:   "error",
			Metadata: Metadata{Timestamp: time.Now().UTC()},
			Error: &APIError{
				Code:    CodeValidation,
				Message: verr.Error(),
				Details: verr.Fields,
			},
		})
		return
	}
	respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
}

// Stats returns the dashboard aggregates
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	snapshot := s.currentSnapshot(w, r)
	if snapshot == nil {
		return
	}

	at := snapshot.RefreshedAt
	respondSuccess(w, StatsResponse{
		Summary:     stats.Summarize(snapshot.Events),
		Diagnostics: snapshot.Diagnostics,
	}, &at)
}

// Map returns geohash clusters of events with coordinates. It accepts the
// Events filter parameters, so the intensity range narrows the plotted points.
func (s *Server) Map(w http.ResponseWriter, r *http.Request) {
	snapshot := s.currentSnapshot(w, r)
	if snapshot == nil {
		return
	}

	precision := s.mapPrecision
	if raw := r.URL.Query().Get("precision"); raw != "" {
		p, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || p < stats.MinPrecision || p > stats.MaxPrecision {
			respondError(w, r, http.StatusBadRequest, CodeValidation,
				fmt.Sprintf("precision must be between %d and %d", stats.MinPrecision, stats.MaxPrecision), nil)
			return
		}
		precision = uint(p)
	}

	filter, err := query.FromValues(r.URL.Query())
	if err != nil {
		respondValidation(w, r, err)
		return
	}
	filter.Limit, filter.Offset = 0, 0
	page := filter.Apply(snapshot.Events)

	at := snapshot.RefreshedAt
	respondSuccess(w, MapResponse{
		Precision: precision,
		Matched:   page.Total,
		Clusters:  stats.Clusters(page.Events, precision),
	}, &at)
}

// ExportCSV downloads the snapshot's events, optionally filtered with the
// same parameters as Events
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	snapshot := s.currentSnapshot(w, r)
	if snapshot == nil {
		return
	}

	filter, err := query.FromValues(r.URL.Query())
	if err != nil {
		respondValidation(w, r, err)
		return
	}
	page := filter.Apply(snapshot.Events)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, page.Events); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "export failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(time.Now().UTC())))
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("failed to write CSV export")
	}
}

// ExportJSON downloads the full snapshot document
func (s *Server) ExportJSON(w http.ResponseWriter, r *http.Request) {
	snapshot := s.currentSnapshot(w, r)
	if snapshot == nil {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, snapshot); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "export failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.JSONFileName(time.Now().UTC())))
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("failed to write JSON export")
	}
}

// Briefing summarizes the current snapshot with the configured LLM.
// format=markdown returns the rendered document instead of JSON.
func (s *Server) Briefing(w http.ResponseWriter, r *http.Request) {
	if !s.summarizer.IsEnabled() {
		respondError(w, r, http.StatusNotFound, CodeBriefingDisabled, "briefing is not configured", nil)
		return
	}

	snapshot := s.currentSnapshot(w, r)
	if snapshot == nil {
		return
	}

	briefing, err := s.summarizer.GenerateBriefing(r.Context(), snapshot)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "briefing failed", err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if _, err := w.Write([]byte(llm.RenderMarkdown(briefing))); err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("failed to write briefing")
		}
		return
	}

	at := snapshot.RefreshedAt
	respondSuccess(w, briefing, &at)
}

// WebSocket upgrades the connection and subscribes it to refresh notifications
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeInternal, "notifications are not enabled", nil)
		return
	}
	websocket.ServeWS(s.hub, s.upgrader, w, r)
}
