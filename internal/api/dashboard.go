package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ppiankov/gdeltwatch/internal/logging"
)

//go:embed web/index.html
var webFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

type dashboardData struct {
	Title           string
	Window          string
	Version         string
	BriefingEnabled bool
}

// Dashboard renders the single-page dashboard; data is loaded from the API
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{
		Title:           "GDELT Event Monitor",
		Window:          s.window.String(),
		Version:         s.version,
		BriefingEnabled: s.summarizer.IsEnabled(),
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "render failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("failed to write dashboard")
	}
}
