package export

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// snapshotDocument is the JSON shape of an exported snapshot
type snapshotDocument struct {
	RefreshedAt time.Time               `json:"refreshed_at"`
	Window      string                  `json:"window"`
	Cutoff      time.Time               `json:"cutoff"`
	Count       int                     `json:"count"`
	Events      []model.NormalizedEvent `json:"events"`
	Diagnostics diagnosticsDocument     `json:"diagnostics"`
}

type diagnosticsDocument struct {
	IndexURL          string                 `json:"index_url,omitempty"`
	ArchivesListed    int                    `json:"archives_listed"`
	ArchivesProcessed int                    `json:"archives_processed"`
	Skipped           []model.SkippedArchive `json:"skipped"`
	RowsParsed        int                    `json:"rows_parsed"`
	RowsMalformed     int                    `json:"rows_malformed"`
	RowsBadTimestamp  int                    `json:"rows_bad_timestamp"`
	RowsOutsideWindow int                    `json:"rows_outside_window"`
	Duplicates        int                    `json:"duplicates"`
	RowsDropped       int                    `json:"rows_dropped"`
	DurationMs        int64                  `json:"duration_ms"`
}

// JSONFileName returns the download name for a JSON export taken at t
func JSONFileName(t time.Time) string {
	return "gdelt_snapshot_" + t.UTC().Format("20060102_150405") + ".json"
}

// WriteJSON writes the snapshot as an indented JSON document
func WriteJSON(w io.Writer, s *model.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document(s)); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Document converts a snapshot to its exported JSON shape
func Document(s *model.Snapshot) any {
	d := s.Diagnostics
	skipped := d.Skipped
	if skipped == nil {
		skipped = []model.SkippedArchive{}
	}
	events := s.Events
	if events == nil {
		events = []model.NormalizedEvent{}
	}

	return snapshotDocument{
		RefreshedAt: s.RefreshedAt,
		Window:      s.Window.String(),
		Cutoff:      s.Cutoff,
		Count:       len(events),
		Events:      events,
		Diagnostics: diagnosticsDocument{
			IndexURL:          d.IndexURL,
			ArchivesListed:    d.ArchivesListed,
			ArchivesProcessed: d.ArchivesProcessed,
			Skipped:           skipped,
			RowsParsed:        d.RowsParsed,
			RowsMalformed:     d.RowsMalformed,
			RowsBadTimestamp:  d.RowsBadTimestamp,
			RowsOutsideWindow: d.RowsOutsideWindow,
			Duplicates:        d.Duplicates,
			RowsDropped:       d.RowsDropped,
			DurationMs:        d.Duration.Milliseconds(),
		},
	}
}
