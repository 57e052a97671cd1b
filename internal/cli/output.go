package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/gdeltwatch/internal/export"
	"github.com/ppiankov/gdeltwatch/internal/llm"
	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/stats"
)

// outputOptions selects what a one-shot refresh writes
type outputOptions struct {
	csvPath      string
	jsonPath     string
	briefing     bool
	briefingPath string
}

// printSummary writes a short human-readable report of a snapshot
func printSummary(w io.Writer, s *model.Snapshot) {
	d := s.Diagnostics
	summary := stats.Summarize(s.Events)

	fmt.Fprintf(w, "Snapshot at %s UTC (window %s, cutoff %s)\n",
		s.RefreshedAt.UTC().Format(export.DateLayout), s.Window, s.Cutoff.UTC().Format(export.DateLayout))
	fmt.Fprintf(w, "  Events:            %d (%d with coordinates)\n", summary.Total, summary.WithCoordinates)
	fmt.Fprintf(w, "  Archives:          %d of %d processed\n", d.ArchivesProcessed, d.ArchivesListed)
	fmt.Fprintf(w, "  Rows:              %d parsed, %d malformed, %d bad timestamp\n", d.RowsParsed, d.RowsMalformed, d.RowsBadTimestamp)
	fmt.Fprintf(w, "  Filtered:          %d outside window, %d duplicates, %d dropped\n", d.RowsOutsideWindow, d.Duplicates, d.RowsDropped)
	for _, sk := range d.Skipped {
		fmt.Fprintf(w, "  Skipped (%s):     %s: %s\n", sk.Stage, sk.URL, sk.Reason)
	}

	if s.Empty() {
		fmt.Fprintln(w, "\nNo events in the window.")
		return
	}

	fmt.Fprintln(w, "\nTop event types:")
	for i, c := range summary.EventTypes {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "  %-28s %d\n", c.Label, c.Count)
	}
	if len(summary.TopCountries) > 0 {
		fmt.Fprintln(w, "\nTop countries:")
		for i, c := range summary.TopCountries {
			if i == 5 {
				break
			}
			fmt.Fprintf(w, "  %-28s %d\n", c.Label, c.Count)
		}
	}
}

// writeOutputs writes the requested exports and briefing for a snapshot
func writeOutputs(ctx context.Context, w io.Writer, cfg *model.Config, s *model.Snapshot, opts outputOptions) error {
	if opts.csvPath != "" {
		if err := writeFile(opts.csvPath, func(f io.Writer) error { return export.WriteCSV(f, s.Events) }); err != nil {
			return fmt.Errorf("write CSV: %w", err)
		}
		fmt.Fprintf(w, "Wrote %d events to %s\n", len(s.Events), opts.csvPath)
	}

	if opts.jsonPath != "" {
		if err := writeFile(opts.jsonPath, func(f io.Writer) error { return export.WriteJSON(f, s) }); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		fmt.Fprintf(w, "Wrote snapshot to %s\n", opts.jsonPath)
	}

	if opts.briefing {
		return writeBriefing(ctx, w, cfg, s, opts.briefingPath)
	}
	return nil
}

func writeBriefing(ctx context.Context, w io.Writer, cfg *model.Config, s *model.Snapshot, path string) error {
	summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg))
	if err != nil {
		return fmt.Errorf("configure briefing: %w", err)
	}
	if !summarizer.IsEnabled() {
		return errors.New("briefing requested but llm.provider is not configured")
	}

	briefing, err := summarizer.GenerateBriefing(ctx, s)
	if err != nil {
		return fmt.Errorf("generate briefing: %w", err)
	}
	for _, warning := range briefing.Warnings {
		logging.Debug().Str("provider", briefing.Provider).Msg(warning)
	}

	doc := llm.RenderMarkdown(briefing)
	if doc == "" {
		fmt.Fprintf(w, "No briefing generated: %v\n", briefing.Warnings)
		return nil
	}

	if path == "" {
		_, err := io.WriteString(w, "\n"+doc)
		return err
	}
	if err := writeFile(path, func(f io.Writer) error {
		_, err := io.WriteString(f, doc)
		return err
	}); err != nil {
		return fmt.Errorf("write briefing: %w", err)
	}
	fmt.Fprintf(w, "Wrote briefing to %s\n", path)
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return write(f)
}
