// Package export writes normalized events as CSV downloads and JSON
// snapshots, and reads exported CSV back.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// DateLayout is the timestamp format used in exported files (UTC)
const DateLayout = "2006-01-02 15:04:05"

// Header is the exported column header, in output order
var Header = []string{
	"Event ID", "Date", "CAMEO Code", "Event Type",
	"Source Name", "Source Country", "Target Name", "Target Country",
	"Country", "Latitude", "Longitude", "Location",
	"Intensity", "Tone", "Quad Class", "Source URL",
	"Source Sectors", "Target Sectors",
}

// FileName returns the download name for an export taken at t
func FileName(t time.Time) string {
	return "gdelt_events_" + t.UTC().Format("20060102_150405") + ".csv"
}

// WriteCSV writes events with the header row. Missing numeric values are
// empty cells.
func WriteCSV(w io.Writer, events []model.NormalizedEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range events {
		if err := cw.Write(record(&events[i])); err != nil {
			return fmt.Errorf("write event %s: %w", events[i].EventID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func record(e *model.NormalizedEvent) []string {
	quad := ""
	if e.QuadClass != 0 {
		quad = strconv.Itoa(e.QuadClass)
	}

	return []string{
		e.EventID,
		e.Date.UTC().Format(DateLayout),
		e.CAMEOCode,
		e.EventType,
		e.SourceName,
		e.SourceCountry,
		e.TargetName,
		e.TargetCountry,
		e.Country,
		formatFloat(e.Latitude),
		formatFloat(e.Longitude),
		e.Location,
		formatFloat(e.Intensity),
		formatFloat(e.Tone),
		quad,
		e.SourceURL,
		e.SourceSectors,
		e.TargetSectors,
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ReadCSV parses a file produced by WriteCSV
func ReadCSV(r io.Reader) ([]model.NormalizedEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range Header {
		if head[i] != name {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, head[i], name)
		}
	}

	events := []model.NormalizedEvent{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		event, err := parseRecord(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, event)
	}

	return events, nil
}

func parseRecord(rec []string) (model.NormalizedEvent, error) {
	date, err := time.ParseInLocation(DateLayout, rec[1], time.UTC)
	if err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("parse date: %w", err)
	}

	e := model.NormalizedEvent{
		EventID:       rec[0],
		Date:          date,
		CAMEOCode:     rec[2],
		EventType:     rec[3],
		SourceName:    rec[4],
		SourceCountry: rec[5],
		TargetName:    rec[6],
		TargetCountry: rec[7],
		Country:       rec[8],
		Location:      rec[11],
		SourceURL:     rec[15],
		SourceSectors: rec[16],
		TargetSectors: rec[17],
	}

	floats := []struct {
		dst **float64
		col int
	}{
		{&e.Latitude, 9}, {&e.Longitude, 10}, {&e.Intensity, 12}, {&e.Tone, 13},
	}
	for _, f := range floats {
		if rec[f.col] == "" {
			continue
		}
		v, err := strconv.ParseFloat(rec[f.col], 64)
		if err != nil {
			return model.NormalizedEvent{}, fmt.Errorf("parse %s: %w", Header[f.col], err)
		}
		*f.dst = &v
	}

	if rec[14] != "" {
		q, err := strconv.Atoi(rec[14])
		if err != nil {
			return model.NormalizedEvent{}, fmt.Errorf("parse %s: %w", Header[14], err)
		}
		e.QuadClass = q
	}

	return e, nil
}
