package extract

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// maxLineBytes bounds a single export row; SOURCEURL can be long
const maxLineBytes = 1 << 20

// maxRecordedErrors caps how many row errors a result keeps for diagnostics
const maxRecordedErrors = 20

// RowErrorKind classifies why a row was skipped
type RowErrorKind int

const (
	RowMalformed    RowErrorKind = iota // Wrong column count
	RowBadTimestamp                     // DATEADDED missing or unparsable
)

// RowError describes a row the parser skipped
type RowError struct {
	Line   int
	Kind   RowErrorKind
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// RowResult holds the parsed rows of one export file plus skip counts
type RowResult struct {
	Rows         []model.RawEvent
	Malformed    int        // Wrong column count
	BadTimestamp int        // DATEADDED missing or unparsable
	Errors       []RowError // First few skipped rows
}

// Skipped returns the total number of skipped rows
func (r *RowResult) Skipped() int {
	return r.Malformed + r.BadTimestamp
}

// RowParser turns header-less tab-separated export rows into RawEvents
type RowParser struct {
	columns int
}

// NewRowParser creates a parser for the GDELT 2.0 event layout
func NewRowParser() *RowParser {
	return &RowParser{columns: model.NumColumns}
}

// Parse reads every row from r. Rows with the wrong column count, lines
// longer than maxLineBytes and rows with an unparsable DATEADDED are skipped
// and counted; only read failures of the underlying stream are returned as
// errors, together with the rows parsed so far.
func (p *RowParser) Parse(r io.Reader) (*RowResult, error) {
	result := &RowResult{Rows: []model.RawEvent{}}
	reader := bufio.NewReaderSize(r, 64*1024)

	line := 0
	for {
		text, tooLong, err := readLine(reader, maxLineBytes)
		if err != nil && err != io.EOF {
			return result, fmt.Errorf("read rows: %w", err)
		}
		atEOF := err == io.EOF
		if atEOF && text == "" && !tooLong {
			break
		}

		line++
		switch {
		case tooLong:
			result.record(RowError{Line: line, Kind: RowMalformed, Reason: fmt.Sprintf("line exceeds %d bytes", maxLineBytes)})
		case text != "":
			row, rowErr := p.parseRow(text)
			if rowErr != nil {
				rowErr.Line = line
				result.record(*rowErr)
			} else {
				result.Rows = append(result.Rows, row)
			}
		}

		if atEOF {
			break
		}
	}

	return result, nil
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed and discarded, reported through tooLong.
func readLine(reader *bufio.Reader, limit int) (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := reader.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > limit+2 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return strings.TrimRight(string(buf), "\r\n"), tooLong, err
	}
}

// ParseString is a convenience wrapper around Parse
func (p *RowParser) ParseString(s string) (*RowResult, error) {
	return p.Parse(strings.NewReader(s))
}

func (p *RowParser) parseRow(text string) (model.RawEvent, *RowError) {
	var row model.RawEvent

	fields := strings.Split(text, "\t")
	if len(fields) != p.columns {
		return row, &RowError{Kind: RowMalformed, Reason: fmt.Sprintf("expected %d columns, got %d", p.columns, len(fields))}
	}

	for i, col := range model.Columns {
		*col.Field(&row) = strings.TrimSpace(fields[i])
	}

	added, err := ParseDateAdded(row.DateAdded)
	if err != nil {
		return row, &RowError{Kind: RowBadTimestamp, Reason: err.Error()}
	}
	row.AddedAt = added

	return row, nil
}

func (r *RowResult) record(e RowError) {
	switch e.Kind {
	case RowMalformed:
		r.Malformed++
	case RowBadTimestamp:
		r.BadTimestamp++
	}
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, e)
	}
}

// ParseDateAdded parses a YYYYMMDDHHMMSS value as UTC
func ParseDateAdded(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing DATEADDED")
	}
	t, err := time.ParseInLocation(model.DateAddedLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DATEADDED %q: %w", s, err)
	}
	return t, nil
}
