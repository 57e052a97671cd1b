package extract

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// tsvRow builds a well-formed export line with the given overrides
func tsvRow(id, dateAdded string, overrides map[string]string) string {
	var r model.RawEvent
	r.GlobalEventID = id
	r.DateAdded = dateAdded
	r.EventCode = "010"
	for name, value := range overrides {
		r.Set(name, value)
	}
	return strings.Join(r.Values(), "\t")
}

func TestRowParser_ValidRows(t *testing.T) {
	parser := NewRowParser()

	input := tsvRow("1001", "20240101120000", map[string]string{
		"Actor1Name":         "POLICE",
		"ActionGeo_Lat":      "48.85",
		"ActionGeo_FullName": "Paris, France",
	}) + "\n" + tsvRow("1002", "20240101121500", nil) + "\r\n"

	result, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(result.Rows))
	}

	first := result.Rows[0]
	if first.GlobalEventID != "1001" {
		t.Errorf("Expected id 1001, got %q", first.GlobalEventID)
	}
	if first.Actor1Name != "POLICE" {
		t.Errorf("Expected Actor1Name POLICE, got %q", first.Actor1Name)
	}
	if first.ActionGeoFullName != "Paris, France" {
		t.Errorf("Expected location to survive commas, got %q", first.ActionGeoFullName)
	}

	want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if !first.AddedAt.Equal(want) {
		t.Errorf("Expected AddedAt %v, got %v", want, first.AddedAt)
	}
	if first.AddedAt.Location() != time.UTC {
		t.Errorf("Expected UTC, got %v", first.AddedAt.Location())
	}

	if result.Rows[1].SourceURL != "" {
		t.Errorf("Expected empty SOURCEURL, got %q", result.Rows[1].SourceURL)
	}
	if result.Skipped() != 0 {
		t.Errorf("Expected no skipped rows, got %d", result.Skipped())
	}
}

func TestRowParser_MalformedRowsSkipped(t *testing.T) {
	parser := NewRowParser()

	short := strings.Join(make([]string, 58), "\t")
	long := tsvRow("3", "20240101120000", nil) + "\textra"

	input := strings.Join([]string{
		tsvRow("1", "20240101120000", nil),
		short,
		"",
		long,
		tsvRow("2", "20240101120100", nil),
	}, "\n")

	result, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("Expected 2 valid rows, got %d", len(result.Rows))
	}
	if result.Malformed != 2 {
		t.Errorf("Expected 2 malformed rows, got %d", result.Malformed)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 recorded errors, got %d", len(result.Errors))
	}
	if result.Errors[0].Line != 2 || result.Errors[1].Line != 4 {
		t.Errorf("Unexpected error lines: %+v", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Error(), "expected 61 columns, got 58") {
		t.Errorf("Unexpected error text: %v", result.Errors[0])
	}
}

func TestRowParser_BadTimestampDropped(t *testing.T) {
	parser := NewRowParser()

	input := strings.Join([]string{
		tsvRow("1", "not-a-date", nil),
		tsvRow("2", "", nil),
		tsvRow("3", "20241301000000", nil),
		tsvRow("4", "20240101120000", nil),
	}, "\n")

	result, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Rows) != 1 || result.Rows[0].GlobalEventID != "4" {
		t.Fatalf("Expected only row 4 to survive, got %+v", result.Rows)
	}
	if result.BadTimestamp != 3 {
		t.Errorf("Expected 3 bad timestamps, got %d", result.BadTimestamp)
	}
	for _, e := range result.Errors {
		if e.Kind != RowBadTimestamp {
			t.Errorf("Expected RowBadTimestamp, got %v", e.Kind)
		}
	}
}

func TestRowParser_EmptyInput(t *testing.T) {
	result, err := NewRowParser().ParseString("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Errorf("Expected empty non-nil rows, got %v", result.Rows)
	}
}

func TestRowParser_RecordedErrorsCapped(t *testing.T) {
	var lines []string
	for i := 0; i < maxRecordedErrors+5; i++ {
		lines = append(lines, "garbage")
	}

	result, err := NewRowParser().ParseString(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Malformed != maxRecordedErrors+5 {
		t.Errorf("Expected %d malformed, got %d", maxRecordedErrors+5, result.Malformed)
	}
	if len(result.Errors) != maxRecordedErrors {
		t.Errorf("Expected errors capped at %d, got %d", maxRecordedErrors, len(result.Errors))
	}
}

func TestRowParser_OversizedRowSkipped(t *testing.T) {
	long := tsvRow("2", "20240101120000", map[string]string{
		"SOURCEURL": "https://example.com/" + strings.Repeat("a", maxLineBytes),
	})
	input := strings.Join([]string{
		tsvRow("1", "20240101120000", nil),
		long,
		tsvRow("3", "20240101120000", nil),
	}, "\n") + "\n"

	result, err := NewRowParser().ParseString(input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].GlobalEventID != "1" || result.Rows[1].GlobalEventID != "3" {
		t.Errorf("Expected rows 1 and 3, got %q and %q", result.Rows[0].GlobalEventID, result.Rows[1].GlobalEventID)
	}
	if result.Malformed != 1 {
		t.Errorf("Expected 1 malformed row, got %d", result.Malformed)
	}
	if len(result.Errors) != 1 || result.Errors[0].Line != 2 {
		t.Errorf("Expected error on line 2, got %+v", result.Errors)
	}
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, errors.New("connection reset")
	}
	r.read = true
	return copy(p, r.data), nil
}

func TestRowParser_ReadErrorKeepsParsedRows(t *testing.T) {
	reader := &failingReader{data: tsvRow("1", "20240101120000", nil) + "\n"}

	result, err := NewRowParser().Parse(reader)
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Expected read error, got %v", err)
	}
	if result == nil || len(result.Rows) != 1 {
		t.Fatalf("Expected the parsed row to be kept, got %+v", result)
	}
}

func TestParseDateAdded(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"20240315093045", time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"2024-03-15", time.Time{}, true},
		{"20240315", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseDateAdded(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDateAdded(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseDateAdded(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
