package adapt

import (
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// Result holds adapted events and the number of rows dropped for missing
// mandatory fields
type Result struct {
	Events  []model.NormalizedEvent
	Dropped int
}

// ICEWSAdapter maps merged GDELT rows onto the ICEWS-like event schema
type ICEWSAdapter struct{}

// NewICEWSAdapter creates a new ICEWS schema adapter
func NewICEWSAdapter() *ICEWSAdapter {
	return &ICEWSAdapter{}
}

// Name returns the adapter name
func (a *ICEWSAdapter) Name() string {
	return "icews"
}

// Adapt converts every row of the merged table. Input order is preserved.
func (a *ICEWSAdapter) Adapt(table model.MergedTable) Result {
	result := Result{Events: make([]model.NormalizedEvent, 0, len(table.Rows))}

	for i := range table.Rows {
		event := a.AdaptRow(&table.Rows[i])
		if !valid(&event) {
			result.Dropped++
			continue
		}
		result.Events = append(result.Events, event)
	}

	return result
}

// AdaptRow maps a single row. Sentinel fill happens here, so optional
// fields never cause the row to be dropped later.
func (a *ICEWSAdapter) AdaptRow(row *model.RawEvent) model.NormalizedEvent {
	return model.NormalizedEvent{
		EventID:       strings.TrimSpace(row.GlobalEventID),
		Date:          row.AddedAt,
		CAMEOCode:     row.EventCode,
		EventType:     EventTypeLabel(row.EventCode),
		SourceName:    orUnknown(row.Actor1Name),
		SourceCountry: orUnknown(row.Actor1CountryCode),
		TargetName:    orUnknown(row.Actor2Name),
		TargetCountry: orUnknown(row.Actor2CountryCode),
		Country:       orUnknown(row.ActionGeoCountryCode),
		Latitude:      parseFloat(row.ActionGeoLat),
		Longitude:     parseFloat(row.ActionGeoLong),
		Location:      orUnknown(row.ActionGeoFullName),
		Intensity:     parseFloat(row.GoldsteinScale),
		Tone:          parseFloat(row.AvgTone),
		QuadClass:     parseQuadClass(row.QuadClass),
		SourceURL:     row.SourceURL,
		SourceSectors: model.Unknown,
		TargetSectors: model.Unknown,
	}
}

// valid reports whether the mandatory fields are present
func valid(e *model.NormalizedEvent) bool {
	return e.EventID != "" && !e.Date.IsZero() && e.EventType != ""
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.Unknown
	}
	return s
}

// parseFloat returns nil for empty, unparsable or non-finite values, never zero
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseQuadClass(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > 4 {
		return 0
	}
	return v
}
