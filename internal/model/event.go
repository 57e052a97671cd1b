package model

import "time"

// Unknown is the sentinel stored in text fields the upstream row left empty
const Unknown = "Unknown"

// NormalizedEvent is one event in the ICEWS-like schema shown by the dashboard.
// Numeric fields are pointers: nil means the upstream value was missing or
// unparsable, which is distinct from zero.
type NormalizedEvent struct {
	EventID       string    `json:"event_id"`
	Date          time.Time `json:"date"`
	CAMEOCode     string    `json:"cameo_code"` // Full upstream event code (e.g. "0211")
	EventType     string    `json:"event_type"` // CAMEO root label, "Other" if unmapped
	SourceName    string    `json:"source_name"`
	SourceCountry string    `json:"source_country"`
	TargetName    string    `json:"target_name"`
	TargetCountry string    `json:"target_country"`
	Country       string    `json:"country"` // Action geography country code
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Location      string    `json:"location"`
	Intensity     *float64  `json:"intensity,omitempty"`  // GoldsteinScale, -10..10
	Tone          *float64  `json:"tone,omitempty"`       // AvgTone
	QuadClass     int       `json:"quad_class,omitempty"` // 1-4, 0 when missing
	SourceURL     string    `json:"source_url,omitempty"`
	SourceSectors string    `json:"source_sectors"`
	TargetSectors string    `json:"target_sectors"`
}

// HasCoordinates reports whether both latitude and longitude are present
func (e *NormalizedEvent) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}
