package model

import "time"

// Snapshot is the normalized result of one refresh.
// Events is never nil; an empty snapshot is a successful refresh with no data.
type Snapshot struct {
	Events      []NormalizedEvent `json:"events"`
	RefreshedAt time.Time         `json:"refreshed_at"`
	Window      time.Duration     `json:"window"`
	Cutoff      time.Time         `json:"cutoff"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}

// Empty reports whether the snapshot holds no events
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Events) == 0
}

// Diagnostics folds per-archive and per-row outcomes of a refresh
type Diagnostics struct {
	IndexURL          string           `json:"index_url,omitempty"`
	ArchivesListed    int              `json:"archives_listed"`
	ArchivesProcessed int              `json:"archives_processed"`
	Skipped           []SkippedArchive `json:"skipped,omitempty"`
	RowsParsed        int              `json:"rows_parsed"`
	RowsMalformed     int              `json:"rows_malformed"`     // Wrong column count
	RowsBadTimestamp  int              `json:"rows_bad_timestamp"` // Unparsable DATEADDED
	RowsOutsideWindow int              `json:"rows_outside_window"`
	Duplicates        int              `json:"duplicates"`
	RowsDropped       int              `json:"rows_dropped"` // Missing event id or timestamp after adaptation
	Duration          time.Duration    `json:"duration"`
}

// SkippedArchive records an archive the refresh could not use
type SkippedArchive struct {
	URL    string `json:"url"`
	Stage  string `json:"stage"` // "fetch" or "decode"
	Reason string `json:"reason"`
}
