package pipeline

import "fmt"

// Archive processing stages reported in ArchiveError and diagnostics
const (
	StageFetch  = "fetch"
	StageDecode = "decode"
)

// StatusError is returned when the upstream answers with a non-2xx status
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// IndexFetchError means the feed index could not be retrieved. It aborts
// the whole refresh; callers surface it as "no data available".
type IndexFetchError struct {
	URL string
	Err error
}

func (e *IndexFetchError) Error() string {
	return fmt.Sprintf("fetch index %s: %v", e.URL, e.Err)
}

func (e *IndexFetchError) Unwrap() error {
	return e.Err
}

// ArchiveError means one archive could not be downloaded or unpacked.
// The refresh skips the archive and records it in diagnostics.
type ArchiveError struct {
	URL   string
	Stage string // StageFetch or StageDecode
	Err   error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %s: %v", e.URL, e.Stage, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
