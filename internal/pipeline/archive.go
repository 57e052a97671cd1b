package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ppiankov/gdeltwatch/internal/extract"
	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/worker"
)

// ArchiveFetcher downloads single-entry zip archives and unpacks the payload
type ArchiveFetcher struct {
	fetcher  *Fetcher
	maxBytes int64
}

// NewArchiveFetcher creates an archive fetcher; maxBytes bounds the
// uncompressed payload
func NewArchiveFetcher(fetcher *Fetcher, maxBytes int64) *ArchiveFetcher {
	return &ArchiveFetcher{fetcher: fetcher, maxBytes: maxBytes}
}

// Fetch downloads rawURL and returns the first entry's bytes.
// Failures are *ArchiveError with the stage that failed.
func (a *ArchiveFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	result, err := a.fetcher.FetchCached(ctx, rawURL)
	if err != nil {
		return nil, &ArchiveError{URL: rawURL, Stage: StageFetch, Err: err}
	}

	payload, err := DecodeArchive(result.Body, a.maxBytes)
	if err != nil {
		a.fetcher.Evict(rawURL)
		return nil, &ArchiveError{URL: rawURL, Stage: StageDecode, Err: err}
	}
	return payload, nil
}

// DecodeArchive returns the first entry of a zip archive
func DecodeArchive(data []byte, maxBytes int64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, errors.New("zip has no entries")
	}

	entry := zr.File[0]
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer func() { _ = rc.Close() }()

	payload, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", entry.Name, err)
	}
	if int64(len(payload)) > maxBytes {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", entry.Name, maxBytes)
	}
	return payload, nil
}

// ArchiveResult is the outcome of fetching and parsing one archive
type ArchiveResult struct {
	URL  string
	Rows *extract.RowResult
	Err  *ArchiveError
}

// GetError returns the archive error, if any
func (r *ArchiveResult) GetError() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// archiveHandler fetches, unpacks and parses one archive per call
type archiveHandler struct {
	archives *ArchiveFetcher
	parser   *extract.RowParser
}

func (h *archiveHandler) Handle(ctx context.Context, url string) worker.Result {
	payload, err := h.archives.Fetch(ctx, url)
	if err != nil {
		var archiveErr *ArchiveError
		if !errors.As(err, &archiveErr) {
			archiveErr = &ArchiveError{URL: url, Stage: StageFetch, Err: err}
		}
		return &ArchiveResult{URL: url, Err: archiveErr}
	}

	rows, err := h.parser.Parse(bytes.NewReader(payload))
	if err != nil {
		if rows == nil || len(rows.Rows) == 0 {
			return &ArchiveResult{URL: url, Err: &ArchiveError{URL: url, Stage: StageDecode, Err: err}}
		}
		logging.Ctx(ctx).Warn().Str("url", url).Int("rows", len(rows.Rows)).Err(err).Msg("archive truncated; keeping parsed rows")
	}
	return &ArchiveResult{URL: url, Rows: rows}
}
