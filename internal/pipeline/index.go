package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// IndexReader discovers export archive URLs from the feed's lastupdate index
type IndexReader struct {
	fetcher  *Fetcher
	indexURL string
	suffix   string
}

// NewIndexReader creates a reader for the given index endpoint
func NewIndexReader(fetcher *Fetcher, indexURL, archiveSuffix string) *IndexReader {
	return &IndexReader{
		fetcher:  fetcher,
		indexURL: indexURL,
		suffix:   archiveSuffix,
	}
}

// URL returns the index endpoint
func (r *IndexReader) URL() string {
	return r.indexURL
}

// Read fetches the index and returns the archive URLs in listed order.
// Any failure is an *IndexFetchError.
func (r *IndexReader) Read(ctx context.Context) ([]string, error) {
	result, err := r.fetcher.FetchWithRetry(ctx, r.indexURL)
	if err != nil {
		return nil, &IndexFetchError{URL: r.indexURL, Err: err}
	}
	return ParseIndex(result.Body, r.suffix), nil
}

// ParseIndex extracts archive URLs from an index body. Each line is
// whitespace-delimited (size, hash, url); a line is kept when its third
// token ends with suffix. Other lines are skipped.
func ParseIndex(body []byte, suffix string) []string {
	urls := []string{}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if strings.HasSuffix(fields[2], suffix) {
			urls = append(urls, fields[2])
		}
	}

	return urls
}
