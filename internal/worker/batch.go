package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// URLHandler processes one URL and reports the outcome
type URLHandler interface {
	Handle(ctx context.Context, url string) Result
}

// urlJob adapts a URLHandler call to the Job interface
type urlJob struct {
	url     string
	handler URLHandler
}

func (j *urlJob) Execute(ctx context.Context) Result {
	return j.handler.Handle(ctx, j.url)
}

// BatchProcessor processes multiple URLs concurrently
type BatchProcessor struct {
	handler URLHandler
	pool    *Pool
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(handler URLHandler, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		handler: handler,
		pool:    NewPool(concurrency),
	}
}

// ProcessURLs handles every URL and returns results in input order
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []Result {
	jobs := make([]Job, len(urls))
	for i, u := range urls {
		jobs[i] = &urlJob{url: u, handler: b.handler}
	}
	return b.pool.Run(ctx, jobs)
}

// ReadURLsFromFile reads one URL per line from a file
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadURLs(file)
}

// ReadURLs reads one URL per line, skipping blanks and # comments.
// Duplicates are dropped, first occurrence kept.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
