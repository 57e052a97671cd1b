package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/adapt"
	"github.com/ppiankov/gdeltwatch/internal/extract"
	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/metrics"
	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/worker"
)

// Pipeline orchestrates index read, archive fetch, parse, merge and adapt
type Pipeline struct {
	fetcher   *Fetcher
	index     *IndexReader
	processor *worker.BatchProcessor
	adapter   *adapt.ICEWSAdapter
	window    time.Duration
	clock     func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config) *Pipeline {
	return NewPipelineWithFetcher(cfg, NewFetcherFromConfig(cfg))
}

// NewPipelineWithFetcher creates a pipeline around an existing fetcher
func NewPipelineWithFetcher(cfg *model.Config, fetcher *Fetcher) *Pipeline {
	handler := &archiveHandler{
		archives: NewArchiveFetcher(fetcher, cfg.HTTP.MaxBodyBytes*8),
		parser:   extract.NewRowParser(),
	}

	return &Pipeline{
		fetcher:   fetcher,
		index:     NewIndexReader(fetcher, cfg.Feed.IndexURL, cfg.Feed.ArchiveSuffix),
		processor: worker.NewBatchProcessor(handler, cfg.Concurrency.ArchiveWorkers),
		adapter:   adapt.NewICEWSAdapter(),
		window:    cfg.Feed.Window,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for the recency cutoff
func (p *Pipeline) SetClock(clock func() time.Time) {
	p.clock = clock
}

// SetWindow replaces the recency window
func (p *Pipeline) SetWindow(window time.Duration) {
	p.window = window
}

// Fetcher returns the pipeline's upstream fetcher
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// Refresh runs one full pass against the feed index. An index failure
// returns *IndexFetchError and no snapshot; archive and row failures are
// recorded in the snapshot's diagnostics. Zero usable rows is a valid,
// empty snapshot.
func (p *Pipeline) Refresh(ctx context.Context) (*model.Snapshot, error) {
	ctx = logging.ContextWithRefreshID(ctx, logging.GenerateRefreshID())
	now := p.clock()

	// 1. Read index
	urls, err := p.index.Read(ctx)
	if err != nil {
		metrics.RecordRefresh("failed", p.clock().Sub(now))
		logging.Ctx(ctx).Error().Err(err).Msg("refresh failed: index unavailable")
		return nil, err
	}
	logging.Ctx(ctx).Debug().Int("archives", len(urls)).Str("index", p.index.URL()).Msg("index read")

	return p.run(ctx, p.index.URL(), urls, now)
}

// RefreshFromURLs runs the pipeline over a fixed archive list instead of
// the feed index
func (p *Pipeline) RefreshFromURLs(ctx context.Context, urls []string) (*model.Snapshot, error) {
	ctx = logging.ContextWithRefreshID(ctx, logging.GenerateRefreshID())
	return p.run(ctx, "", urls, p.clock())
}

func (p *Pipeline) run(ctx context.Context, indexURL string, urls []string, now time.Time) (*model.Snapshot, error) {
	diag := model.Diagnostics{
		IndexURL:       indexURL,
		ArchivesListed: len(urls),
	}
	cutoff := Cutoff(now, p.window)

	// 2. Fetch, unpack and parse archives
	results := p.processor.ProcessURLs(ctx, urls)
	if err := ctx.Err(); err != nil {
		metrics.RecordRefresh("failed", p.clock().Sub(now))
		return nil, fmt.Errorf("refresh canceled: %w", err)
	}

	// 3. Fold per-archive outcomes
	rowSets := make([][]model.RawEvent, 0, len(results))
	for i, r := range results {
		res, ok := r.(*ArchiveResult)
		if !ok {
			err := r.GetError()
			if err == nil {
				err = errors.New("archive not processed")
			}
			res = &ArchiveResult{URL: urls[i], Err: &ArchiveError{URL: urls[i], Stage: StageFetch, Err: err}}
		}

		if res.Err != nil {
			diag.Skipped = append(diag.Skipped, model.SkippedArchive{
				URL:    res.URL,
				Stage:  res.Err.Stage,
				Reason: res.Err.Err.Error(),
			})
			logging.Ctx(ctx).Warn().Str("url", res.URL).Str("stage", res.Err.Stage).Err(res.Err.Err).Msg("skipping archive")
			continue
		}

		diag.ArchivesProcessed++
		diag.RowsParsed += len(res.Rows.Rows)
		diag.RowsMalformed += res.Rows.Malformed
		diag.RowsBadTimestamp += res.Rows.BadTimestamp
		for _, rowErr := range res.Rows.Errors {
			logging.Ctx(ctx).Debug().Str("url", res.URL).Int("line", rowErr.Line).Str("reason", rowErr.Reason).Msg("skipped row")
		}
		rowSets = append(rowSets, res.Rows.Rows)
	}

	// 4. Recency filter and merge
	table, stats := Merge(rowSets, cutoff)
	diag.RowsOutsideWindow = stats.OutsideWindow
	diag.Duplicates = stats.Duplicates

	// 5. Adapt to the normalized schema
	adapted := p.adapter.Adapt(table)
	diag.RowsDropped = adapted.Dropped
	diag.Duration = p.clock().Sub(now)

	snapshot := &model.Snapshot{
		Events:      adapted.Events,
		RefreshedAt: now,
		Window:      p.window,
		Cutoff:      cutoff,
		Diagnostics: diag,
	}

	outcome := "success"
	if snapshot.Empty() {
		outcome = "empty"
	}
	metrics.RecordRefresh(outcome, diag.Duration)
	metrics.RecordDiagnostics(&diag)

	logging.Ctx(ctx).Info().
		Int("events", len(snapshot.Events)).
		Int("archives", diag.ArchivesProcessed).
		Int("skipped", len(diag.Skipped)).
		Int("duplicates", diag.Duplicates).
		Int("outside_window", diag.RowsOutsideWindow).
		Time("cutoff", cutoff).
		Msg("refresh complete")

	return snapshot, nil
}
