package pipeline

import (
	"slices"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// MergeStats counts rows removed while merging
type MergeStats struct {
	OutsideWindow int
	Duplicates    int
}

// Merge applies the recency filter to each archive's rows, concatenates them
// in archive order, drops repeated GlobalEventIDs (first seen wins) and
// stable-sorts the result newest first. The table always carries the full
// column layout, even when empty.
func Merge(rowSets [][]model.RawEvent, cutoff time.Time) (model.MergedTable, MergeStats) {
	var stats MergeStats
	seen := make(map[string]struct{})
	merged := []model.RawEvent{}

	for _, rows := range rowSets {
		for _, row := range rows {
			if row.AddedAt.Before(cutoff) {
				stats.OutsideWindow++
				continue
			}
			// Rows without an id pass through; the adapter drops them
			if row.GlobalEventID != "" {
				if _, dup := seen[row.GlobalEventID]; dup {
					stats.Duplicates++
					continue
				}
				seen[row.GlobalEventID] = struct{}{}
			}
			merged = append(merged, row)
		}
	}

	slices.SortStableFunc(merged, func(a, b model.RawEvent) int {
		return b.AddedAt.Compare(a.AddedAt)
	})

	return model.NewMergedTable(merged), stats
}

// Cutoff returns the oldest DATEADDED kept for a refresh at now
func Cutoff(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}
