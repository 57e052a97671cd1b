package pipeline

import (
	"testing"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

func raw(id string, added time.Time) model.RawEvent {
	return model.RawEvent{GlobalEventID: id, AddedAt: added}
}

func TestMerge(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := base.Add(-15 * time.Minute)

	sets := [][]model.RawEvent{
		{raw("1", base.Add(-20*time.Minute)), raw("2", base.Add(-10*time.Minute)), raw("3", cutoff)},
		{raw("2", base), raw("4", base.Add(-time.Minute)), raw("", base.Add(-time.Minute)), raw("", base.Add(-time.Minute))},
	}

	table, stats := Merge(sets, cutoff)

	if stats.OutsideWindow != 1 {
		t.Errorf("Expected 1 outside window, got %d", stats.OutsideWindow)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", stats.Duplicates)
	}
	if table.Len() != 5 {
		t.Fatalf("Expected 5 rows, got %d", table.Len())
	}

	for i := 1; i < table.Len(); i++ {
		if table.Rows[i].AddedAt.After(table.Rows[i-1].AddedAt) {
			t.Errorf("Rows not sorted newest first at %d", i)
		}
	}

	// the first-seen id 2 (base-10m) is kept, so it sorts after id 4
	ids := []string{}
	for _, r := range table.Rows {
		ids = append(ids, r.GlobalEventID)
	}
	want := []string{"4", "", "", "2", "3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Position %d: expected %q, got %q (all %v)", i, want[i], ids[i], ids)
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	table, stats := Merge(nil, time.Now())
	if table.Len() != 0 || table.Rows == nil {
		t.Errorf("Expected empty non-nil rows, got %v", table.Rows)
	}
	if len(table.Columns) != model.NumColumns {
		t.Errorf("Expected full schema, got %d columns", len(table.Columns))
	}
	if stats != (MergeStats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := Cutoff(now, 15*time.Minute); !got.Equal(now.Add(-15 * time.Minute)) {
		t.Errorf("Unexpected cutoff %v", got)
	}
}
