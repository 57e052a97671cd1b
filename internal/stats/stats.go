// Package stats computes the dashboard aggregates over a snapshot's events.
// All functions are pure and preserve no state between calls.
package stats

import (
	"cmp"
	"slices"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// TopCountriesLimit is how many countries the dashboard ranks
const TopCountriesLimit = 10

// Count is a label with its number of events
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TimelinePoint is the number of events added in one UTC minute
type TimelinePoint struct {
	Minute time.Time `json:"minute"`
	Label  string    `json:"label"` // HH:MM
	Count  int       `json:"count"`
}

// IntensityBin counts events whose intensity falls in (Lower, Upper]
type IntensityBin struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// intensityEdges are the right-closed bin edges over the Goldstein range
var intensityEdges = []float64{-10, -5, 0, 5, 10}

var intensityLabels = []string{"Very Negative", "Negative", "Positive", "Very Positive"}

// Summary bundles every dashboard aggregate
type Summary struct {
	Total           int             `json:"total"`
	WithCoordinates int             `json:"with_coordinates"`
	EventTypes      []Count         `json:"event_types"`
	Timeline        []TimelinePoint `json:"timeline"`
	Intensity       []IntensityBin  `json:"intensity"`
	TopCountries    []Count         `json:"top_countries"`
	SourceDomains   []Count         `json:"source_domains"`
}

// Summarize computes all aggregates in one call
func Summarize(events []model.NormalizedEvent) Summary {
	withCoords := 0
	for i := range events {
		if events[i].HasCoordinates() {
			withCoords++
		}
	}

	return Summary{
		Total:           len(events),
		WithCoordinates: withCoords,
		EventTypes:      EventTypeCounts(events),
		Timeline:        Timeline(events),
		Intensity:       IntensityBins(events),
		TopCountries:    TopCountries(events, TopCountriesLimit),
		SourceDomains:   TopSourceDomains(events, TopSourcesLimit),
	}
}

// EventTypeCounts counts events per type label, most frequent first.
// Ties are ordered by label.
func EventTypeCounts(events []model.NormalizedEvent) []Count {
	counts := make(map[string]int)
	for i := range events {
		counts[events[i].EventType]++
	}
	return sortedCounts(counts)
}

// Timeline counts events per UTC minute of their timestamp, oldest first
func Timeline(events []model.NormalizedEvent) []TimelinePoint {
	counts := make(map[time.Time]int)
	for i := range events {
		counts[events[i].Date.UTC().Truncate(time.Minute)]++
	}

	points := make([]TimelinePoint, 0, len(counts))
	for minute, n := range counts {
		points = append(points, TimelinePoint{Minute: minute, Label: minute.Format("15:04"), Count: n})
	}
	slices.SortFunc(points, func(a, b TimelinePoint) int {
		return a.Minute.Compare(b.Minute)
	})
	return points
}

// IntensityBins buckets non-missing intensities into the four right-closed
// bins. Values at or below -10 or above 10 are not counted.
func IntensityBins(events []model.NormalizedEvent) []IntensityBin {
	bins := make([]IntensityBin, len(intensityLabels))
	for i := range bins {
		bins[i] = IntensityBin{
			Label: intensityLabels[i],
			Lower: intensityEdges[i],
			Upper: intensityEdges[i+1],
		}
	}

	for i := range events {
		v := events[i].Intensity
		if v == nil {
			continue
		}
		for b := range bins {
			if *v > bins[b].Lower && *v <= bins[b].Upper {
				bins[b].Count++
				break
			}
		}
	}
	return bins
}

// TopCountries ranks action countries among events that have coordinates,
// returning at most limit entries
func TopCountries(events []model.NormalizedEvent, limit int) []Count {
	counts := make(map[string]int)
	for i := range events {
		if events[i].HasCoordinates() {
			counts[events[i].Country]++
		}
	}

	ranked := sortedCounts(counts)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func sortedCounts(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}
