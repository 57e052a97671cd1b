package stats

import (
	"cmp"
	"slices"

	"github.com/mmcloughlin/geohash"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// Geohash precision bounds accepted by Clusters
const (
	MinPrecision = 1
	MaxPrecision = 12
)

// Cluster groups events sharing a geohash cell
type Cluster struct {
	Geohash       string   `json:"geohash"`
	Latitude      float64  `json:"latitude"`  // Centroid of member events
	Longitude     float64  `json:"longitude"` // Centroid of member events
	Count         int      `json:"count"`
	DominantType  string   `json:"dominant_type"`
	MeanIntensity *float64 `json:"mean_intensity,omitempty"`
}

type clusterAcc struct {
	latSum, lonSum float64
	count          int
	types          map[string]int
	intensitySum   float64
	intensityCount int
}

// Clusters groups events with coordinates by geohash cell at the given
// precision (clamped to 1..12). Clusters are ordered by size, then hash.
func Clusters(events []model.NormalizedEvent, precision uint) []Cluster {
	precision = max(MinPrecision, min(precision, MaxPrecision))

	cells := make(map[string]*clusterAcc)
	for i := range events {
		e := &events[i]
		if !e.HasCoordinates() {
			continue
		}

		hash := geohash.EncodeWithPrecision(*e.Latitude, *e.Longitude, precision)
		acc, ok := cells[hash]
		if !ok {
			acc = &clusterAcc{types: make(map[string]int)}
			cells[hash] = acc
		}
		acc.latSum += *e.Latitude
		acc.lonSum += *e.Longitude
		acc.count++
		acc.types[e.EventType]++
		if e.Intensity != nil {
			acc.intensitySum += *e.Intensity
			acc.intensityCount++
		}
	}

	out := make([]Cluster, 0, len(cells))
	for hash, acc := range cells {
		c := Cluster{
			Geohash:      hash,
			Latitude:     acc.latSum / float64(acc.count),
			Longitude:    acc.lonSum / float64(acc.count),
			Count:        acc.count,
			DominantType: sortedCounts(acc.types)[0].Label,
		}
		if acc.intensityCount > 0 {
			mean := acc.intensitySum / float64(acc.intensityCount)
			c.MeanIntensity = &mean
		}
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b Cluster) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Geohash, b.Geohash)
	})
	return out
}
