// Package neighbor implements spatial-neighbor queries (C6): nearest-
// position and nearest-n lookups over an arbitrary slice of positions, and
// construction of a k-nearest-neighbor connection graph. Grounded on
// original_source/organoid_tracker/linking/nearby_position_finder.py,
// re-expressed without the source's distance-matrix/numpy approach since
// this module's callers query one position (or a handful) at a time rather
// than pairwise over a whole frame.
package neighbor

import (
	"container/heap"
	"math"
	"sort"

	"github.com/jvzon-lab/tracklineage/connections"
	"github.com/jvzon-lab/tracklineage/geom"
)

// FindClosest returns the position in set closest to around (squared
// distance in micrometers), or false if no position of set lies within
// maxUm. If ignoreZ is true,
// around's Z coordinate is treated as matching whatever candidate is being
// considered (so differences in depth never affect the ranking). Ties are
// broken in favor of the position whose time point matches around's, via a
// tie-break penalty equal to the squared time-point difference, matching
// find_closest_position's "prefer the same time point" rule.
func FindClosest(set []geom.Position, around geom.Position, res geom.Resolution, ignoreZ bool, maxUm float64) (geom.Position, bool) {
	var best geom.Position
	found := false
	bestDist := maxUm * maxUm

	for _, cand := range set {
		a := around
		if ignoreZ {
			a.Z = cand.Z
		}
		d := geom.DistanceSquaredUm(cand, a, res)
		dt := float64(around.T - cand.T)
		d += dt * dt

		if d < bestDist {
			bestDist = d
			best = cand
			found = true
		}
	}
	return best, found
}

// candidate pairs a position with its squared distance, for use in the
// bounded max-heap below.
type candidate struct {
	pos  geom.Position
	dist float64
}

// candidateHeap is a max-heap on dist, so the worst-ranked candidate sits at
// the root and can be evicted in O(log n) once the heap grows past n
// entries. Grounded on graph/dijkstra.go's nodePQ container/heap idiom,
// repurposed here as a bounded max-heap rather than Dijkstra's min-heap.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// FindClosestN returns up to n positions of set closest to around, ordered
// from nearest to furthest. ignoreSelf skips any candidate equal to around.
func FindClosestN(set []geom.Position, around geom.Position, n int, res geom.Resolution, maxUm float64, ignoreSelf bool) []geom.Position {
	if n <= 0 {
		return nil
	}
	maxDistSq := maxUm * maxUm
	h := &candidateHeap{}
	heap.Init(h)

	for _, cand := range set {
		if ignoreSelf && cand.Equal(around) {
			continue
		}
		d := geom.DistanceSquaredUm(cand, around, res)
		if d > maxDistSq {
			continue
		}
		if h.Len() < n {
			heap.Push(h, candidate{pos: cand, dist: d})
			continue
		}
		if d < (*h)[0].dist {
			heap.Pop(h)
			heap.Push(h, candidate{pos: cand, dist: d})
		}
	}

	out := make([]geom.Position, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate).pos
	}
	return out
}

// FindClose returns every position of set within tolerance*dMin of around,
// where dMin is the distance to the single nearest position, capped at
// maxN (keeping the closest maxN when more qualify) and ordered nearest
// first. tolerance must be >= 1.
func FindClose(set []geom.Position, around geom.Position, tolerance float64, res geom.Resolution, maxN int, maxUm float64) []geom.Position {
	type scored struct {
		pos  geom.Position
		dist float64
	}
	maxDistSq := maxUm * maxUm
	tolSq := tolerance * tolerance

	var all []scored
	shortest := math.Inf(1)
	for _, cand := range set {
		d := geom.DistanceSquaredUm(cand, around, res)
		if d > maxDistSq {
			continue
		}
		if d < shortest {
			shortest = d
		}
		all = append(all, scored{pos: cand, dist: d})
	}

	maxAllowed := shortest * tolSq
	var out []scored
	for _, s := range all {
		if s.dist <= maxAllowed {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	if len(out) > maxN {
		out = out[:maxN]
	}

	result := make([]geom.Position, len(out))
	for i, s := range out {
		result[i] = s.pos
	}
	return result
}

// MakeNearbyGraph builds a connections.Connections where every position in
// positions is connected to its k nearest (by micrometer distance), each
// edge labeled with that distance via connections.Connections.AddWeighted
// (readable back with DistanceUm); if fewer than k+1 positions are given, k
// is reduced to len(positions)-1. Every position supplied must share a time
// point, since Connections only links positions within the same time
// point. Grounded on make_nearby_positions_graph's "distance_um" edge
// attribute.
func MakeNearbyGraph(positions []geom.Position, k int, res geom.Resolution) *connections.Connections {
	g := connections.New()
	if len(positions) == 0 {
		return g
	}
	if k > len(positions)-1 {
		k = len(positions) - 1
	}
	if k <= 0 {
		return g
	}

	for _, p := range positions {
		nearest := FindClosestN(positions, p, k, res, math.Inf(1), true)
		for _, n := range nearest {
			// same time point is the caller's responsibility
			_ = g.AddWeighted(p, n, geom.DistanceUm(p, n, res))
		}
	}
	return g
}
