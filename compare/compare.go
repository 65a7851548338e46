// Package compare implements the comparison engine (C10): precision,
// recall, and F1 between a ground-truth Experiment and a scratch (detected)
// Experiment, bucketed per time point and per z-layer. Grounded on
// original_source/organoid_tracker/comparison/positions_comparison.py,
// links_comparison.py, and report.py.
package compare

import (
	"math"
	"sort"

	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/neighbor"
)

// Bucket accumulates true positives, false positives, and false negatives
// for one reporting bucket (a time point, a z-layer, or the overall total).
type Bucket struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
}

// Add merges other into b in place.
func (b *Bucket) Add(other Bucket) {
	b.TruePositives += other.TruePositives
	b.FalsePositives += other.FalsePositives
	b.FalseNegatives += other.FalseNegatives
}

// Precision is TP/(TP+FP), or 0 if the denominator is 0.
func (b Bucket) Precision() float64 { return ratio(b.TruePositives, b.TruePositives+b.FalsePositives) }

// Recall is TP/(TP+FN), or 0 if the denominator is 0.
func (b Bucket) Recall() float64 { return ratio(b.TruePositives, b.TruePositives+b.FalseNegatives) }

// F1 is the harmonic mean of Precision and Recall, or 0 if both are 0.
func (b Bucket) F1() float64 {
	p, r := b.Precision(), b.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Report is the full bucketed result of a comparison pass: one Bucket per
// time point, one per z-layer (floor of z), and the overall total.
type Report struct {
	ByTimePoint map[int]*Bucket
	ByZLayer    map[int]*Bucket
	Overall     Bucket
}

func newReport() *Report {
	return &Report{ByTimePoint: make(map[int]*Bucket), ByZLayer: make(map[int]*Bucket)}
}

func (r *Report) record(t int, z float64, outcome func(*Bucket)) {
	tb, ok := r.ByTimePoint[t]
	if !ok {
		tb = &Bucket{}
		r.ByTimePoint[t] = tb
	}
	outcome(tb)

	zl := int(math.Floor(z))
	zb, ok := r.ByZLayer[zl]
	if !ok {
		zb = &Bucket{}
		r.ByZLayer[zl] = zb
	}
	outcome(zb)

	outcome(&r.Overall)
}

// Options configures the two comparison passes.
type Options struct {
	MaxDistanceUm      float64 // max distance for a position or link endpoint match
	RejectionDistanceUm float64 // beyond this, a leftover scratch position is "rejected" not a false positive
	RequireInsideMargin bool    // links comparison: require both endpoints inside the image margin
	MarginXY, MarginZ  float64
}

// ComparePositions runs spec.md §4.10's positions-comparison pass for every
// time point of the ground truth.
func ComparePositions(truth, scratch *experiment.Experiment, res geom.Resolution, opts Options) *Report {
	report := newReport()

	timePoints := truth.Positions.TimePoints()
	for _, t := range timePoints {
		groundTruth := truth.Positions.OfTimePoint(t)
		scratchSet := append([]geom.Position(nil), scratch.Positions.OfTimePoint(t)...)
		consumed := make(map[geom.Position]bool, len(scratchSet))

		for _, g := range groundTruth {
			remaining := remove(scratchSet, consumed)
			s, found := neighbor.FindClosest(remaining, g, res, false, opts.MaxDistanceUm)
			if !found {
				report.record(g.T, g.Z, func(b *Bucket) { b.FalseNegatives++ })
				continue
			}
			consumed[s] = true
			report.record(g.T, g.Z, func(b *Bucket) { b.TruePositives++ })
		}

		for _, s := range scratchSet {
			if consumed[s] {
				continue
			}
			_, nearGroundTruth := neighbor.FindClosest(groundTruth, s, res, false, opts.RejectionDistanceUm)
			if nearGroundTruth {
				report.record(s.T, s.Z, func(b *Bucket) { b.FalsePositives++ })
			}
			// Else rejected: far from any ground truth, possibly a real
			// detection outside the annotated region; not counted either way.
		}
	}
	return report
}

func remove(set []geom.Position, consumed map[geom.Position]bool) []geom.Position {
	if len(consumed) == 0 {
		return set
	}
	out := make([]geom.Position, 0, len(set))
	for _, p := range set {
		if !consumed[p] {
			out = append(out, p)
		}
	}
	return out
}

// linkKey canonicalizes a directed link for use as a consumed-set key.
type linkKey struct{ a, b geom.Position }

// CompareLinks runs spec.md §4.10's links-comparison pass. For every
// ground-truth link, it looks for a matching scratch link among the
// nearest-3 scratch positions near each endpoint; the symmetric scratch
// pass then finds false positives and rejects.
func CompareLinks(truth, scratch *experiment.Experiment, res geom.Resolution, opts Options) *Report {
	report := newReport()

	scratchConsumed := make(map[linkKey]bool)
	for _, g := range truth.Links.FindAllLinks() {
		if opts.RequireInsideMargin && !bothInsideMargin(scratch, g.Earlier, g.Later, opts) {
			continue
		}
		cands1 := neighbor.FindClosestN(scratch.Positions.OfTimePoint(g.Earlier.T), g.Earlier, 3, res, opts.MaxDistanceUm, false)
		cands2 := neighbor.FindClosestN(scratch.Positions.OfTimePoint(g.Later.T), g.Later, 3, res, opts.MaxDistanceUm, false)

		matched := false
		for _, s1 := range cands1 {
			for _, s2 := range cands2 {
				key := linkKey{s1, s2}
				if scratchConsumed[key] {
					continue
				}
				if scratch.Links.ContainsLink(s1, s2) {
					scratchConsumed[key] = true
					matched = true
					report.record(g.Earlier.T, g.Earlier.Z, func(b *Bucket) { b.TruePositives++ })
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			report.record(g.Earlier.T, g.Earlier.Z, func(b *Bucket) { b.FalseNegatives++ })
		}
	}

	for _, s := range scratch.Links.FindAllLinks() {
		key := linkKey{s.Earlier, s.Later}
		if scratchConsumed[key] {
			continue
		}
		hasEndpoint := len(truth.Positions.OfTimePoint(s.Earlier.T)) > 0 || len(truth.Positions.OfTimePoint(s.Later.T)) > 0
		if hasEndpoint {
			report.record(s.Earlier.T, s.Earlier.Z, func(b *Bucket) { b.FalsePositives++ })
		}
		// Else rejected: neither endpoint's time point has any ground truth.
	}
	return report
}

func bothInsideMargin(e *experiment.Experiment, a, b geom.Position, opts Options) bool {
	insideA, okA := e.IsInsideImage(a, opts.MarginXY, opts.MarginZ)
	insideB, okB := e.IsInsideImage(b, opts.MarginXY, opts.MarginZ)
	return okA && okB && insideA && insideB
}

// SortedTimePoints returns r's time-point buckets' keys in ascending order,
// for deterministic report printing.
func SortedTimePoints(r *Report) []int {
	out := make([]int, 0, len(r.ByTimePoint))
	for t := range r.ByTimePoint {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}
