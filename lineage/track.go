// Package lineage implements the lineage graph (C4): tracks, divisions,
// and the public mutation/query API described in spec.md §4.4. Internally
// tracks are addressed by stable pointer identity (an arena of *Track
// values reached only through Links), following the arena-with-dense-ids
// redesign sanctioned by spec.md §9, reached here via a live-set of
// pointers plus an on-demand dense id assignment rather than index-based
// slab slots.
package lineage

import (
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
)

// Track is a contiguous maximal chain of a single cell's positions, one per
// consecutive time point (a LinkingTrack in spec.md's terminology).
//
// Positions are stored densely: positions[i] corresponds to time point
// minT+i. A slot may be "absent" (present == false) only transiently,
// immediately after a merge that bridged a time-point gap; no public API
// call ever leaves an absent slot in place.
type Track struct {
	minT      int
	positions []positionSlot
	prev      []*Track
	next      []*Track

	// lineageData holds per-lineage metadata, but only means anything when
	// len(prev) == 0 (this track is a lineage root); see Links.GetLineageData.
	lineageData map[string]metadata.Value

	seq int64 // creation order, used as the default track-id sort key
}

type positionSlot struct {
	pos     geom.Position
	present bool
}

// newTrack creates a singleton track holding one position.
func newTrack(p geom.Position, seq int64) *Track {
	return &Track{minT: p.T, positions: []positionSlot{{pos: p, present: true}}, seq: seq}
}

// MinTimePointNumber returns the time point of this track's first position.
func (t *Track) MinTimePointNumber() int { return t.minT }

// MaxTimePointNumber returns the time point of this track's last position.
func (t *Track) MaxTimePointNumber() int { return t.minT + len(t.positions) - 1 }

// Len returns the number of positions in this track.
func (t *Track) Len() int { return len(t.positions) }

// Previous returns a copy of this track's previous tracks (0, 1, or, in a
// biologically impossible merge configuration, 2 or more).
func (t *Track) Previous() []*Track {
	out := make([]*Track, len(t.prev))
	copy(out, t.prev)
	return out
}

// Next returns a copy of this track's next tracks (0, 1, or 2 for a
// division; 3+ indicates pathology).
func (t *Track) Next() []*Track {
	out := make([]*Track, len(t.next))
	copy(out, t.next)
	return out
}

// IsRoot reports whether this track has no previous tracks.
func (t *Track) IsRoot() bool { return len(t.prev) == 0 }

// Positions returns every position in this track, in time order, skipping
// any transiently-absent slots.
func (t *Track) Positions() []geom.Position {
	out := make([]geom.Position, 0, len(t.positions))
	for _, s := range t.positions {
		if s.present {
			out = append(out, s.pos)
		}
	}
	return out
}

// FirstPosition returns the earliest position in this track.
func (t *Track) FirstPosition() geom.Position { return t.positions[0].pos }

// LastPosition returns the latest position in this track.
func (t *Track) LastPosition() geom.Position { return t.positions[len(t.positions)-1].pos }

// PositionAt returns the position at the given time point, if this track
// spans it.
func (t *Track) PositionAt(tp int) (geom.Position, bool) {
	idx := tp - t.minT
	if idx < 0 || idx >= len(t.positions) || !t.positions[idx].present {
		return geom.Position{}, false
	}
	return t.positions[idx].pos, true
}

// age returns the 0-based index of p within this track's position sequence.
func (t *Track) age(p geom.Position) int { return p.T - t.minT }

func removeTrackFromSlice(slice []*Track, target *Track) []*Track {
	out := slice[:0]
	for _, t := range slice {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

func containsTrack(slice []*Track, target *Track) bool {
	for _, t := range slice {
		if t == target {
			return true
		}
	}
	return false
}
