// Package cellfate implements the cell-cycle and fate analyses (C13): a
// position's age within its lineage, its eventual fate (divide/die/shed/
// keep moving), a whole-subtree fate summary, and a supplemented
// nearby-death counter. Grounded on original_source/ai_track/
// linking_analysis/cell_fate_finder.py, lineage_fate_finder.py, and
// cell_nearby_death_counter.py.
package cellfate

import (
	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/lineage"
	"github.com/jvzon-lab/tracklineage/metadata"
)

// AgeInTimePoints returns p's index within its track plus the summed
// lengths of every ancestor track back to (but not including) the last
// division. Returns false if the lineage cannot be traced that far back
// because of a cell merge along the way (ambiguous ancestry).
func AgeInTimePoints(links *lineage.Links, p geom.Position) (int, bool) {
	track := links.GetTrack(p)
	if track == nil {
		return 0, false
	}
	age := p.T - track.MinTimePointNumber()
	cur := track
	for {
		prevs := cur.Previous()
		if len(prevs) == 0 {
			return age, true
		}
		if len(prevs) > 1 {
			return 0, false
		}
		parent := prevs[0]
		if len(parent.Next()) != 1 {
			return age, true // parent is a dividing mother: this is the last division
		}
		age += parent.Len()
		cur = parent
	}
}

// Kind is one of the five fates spec.md §4.13 defines for a cell.
type Kind int

const (
	Unknown Kind = iota
	JustMoving
	WillDivide
	WillDie
	WillShed
)

// Fate is the result of GetFate: a Kind, plus (when meaningful) how many
// time points remain until the division, death or shedding.
type Fate struct {
	Kind                Kind
	TimePointsRemaining int
	HasRemaining        bool
}

// GetFate looks at how p's track ends. A track ending in two or more next
// tracks gives WillDivide; otherwise the end marker of its last position
// gives WillDie or WillShed. Failing those, the track is JustMoving if it
// continues past p.T + e.LineageLookaheadHorizon, and Unknown if it ends
// within that horizon.
func GetFate(e *experiment.Experiment, p geom.Position) Fate {
	track := e.Links.GetTrack(p)
	if track == nil {
		return Fate{Kind: Unknown}
	}
	lookaheadEnd := p.T + e.LineageLookaheadHorizon
	next := track.Next()

	switch {
	case len(next) >= 2:
		return Fate{Kind: WillDivide, TimePointsRemaining: track.MaxTimePointNumber() - p.T, HasRemaining: true}
	case len(next) == 1:
		// A track invariant violation: this module's Track never ends with
		// exactly one next track (a plain continuation always merges into
		// one track). Treat defensively as Unknown rather than panicking.
		return Fate{Kind: Unknown}
	}

	last := track.LastPosition()
	switch endMarker(e, last) {
	case metadata.EndMarkerDead:
		return Fate{Kind: WillDie, TimePointsRemaining: track.MaxTimePointNumber() - p.T, HasRemaining: true}
	case metadata.EndMarkerShed:
		return Fate{Kind: WillShed, TimePointsRemaining: track.MaxTimePointNumber() - p.T, HasRemaining: true}
	}
	if track.MaxTimePointNumber() > lookaheadEnd {
		return Fate{Kind: JustMoving}
	}
	return Fate{Kind: Unknown}
}

func endMarker(e *experiment.Experiment, p geom.Position) string {
	v, ok := e.Links.GetPositionData(p, metadata.NameEnding)
	if !ok || v.Kind != metadata.KindString {
		return ""
	}
	return v.S
}

// LineageFate summarizes what happens across an entire lineage subtree:
// counts of divisions, deaths, sheds, remaining errors, and lineage ends.
type LineageFate struct {
	Divisions, Deaths, Sheds, Errors, Ends int
}

// GetLineageFate walks every branch of root's subtree, accumulating a
// LineageFate. lastTimePointNumber excludes the experiment's final time
// point from the Ends count, since every living lineage necessarily "ends"
// there without that being a meaningful event.
func GetLineageFate(e *experiment.Experiment, root geom.Position, lastTimePointNumber int) LineageFate {
	var out LineageFate
	walkLineageFate(e, root, &out, lastTimePointNumber)
	return out
}

func walkLineageFate(e *experiment.Experiment, p geom.Position, out *LineageFate, lastT int) {
	for {
		if _, ok := e.Links.GetPositionData(p, metadata.NameError); ok {
			out.Errors++
		}

		futures := e.Links.FindFutures(p)
		switch len(futures) {
		case 0:
			if p.T < lastT {
				out.Ends++
			}
			switch endMarker(e, p) {
			case metadata.EndMarkerDead:
				out.Deaths++
			case metadata.EndMarkerShed:
				out.Sheds++
			}
			return
		case 1:
			p = anyPosition(futures)
		default:
			out.Divisions++
			for next := range futures {
				walkLineageFate(e, next, out, lastT)
			}
			return
		}
	}
}

func anyPosition(set map[geom.Position]struct{}) geom.Position {
	for p := range set {
		return p
	}
	return geom.Position{}
}

// NearbyDeathCounter answers "how many nearby deaths happened in the past
// at this position" in O(1) after an O(tracks) setup pass, by precomputing
// each track's own nearby deaths plus a running total inherited from its
// unambiguous (non-merged) ancestor chain.
type NearbyDeathCounter struct {
	e               *experiment.Experiment
	deathsByTrack   map[*lineage.Track][]geom.Position
	priorDeathCount map[*lineage.Track]int
}

// NewNearbyDeathCounter builds the index described above for every track
// currently in e.Links, considering a death "nearby" a track position if it
// falls within maxDistanceUm at the same time point.
func NewNearbyDeathCounter(e *experiment.Experiment, maxDistanceUm float64) *NearbyDeathCounter {
	deathsByTime := findDeathAndShedPositions(e)
	maxDistSq := maxDistanceUm * maxDistanceUm

	c := &NearbyDeathCounter{
		e:               e,
		deathsByTrack:   make(map[*lineage.Track][]geom.Position),
		priorDeathCount: make(map[*lineage.Track]int),
	}

	tracks := e.Links.FindAllTracks()
	for _, track := range tracks {
		var nearby []geom.Position
		for _, p := range track.Positions() {
			for _, d := range deathsByTime[p.T] {
				if geom.DistanceSquaredUm(d, p, e.Resolution) <= maxDistSq {
					nearby = append(nearby, d)
				}
			}
		}
		c.deathsByTrack[track] = nearby
	}
	for _, track := range tracks {
		count := 0
		prevs := track.Previous()
		for len(prevs) == 1 {
			parent := prevs[0]
			count += len(c.deathsByTrack[parent])
			prevs = parent.Previous()
		}
		c.priorDeathCount[track] = count
	}
	return c
}

// CountNearbyDeathsInPast returns the number of nearby deaths at or before
// p's time point, across p's track and its unambiguous ancestor chain.
func (c *NearbyDeathCounter) CountNearbyDeathsInPast(p geom.Position) int {
	track := c.e.Links.GetTrack(p)
	if track == nil {
		return 0
	}
	total := 0
	for _, d := range c.deathsByTrack[track] {
		if d.T <= p.T {
			total++
		}
	}
	return total + c.priorDeathCount[track]
}

func findDeathAndShedPositions(e *experiment.Experiment) map[int][]geom.Position {
	out := make(map[int][]geom.Position)
	for p, v := range e.Links.PositionData().AllWithName(metadata.NameEnding) {
		if v.Kind == metadata.KindString && (v.S == metadata.EndMarkerDead || v.S == metadata.EndMarkerShed) {
			out[p.T] = append(out[p.T], p)
		}
	}
	return out
}
