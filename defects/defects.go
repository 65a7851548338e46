// Package defects implements the error detector (C9): a priority-ordered
// rule table that scans every position and records at most one error kind
// to its "error" metadata slot, clearing the slot for positions that no
// longer match any rule. Grounded on original_source/ai_track/
// linking_analysis/cell_error_finder.py.
package defects

import (
	"math"

	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
)

// Kind is one of the error kinds spec.md §4.9's rule table can emit.
type Kind int

const (
	// None means no rule matched; any existing error marker is cleared.
	None Kind = iota
	UncertainPosition
	TooManyDaughterCells
	NoFuturePosition
	LowMotherScore
	YoungMother
	NoPastPosition
	CellMerge
	ShrunkALot
	MovedTooFast
)

func (k Kind) String() string {
	switch k {
	case UncertainPosition:
		return "UNCERTAIN_POSITION"
	case TooManyDaughterCells:
		return "TOO_MANY_DAUGHTER_CELLS"
	case NoFuturePosition:
		return "NO_FUTURE_POSITION"
	case LowMotherScore:
		return "LOW_MOTHER_SCORE"
	case YoungMother:
		return "YOUNG_MOTHER"
	case NoPastPosition:
		return "NO_PAST_POSITION"
	case CellMerge:
		return "CELL_MERGE"
	case ShrunkALot:
		return "SHRUNK_A_LOT"
	case MovedTooFast:
		return "MOVED_TOO_FAST"
	default:
		return ""
	}
}

// Config holds the rule table's numeric thresholds; the zero value is
// invalid, use DefaultConfig.
type Config struct {
	YoungMotherAgeHours   float64
	ShrunkVolumeRatio     float64
	FastMoveDistanceUm    float64
}

// DefaultConfig matches spec.md §4.9's literal thresholds (10, 2, 10).
func DefaultConfig() Config {
	return Config{YoungMotherAgeHours: 10, ShrunkVolumeRatio: 2, FastMoveDistanceUm: 10}
}

// Scan evaluates every rule against every position in e and writes (or
// clears) its "error" metadata slot, returning the number of positions
// whose error kind changed.
func Scan(e *experiment.Experiment, cfg Config) int {
	firstT, hasFirst := e.FirstTimePointNumber()
	lastT, hasLast := e.LastTimePointNumber()

	changed := 0
	for _, t := range e.Positions.TimePoints() {
		for _, p := range e.Positions.OfTimePoint(t) {
			kind := evaluate(e, cfg, p, firstT, hasFirst, lastT, hasLast)
			if setErrorKind(e, p, kind) {
				changed++
			}
		}
	}
	return changed
}

func setErrorKind(e *experiment.Experiment, p geom.Position, kind Kind) bool {
	existing, had := e.Links.GetPositionData(p, metadata.NameError)
	if kind == None {
		if !had {
			return false
		}
		_ = e.Links.SetPositionData(p, metadata.NameError, nil)
		return true
	}
	v := metadata.Str(kind.String())
	if had && existing.S == v.S {
		return false
	}
	_ = e.Links.SetPositionData(p, metadata.NameError, &v)
	return true
}

// evaluate runs the rule table top-down, returning the first matching kind.
func evaluate(e *experiment.Experiment, cfg Config, p geom.Position, firstT int, hasFirst bool, lastT int, hasLast bool) Kind {
	if boolData(e, p, metadata.NameUncertain) {
		return UncertainPosition
	}

	futures := e.Links.FindFutures(p)
	pasts := e.Links.FindPasts(p)

	if len(futures) > 2 {
		return TooManyDaughterCells
	}
	if len(futures) == 0 && hasLast && p.T < lastT && !hasEndMarker(e, p) {
		return NoFuturePosition
	}
	if len(futures) == 2 {
		score, _ := floatData(e, p, metadata.NameMotherScore)
		if score <= 0 {
			return LowMotherScore
		}
		if ageHours, ok := ageInHours(e, p); ok && ageHours <= cfg.YoungMotherAgeHours {
			return YoungMother
		}
	}
	if len(pasts) == 0 && hasFirst && p.T > firstT && !hasStartMarker(e, p) {
		return NoPastPosition
	}
	if len(pasts) >= 2 {
		return CellMerge
	}
	if len(pasts) == 1 {
		past := anyPosition(pasts)
		if shrunkALot(e, cfg, past, p) {
			return ShrunkALot
		}
		d := geom.DistanceUm(past, p, e.Resolution)
		if d > cfg.FastMoveDistanceUm && !endsDeadOrShed(e, p) {
			return MovedTooFast
		}
	}
	return None
}

func boolData(e *experiment.Experiment, p geom.Position, name string) bool {
	v, ok := e.PositionData.Get(p, name)
	return ok && v.Kind == metadata.KindBool && v.B
}

func floatData(e *experiment.Experiment, p geom.Position, name string) (float64, bool) {
	v, ok := e.PositionData.Get(p, name)
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case metadata.KindFloat:
		return v.F, true
	case metadata.KindInt:
		return float64(v.I), true
	default:
		return 0, false
	}
}

func hasEndMarker(e *experiment.Experiment, p geom.Position) bool {
	_, ok := e.Links.GetPositionData(p, metadata.NameEnding)
	return ok
}

func hasStartMarker(e *experiment.Experiment, p geom.Position) bool {
	_, ok := e.Links.GetPositionData(p, metadata.NameStarting)
	return ok
}

func endsDeadOrShed(e *experiment.Experiment, p geom.Position) bool {
	v, ok := e.Links.GetPositionData(p, metadata.NameEnding)
	return ok && v.Kind == metadata.KindString && (v.S == metadata.EndMarkerDead || v.S == metadata.EndMarkerShed)
}

func anyPosition(set map[geom.Position]struct{}) geom.Position {
	for p := range set {
		return p
	}
	return geom.Position{}
}

// ageInHours walks back through the lineage graph to this position's
// track-local age and converts it to hours using the experiment's
// resolution. Grounded on the same ancestor-walk cell_error_finder.py uses
// to compute a mother's youth before emitting YOUNG_MOTHER.
func ageInHours(e *experiment.Experiment, p geom.Position) (float64, bool) {
	track := e.Links.GetTrack(p)
	if track == nil {
		return 0, false
	}
	positions := track.Positions()
	idx := p.T - track.MinTimePointNumber()
	if idx < 0 || idx >= len(positions) {
		return 0, false
	}
	ageTimePoints := idx
	for cur := track; cur.IsRoot() == false; {
		prevs := cur.Previous()
		if len(prevs) != 1 {
			break
		}
		if len(prevs[0].Next()) != 1 {
			// prevs[0] is a dividing mother: this track starts a new cell
			// cycle here, so the age walk stops.
			break
		}
		ageTimePoints += prevs[0].Len()
		cur = prevs[0]
	}
	return float64(ageTimePoints) * e.Resolution.TimePointIntervalMinutes / 60, true
}

// shrunkALot implements the SHRUNK_A_LOT rule's two ratios: past_volume
// versus current volume, and the mean volume over the five positions before
// past versus the five positions after p.
func shrunkALot(e *experiment.Experiment, cfg Config, past, current geom.Position) bool {
	pastVol, ok := floatData(e, past, metadata.NameIntensityVolume)
	if !ok {
		return false
	}
	curVol, ok := floatData(e, current, metadata.NameIntensityVolume)
	if !ok || curVol <= 0 || pastVol/curVol <= cfg.ShrunkVolumeRatio {
		return false
	}

	meanPast := meanVolume(e, walkTrack(e, past, -5))
	meanNext := meanVolume(e, walkTrack(e, current, 5))
	if math.IsNaN(meanPast) || math.IsNaN(meanNext) || meanNext <= 0 {
		return false
	}
	return meanPast/meanNext > cfg.ShrunkVolumeRatio
}

// walkTrack returns up to abs(steps) positions strictly before (steps < 0)
// or after (steps > 0) start, following the single track start belongs to
// and stopping at a division or track end.
func walkTrack(e *experiment.Experiment, start geom.Position, steps int) []geom.Position {
	var out []geom.Position
	cur := start
	n := steps
	if n < 0 {
		n = -n
	}
	dir := 1
	if steps < 0 {
		dir = -1
	}
	for i := 0; i < n; i++ {
		var next geom.Position
		var ok bool
		if dir < 0 {
			next, ok = onlyOf(e.Links.FindPasts(cur))
		} else {
			next, ok = onlyOf(e.Links.FindFutures(cur))
		}
		if !ok {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

func onlyOf(set map[geom.Position]struct{}) (geom.Position, bool) {
	if len(set) != 1 {
		return geom.Position{}, false
	}
	for p := range set {
		return p, true
	}
	return geom.Position{}, false
}

func meanVolume(e *experiment.Experiment, positions []geom.Position) float64 {
	if len(positions) == 0 {
		return math.NaN()
	}
	sum := 0.0
	n := 0
	for _, p := range positions {
		if v, ok := floatData(e, p, metadata.NameIntensityVolume); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// IsSuppressed reports whether p's current error is suppressed: spec.md
// §4.9's "suppressed_error == error.value" rule hides the warning from
// query results while leaving the raw error marker in place.
func IsSuppressed(e *experiment.Experiment, p geom.Position) bool {
	errVal, ok := e.Links.GetPositionData(p, metadata.NameError)
	if !ok {
		return false
	}
	suppressed, ok := e.Links.GetPositionData(p, metadata.NameSuppressedError)
	return ok && suppressed.Kind == metadata.KindString && suppressed.S == errVal.S
}

// VisibleError returns p's error kind unless it is suppressed, in which
// case it returns (None, true) to distinguish "no error" from "suppressed".
func VisibleError(e *experiment.Experiment, p geom.Position) (Kind, bool) {
	if IsSuppressed(e, p) {
		return None, true
	}
	v, ok := e.Links.GetPositionData(p, metadata.NameError)
	if !ok {
		return None, false
	}
	return kindFromString(v.S), true
}

func kindFromString(s string) Kind {
	for k := UncertainPosition; k <= MovedTooFast; k++ {
		if k.String() == s {
			return k
		}
	}
	return None
}
