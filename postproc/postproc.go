// Package postproc implements the link-selection post-processors (C12):
// edge removal, spur removal, and camera-motion annotation. Grounded on
// original_source/ai_track/linking_analysis/links_postprocessor.py.
package postproc

import (
	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
)

// minStartingTrackLength is spec.md §4.12's spur-removal threshold: a
// starting track shorter than this many time points, with no division at
// its end, is deleted outright.
const minStartingTrackLength = 3

// Run applies all three post-processors in the order spec.md §4.12 lists
// them: edge removal first (so spur removal doesn't have to special-case
// positions about to disappear), then spur removal, then camera-motion
// annotation.
func Run(e *experiment.Experiment, marginXY float64) {
	RemovePositionsNearEdge(e, marginXY)
	RemoveSpurs(e)
	AnnotateCameraMotion(e)
}

// RemovePositionsNearEdge deletes every position that falls outside the
// image margin in xy, first annotating its linked neighbors with the
// appropriate start/end marker so it is clear why their track appeared or
// disappeared there.
func RemovePositionsNearEdge(e *experiment.Experiment, marginXY float64) {
	for _, t := range e.Positions.TimePoints() {
		for _, p := range e.Positions.OfTimePoint(t) {
			inside, ok := e.IsInsideImage(p, marginXY, 0)
			if ok && inside {
				continue
			}
			if !ok {
				continue // no image loader attached: nothing to check against
			}
			annotateOutOfViewNeighbors(e, p)
			e.RemovePosition(p)
		}
	}
}

func annotateOutOfViewNeighbors(e *experiment.Experiment, p geom.Position) {
	for linked := range e.Links.FindLinksOf(p) {
		if linked.T < p.T {
			setEnding(e, linked, metadata.EndMarkerOutOfView)
		} else {
			setStarting(e, linked, metadata.StartMarkerGoesIntoView)
		}
	}
}

func setEnding(e *experiment.Experiment, p geom.Position, marker string) {
	v := metadata.Str(marker)
	_ = e.Links.SetPositionData(p, metadata.NameEnding, &v)
}

func setStarting(e *experiment.Experiment, p geom.Position, marker string) {
	v := metadata.Str(marker)
	_ = e.Links.SetPositionData(p, metadata.NameStarting, &v)
}

// RemoveSpurs deletes every starting (root) track shorter than
// minStartingTrackLength time points that terminates without a division.
// A track that ends in a division is kept regardless of length, even
// though the source's per-branch recursive walk would also re-examine (and
// potentially delete) each daughter branch; spec.md §4.12 scopes this rule
// to starting tracks only.
func RemoveSpurs(e *experiment.Experiment) {
	for _, root := range e.Links.FindStartingTracks() {
		if len(root.Next()) != 0 {
			continue
		}
		if root.Len() >= minStartingTrackLength {
			continue
		}
		for _, p := range root.Positions() {
			e.RemovePosition(p)
		}
	}
}

// AnnotateCameraMotion marks positions that fall outside the image at an
// adjacent time point (because the camera moved) with the same start/end
// markers edge removal uses, without deleting anything.
func AnnotateCameraMotion(e *experiment.Experiment) {
	timePoints := e.Positions.TimePoints()
	for i := 1; i < len(timePoints); i++ {
		prevT, curT := timePoints[i-1], timePoints[i]
		if !cameraMoved(e, prevT, curT) {
			continue
		}

		for _, p := range e.Positions.OfTimePoint(prevT) {
			if inside, ok := e.IsInsideImage(p.WithTime(curT), 0, 0); ok && !inside {
				setEnding(e, p, metadata.EndMarkerOutOfView)
			}
		}
		for _, p := range e.Positions.OfTimePoint(curT) {
			if inside, ok := e.IsInsideImage(p.WithTime(prevT), 0, 0); ok && !inside {
				setStarting(e, p, metadata.StartMarkerGoesIntoView)
			}
		}
	}
}

func cameraMoved(e *experiment.Experiment, prevT, curT int) bool {
	ox1, oy1, oz1 := e.ImageOffset(prevT)
	ox2, oy2, oz2 := e.ImageOffset(curT)
	return ox1 != ox2 || oy1 != oy2 || oz1 != oz2
}
