// Package experiment implements the Experiment aggregate (C7): the owning
// object for a single time-lapse recording's positions, lineage graph,
// connection graph, metadata, and images. Grounded on original_source/
// organoid_tracker/core/experiment.py.
package experiment

import (
	"errors"
	"fmt"
	"math"

	"github.com/jvzon-lab/tracklineage/connections"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/lineage"
	"github.com/jvzon-lab/tracklineage/metadata"
	"github.com/jvzon-lab/tracklineage/position"
)

// DefaultLineageLookaheadHorizon is the number of time points a lineage
// analysis looks ahead by default when deciding a cell's fate (spec.md
// §4.7, §4.13).
const DefaultLineageLookaheadHorizon = 80

// ErrScaleMismatch indicates Merge was asked to reconcile two experiments
// whose time-point interval differs by more than 10%, which cannot be
// corrected by rescaling (time only ever advances one point at a time).
var ErrScaleMismatch = errors.New("experiment: time scale mismatch exceeds 10%")

// ErrTimePointMismatch indicates MovePosition was called across time
// points.
var ErrTimePointMismatch = errors.New("experiment: old and new position must share a time point")

// Experiment is the owning aggregate of a single recording: positions,
// beacons, per-position metadata, the lineage graph, the connection graph,
// an image facade, and a name. The zero value is not usable; construct
// with New.
type Experiment struct {
	Name string

	Positions    *position.Collection
	Beacons      *position.Collection
	PositionData *metadata.PositionData
	Links        *lineage.Links
	Connections  *connections.Connections

	Resolution              geom.Resolution
	resolutionSet           bool
	LineageLookaheadHorizon int

	images *imageFacade

	// splineFirstT/splineLastT stand in for the splines module's own time
	// bounds (spline tracking is out of this module's scope per spec.md's
	// Non-goals); they default to "unset" and are only consulted by
	// FirstTimePointNumber/LastTimePointNumber alongside images/positions.
	splineFirstT *int
	splineLastT  *int
}

// New returns an empty Experiment with default lineage lookahead horizon.
func New() *Experiment {
	return &Experiment{
		Positions:               position.New(),
		Beacons:                 position.New(),
		PositionData:            metadata.NewPositionData(),
		Links:                   lineage.New(),
		Connections:             connections.New(),
		LineageLookaheadHorizon: DefaultLineageLookaheadHorizon,
		images:                  newImageFacade(),
	}
}

// Copy returns a deep copy of e: every sub-store (positions, beacons,
// position data, links, connections, images) is independently copied, so
// mutating the result never affects e. Used by internal/workerpool to hand
// each worker goroutine its own experiment to mutate freely.
func (e *Experiment) Copy() *Experiment {
	cp := &Experiment{
		Name:                    e.Name,
		Positions:               e.Positions.Copy(),
		Beacons:                 e.Beacons.Copy(),
		PositionData:            e.PositionData.Copy(),
		Links:                   e.Links.Copy(),
		Connections:             e.Connections.Copy(),
		Resolution:              e.Resolution,
		resolutionSet:           e.resolutionSet,
		LineageLookaheadHorizon: e.LineageLookaheadHorizon,
		images:                  e.images.Copy(),
	}
	if e.splineFirstT != nil {
		t := *e.splineFirstT
		cp.splineFirstT = &t
	}
	if e.splineLastT != nil {
		t := *e.splineLastT
		cp.splineLastT = &t
	}
	return cp
}

// SetResolution records the physical resolution of this experiment's
// images, used by Merge to decide whether the other experiment needs
// rescaling.
func (e *Experiment) SetResolution(r geom.Resolution) {
	e.Resolution = r
	e.resolutionSet = true
}

// SetImageLoader attaches an image loading capability to the image facade.
func (e *Experiment) SetImageLoader(loader ImageLoader) { e.images.SetLoader(loader) }

// SetImageOffset records the integer XYZ offset in effect at time point t.
func (e *Experiment) SetImageOffset(t int, x, y, z int) { e.images.SetOffset(t, x, y, z) }

// ImageOffset returns the integer XYZ offset in effect at time point t, or
// the zero offset if none was set.
func (e *Experiment) ImageOffset(t int) (x, y, z int) { return e.images.Offset(t) }

// Image loads the 3D array for (t, channel) through the bounded image
// cache, returning (nil, false) if no loader is attached or no image is
// available there.
func (e *Experiment) Image(t int, channel string) (*Image3D, bool) { return e.images.Image(t, channel) }

// IsInsideImage reports whether p, expanded by the given margins, falls
// within the loaded image bounds at p's time point; ok is false if no image
// loader is attached or the loader does not yet know its size.
func (e *Experiment) IsInsideImage(p geom.Position, marginXY, marginZ float64) (inside, ok bool) {
	return e.images.IsInsideImage(p.T, p.X, p.Y, p.Z, marginXY, marginZ)
}

// RemovePosition forwards the removal to every sub-store that indexes
// positions (spec.md §4.7): PositionCollection, Links, Connections, and
// PositionData. Spline-origin recomputation is a documented no-op hook,
// since splines are out of this module's scope.
func (e *Experiment) RemovePosition(p geom.Position) {
	e.Positions.Remove(p)
	e.Links.RemovePosition(p)
	e.Connections.RemoveConnectionsOf(p)
	e.PositionData.RemovePosition(p)
	e.notifySplineOriginsChanged(p.T)
}

// MovePosition relocates old to new_ everywhere old is indexed, requiring
// old.T == new_.T.
func (e *Experiment) MovePosition(old, new_ geom.Position) error {
	if old.T != new_.T {
		return ErrTimePointMismatch
	}
	if err := e.Links.ReplacePosition(old, new_); err != nil {
		return err
	}
	if err := e.Connections.ReplacePosition(old, new_); err != nil {
		return err
	}
	if !e.Positions.Move(old, new_) {
		return nil
	}
	e.PositionData.ReplacePosition(old, new_)
	e.notifySplineOriginsChanged(new_.T)
	return nil
}

// notifySplineOriginsChanged is the documented interface point for a
// spline-origin updater (spec.md §4.7); splines themselves are out of this
// module's core scope, so this is deliberately a no-op.
func (e *Experiment) notifySplineOriginsChanged(t int) {}

// FirstTimePointNumber returns the minimum time point across images,
// positions, and splines, ignoring whichever of those sources is unset.
// Returns false if none of them have any data.
func (e *Experiment) FirstTimePointNumber() (int, bool) {
	return minOf(e.imagesFirstT(), e.positionsFirstT(), e.splineFirstT)
}

// LastTimePointNumber returns the maximum time point across images,
// positions, and splines, ignoring whichever of those sources is unset.
func (e *Experiment) LastTimePointNumber() (int, bool) {
	return maxOf(e.imagesLastT(), e.positionsLastT(), e.splineLastT)
}

func (e *Experiment) imagesFirstT() *int {
	if t, ok := e.images.FirstTimePointNumber(); ok {
		return &t
	}
	return nil
}

func (e *Experiment) imagesLastT() *int {
	if t, ok := e.images.LastTimePointNumber(); ok {
		return &t
	}
	return nil
}

func (e *Experiment) positionsFirstT() *int {
	if t, ok := e.Positions.FirstT(); ok {
		return &t
	}
	return nil
}

func (e *Experiment) positionsLastT() *int {
	if t, ok := e.Positions.LastT(); ok {
		return &t
	}
	return nil
}

func minOf(values ...*int) (int, bool) {
	best := math.MaxInt64
	found := false
	for _, v := range values {
		if v != nil && *v < best {
			best = *v
			found = true
		}
	}
	return best, found
}

func maxOf(values ...*int) (int, bool) {
	best := math.MinInt64
	found := false
	for _, v := range values {
		if v != nil && *v > best {
			best = *v
			found = true
		}
	}
	return best, found
}

// Merge unions other's positions, beacons, links, position data, and
// connections into e. Both metadata stores are merged: e.PositionData
// (detection-level data such as mother_score, uncertain, intensity) and
// e.Links' own PositionData/LinkData (the canonical lineage markers
// Links.SetPositionData/SetLinkData write — ending, starting, error,
// suppressed_error, type), since without the latter merging two tracked
// experiments would silently drop their lineage markers. If both e and
// other have a resolution set and they differ, other's positions are
// rescaled in x/y and z first; a time-point-interval mismatch beyond ±10%
// is rejected with ErrScaleMismatch, since links can only ever span
// exactly one time point and a timescale change that large cannot be
// corrected for.
//
// Ordering, per the resolved Open Question (see DESIGN.md): rescale other's
// positions first, then union every store, then notify the (no-op) spline
// updater last.
func (e *Experiment) Merge(other *Experiment) error {
	if e.resolutionSet && other.resolutionSet {
		if err := rescale(other, e.Resolution); err != nil {
			return err
		}
	}

	for _, t := range other.Positions.TimePoints() {
		for _, p := range other.Positions.OfTimePoint(t) {
			e.Positions.Add(p)
		}
	}
	for _, t := range other.Beacons.TimePoints() {
		for _, p := range other.Beacons.OfTimePoint(t) {
			e.Beacons.Add(p)
		}
	}
	for _, link := range other.Links.FindAllLinks() {
		if err := e.Links.AddLink(link.Earlier, link.Later); err != nil {
			return fmt.Errorf("experiment: merging link %v-%v: %w", link.Earlier, link.Later, err)
		}
	}
	e.PositionData.Merge(other.PositionData)
	e.Links.PositionData().Merge(other.Links.PositionData())
	e.Links.LinkData().Merge(other.Links.LinkData())
	e.Connections.AddConnections(other.Connections)

	for _, t := range other.Positions.TimePoints() {
		e.notifySplineOriginsChanged(t)
	}
	return nil
}

// rescale adjusts other's positions in place to match targetRes, mutating
// other.Positions via MovePosition so links and connections keep pointing
// at the rescaled positions.
func rescale(other *Experiment, targetRes geom.Resolution) error {
	xFactor := targetRes.PxXUm / other.Resolution.PxXUm
	zFactor := targetRes.PxZUm / other.Resolution.PxZUm

	tFactor := 1.0
	if targetRes.TimePointIntervalMinutes != 0 && other.Resolution.TimePointIntervalMinutes != 0 {
		tFactor = targetRes.TimePointIntervalMinutes / other.Resolution.TimePointIntervalMinutes
	}
	if tFactor < 0.9 || tFactor > 1.1 {
		return fmt.Errorf("%w: %g vs %g minutes/time point", ErrScaleMismatch, other.Resolution.TimePointIntervalMinutes, targetRes.TimePointIntervalMinutes)
	}

	if math.Abs(xFactor-1) < 1e-4 && math.Abs(zFactor-1) < 1e-4 {
		other.Resolution = targetRes
		return nil
	}

	for _, t := range other.Positions.TimePoints() {
		for _, p := range other.Positions.OfTimePoint(t) {
			scaled := geom.New(p.X*xFactor, p.Y*xFactor, p.Z*zFactor, p.T)
			if scaled.Equal(p) {
				continue
			}
			if err := other.MovePosition(p, scaled); err != nil {
				return err
			}
		}
	}
	other.Resolution = targetRes
	return nil
}
