// Package geom provides the immutable geometric primitives shared by every
// other package in this module: a 3D pixel position tagged with a time
// point, and the physical resolution needed to convert pixel distances to
// micrometers.
//
// Errors:
//
//	ErrSameTimePoint - interpolate was asked for two positions at the same t.
package geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrSameTimePoint indicates Interpolate was called with two positions
// sharing the same time point, so no interpolation direction exists.
var ErrSameTimePoint = errors.New("geom: positions share the same time point")

// eqTolerancePx is the per-axis tolerance (in pixels) for Position equality,
// chosen so that positions round-tripped through JSON compare equal again.
const eqTolerancePx = 0.01

// Position is an immutable detected location: pixel coordinates (X, Y, Z)
// at time point T. T is only meaningful once a Position has been attached
// to a time-pointed collection; most operations in this module require it.
type Position struct {
	X, Y, Z float64
	T       int
}

// New constructs a Position at the given time point.
func New(x, y, z float64, t int) Position {
	return Position{X: x, Y: y, Z: z, T: t}
}

// Equal reports whether two positions are the same within eqTolerancePx on
// each axis and have the same time point.
func (p Position) Equal(o Position) bool {
	return p.T == o.T &&
		math.Abs(p.X-o.X) <= eqTolerancePx &&
		math.Abs(p.Y-o.Y) <= eqTolerancePx &&
		math.Abs(p.Z-o.Z) <= eqTolerancePx
}

// Hash returns a value consistent with Equal: p.Equal(o) implies
// p.Hash() == o.Hash(). It hashes the time point only, since any rounding
// of the coordinates would split some equal pair that straddles a rounding
// boundary; every position of one time point therefore collides, and
// callers must treat it as a bucketing pre-filter, never as a substitute
// for Equal. See DESIGN.md.
func (p Position) Hash() uint64 {
	return uint64(int64(p.T)) * 1000357
}

// Add returns p + o, ignoring (and keeping p's) time point.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z, T: p.T}
}

// Sub returns p - o, ignoring (and keeping p's) time point.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z, T: p.T}
}

// Scale returns p scaled by a scalar factor, keeping p's time point.
func (p Position) Scale(factor float64) Position {
	return Position{X: p.X * factor, Y: p.Y * factor, Z: p.Z * factor, T: p.T}
}

// WithTime returns a copy of p attached to time point t.
func (p Position) WithTime(t int) Position {
	p.T = t
	return p
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, t=%d)", p.X, p.Y, p.Z, p.T)
}

// Resolution is the immutable physical scale of an image: micrometers per
// pixel on each axis, and minutes per time point. PxXUm and PxYUm must be
// equal (square pixels in the imaging plane); all fields are non-negative.
type Resolution struct {
	PxXUm, PxYUm, PxZUm        float64
	TimePointIntervalMinutes float64
}

// NewResolution validates and constructs a Resolution. PxXUm and PxYUm must
// be equal and every field non-negative.
func NewResolution(pxXUm, pxYUm, pxZUm, timePointIntervalMinutes float64) (Resolution, error) {
	r := Resolution{PxXUm: pxXUm, PxYUm: pxYUm, PxZUm: pxZUm, TimePointIntervalMinutes: timePointIntervalMinutes}
	if pxXUm != pxYUm {
		return Resolution{}, fmt.Errorf("geom: pixel size x (%g) and y (%g) must be equal", pxXUm, pxYUm)
	}
	if pxXUm < 0 || pxYUm < 0 || pxZUm < 0 || timePointIntervalMinutes < 0 {
		return Resolution{}, errors.New("geom: resolution fields must be non-negative")
	}
	return r, nil
}

// DistanceUm returns the physical distance in micrometers between a and b
// under resolution res.
func DistanceUm(a, b Position, res Resolution) float64 {
	dx := (a.X - b.X) * res.PxXUm
	dy := (a.Y - b.Y) * res.PxYUm
	dz := (a.Z - b.Z) * res.PxZUm
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistanceSquaredUm is DistanceUm without the final sqrt, useful for
// argmin comparisons where the square root is unnecessary work.
func DistanceSquaredUm(a, b Position, res Resolution) float64 {
	dx := (a.X - b.X) * res.PxXUm
	dy := (a.Y - b.Y) * res.PxYUm
	dz := (a.Z - b.Z) * res.PxZUm
	return dx*dx + dy*dy + dz*dz
}

// Interpolate returns the ordered sequence of dt+1 positions from a to b
// (inclusive), where dt = |b.T - a.T|, linearly interpolating x/y/z at
// every integer time point in between. Fails with ErrSameTimePoint if a and
// b share a time point.
func Interpolate(a, b Position) ([]Position, error) {
	if a.T == b.T {
		return nil, ErrSameTimePoint
	}
	start, end := a, b
	if start.T > end.T {
		start, end = end, start
	}
	dt := end.T - start.T
	out := make([]Position, 0, dt+1)
	for i := 0; i <= dt; i++ {
		frac := float64(i) / float64(dt)
		out = append(out, Position{
			X: start.X + (end.X-start.X)*frac,
			Y: start.Y + (end.Y-start.Y)*frac,
			Z: start.Z + (end.Z-start.Z)*frac,
			T: start.T + i,
		})
	}
	return out, nil
}
