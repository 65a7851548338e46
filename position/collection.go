// Package position implements the spatial position store (C2): the set of
// all detected cell positions, indexed for fast iteration by time point and
// by z-slice.
package position

import (
	"math"
	"sort"

	"github.com/jvzon-lab/tracklineage/geom"
)

// zBucket rounds z to the nearest integer slice index, matching the
// source's (t, round(z)) -> set-of-positions indexing.
func zBucket(z float64) int {
	return int(math.Round(z))
}

type tzKey struct {
	t int
	z int
}

// Collection is a set of geom.Position values, indexed by time point and by
// rounded z-slice. Every stored position must carry a defined T; the zero
// value of Collection is empty and ready to use.
type Collection struct {
	byTZ   map[tzKey]map[geom.Position]struct{}
	byT    map[int]map[geom.Position]struct{}
	firstT *int
	lastT  *int
	count  int
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{
		byTZ: make(map[tzKey]map[geom.Position]struct{}),
		byT:  make(map[int]map[geom.Position]struct{}),
	}
}

// Len returns the number of stored positions.
func (c *Collection) Len() int { return c.count }

// Contains reports whether p is stored.
func (c *Collection) Contains(p geom.Position) bool {
	set, ok := c.byT[p.T]
	if !ok {
		return false
	}
	_, ok = set[p]
	return ok
}

// Add inserts p. A no-op if p is already present.
func (c *Collection) Add(p geom.Position) {
	if c.Contains(p) {
		return
	}
	if c.byT[p.T] == nil {
		c.byT[p.T] = make(map[geom.Position]struct{})
	}
	c.byT[p.T][p] = struct{}{}

	key := tzKey{t: p.T, z: zBucket(p.Z)}
	if c.byTZ[key] == nil {
		c.byTZ[key] = make(map[geom.Position]struct{})
	}
	c.byTZ[key][p] = struct{}{}

	c.count++
	c.touchBoundary(p.T)
}

// Remove deletes p if present, cleaning up now-empty buckets and
// recomputing the first/last time point if a boundary position was
// removed.
func (c *Collection) Remove(p geom.Position) {
	set, ok := c.byT[p.T]
	if !ok {
		return
	}
	if _, ok := set[p]; !ok {
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(c.byT, p.T)
	}

	key := tzKey{t: p.T, z: zBucket(p.Z)}
	if zset, ok := c.byTZ[key]; ok {
		delete(zset, p)
		if len(zset) == 0 {
			delete(c.byTZ, key)
		}
	}

	c.count--
	if c.firstT != nil && *c.firstT == p.T || c.lastT != nil && *c.lastT == p.T {
		c.recomputeBoundary()
	}
}

// Move relocates a position from old to new, requiring old.T == new.T.
// Returns false if old was not present.
func (c *Collection) Move(old, new_ geom.Position) bool {
	if old.T != new_.T {
		panic("position: Move requires old.T == new.T")
	}
	if !c.Contains(old) {
		return false
	}
	c.Remove(old)
	c.Add(new_)
	return true
}

// OfTimePoint returns all positions at time point t.
func (c *Collection) OfTimePoint(t int) []geom.Position {
	set := c.byT[t]
	out := make([]geom.Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// NearbyZ returns all positions in time point t whose rounded z equals z.
func (c *Collection) NearbyZ(t int, z float64) []geom.Position {
	set := c.byTZ[tzKey{t: t, z: zBucket(z)}]
	out := make([]geom.Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// FirstT returns the lowest time point with at least one position, and
// false if the collection is empty.
func (c *Collection) FirstT() (int, bool) {
	if c.firstT == nil {
		return 0, false
	}
	return *c.firstT, true
}

// LastT returns the highest time point with at least one position, and
// false if the collection is empty.
func (c *Collection) LastT() (int, bool) {
	if c.lastT == nil {
		return 0, false
	}
	return *c.lastT, true
}

// TimePoints returns all time points that have at least one position, in
// ascending order.
func (c *Collection) TimePoints() []int {
	out := make([]int, 0, len(c.byT))
	for t := range c.byT {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Copy returns a deep copy of c.
func (c *Collection) Copy() *Collection {
	out := New()
	for t, set := range c.byT {
		out.byT[t] = make(map[geom.Position]struct{}, len(set))
		for p := range set {
			out.byT[t][p] = struct{}{}
		}
	}
	for k, set := range c.byTZ {
		out.byTZ[k] = make(map[geom.Position]struct{}, len(set))
		for p := range set {
			out.byTZ[k][p] = struct{}{}
		}
	}
	out.count = c.count
	if c.firstT != nil {
		v := *c.firstT
		out.firstT = &v
	}
	if c.lastT != nil {
		v := *c.lastT
		out.lastT = &v
	}
	return out
}

func (c *Collection) touchBoundary(t int) {
	if c.firstT == nil || t < *c.firstT {
		v := t
		c.firstT = &v
	}
	if c.lastT == nil || t > *c.lastT {
		v := t
		c.lastT = &v
	}
}

func (c *Collection) recomputeBoundary() {
	if len(c.byT) == 0 {
		c.firstT = nil
		c.lastT = nil
		return
	}
	first, last := math.MaxInt64, math.MinInt64
	for t := range c.byT {
		if t < first {
			first = t
		}
		if t > last {
			last = t
		}
	}
	c.firstT = &first
	c.lastT = &last
}
