package lineage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
)

// ErrBadLink indicates an operation on two positions that are not exactly
// one time point apart.
var ErrBadLink = errors.New("lineage: link endpoints must be exactly one time point apart")

// ErrTimePointMismatch indicates ReplacePosition was called with positions
// at different time points.
var ErrTimePointMismatch = errors.New("lineage: old and new position must share a time point")

// ErrReservedDataName indicates the position/link data name "id" (reserved
// for the lineage graph itself) was used.
var ErrReservedDataName = errors.New("lineage: \"id\" is a reserved data name")

// sortMode selects the key used to order tracks when assigning dense ids.
type sortMode int

const (
	sortByCreation sortMode = iota
	sortByX
)

// Links is the lineage graph: the set of all Tracks plus a position->track
// index and the position/link metadata stores. The zero value is not
// usable; construct with New.
type Links struct {
	live     map[*Track]struct{}
	posIndex map[geom.Position]*Track
	posData  *metadata.PositionData
	linkData *metadata.LinkData

	nextSeq int64
	mode    sortMode

	idsValid bool
	ids      map[*Track]int
	order    []*Track
}

// New returns an empty Links.
func New() *Links {
	return &Links{
		live:     make(map[*Track]struct{}),
		posIndex: make(map[geom.Position]*Track),
		posData:  metadata.NewPositionData(),
		linkData: metadata.NewLinkData(),
	}
}

func (l *Links) addTrack(t *Track) {
	l.live[t] = struct{}{}
	l.idsValid = false
}

func (l *Links) removeTrack(t *Track) {
	delete(l.live, t)
	l.idsValid = false
}

func (l *Links) getOrCreateTrack(p geom.Position) *Track {
	if t, ok := l.posIndex[p]; ok {
		return t
	}
	t := newTrack(p, l.nextSeq)
	l.nextSeq++
	l.posIndex[p] = t
	l.addTrack(t)
	return t
}

// GetTrack returns the track containing p, or nil if p has no links.
func (l *Links) GetTrack(p geom.Position) *Track {
	return l.posIndex[p]
}

// ContainsLink reports whether a and b are directly linked.
func (l *Links) ContainsLink(a, b geom.Position) bool {
	futures := l.FindFutures(a)
	if _, ok := futures[b]; ok {
		return true
	}
	pasts := l.FindPasts(a)
	_, ok := pasts[b]
	return ok
}

// FindFutures returns the set of positions one time point later than p
// that are linked to p.
func (l *Links) FindFutures(p geom.Position) map[geom.Position]struct{} {
	out := make(map[geom.Position]struct{})
	t := l.posIndex[p]
	if t == nil {
		return out
	}
	idx := t.age(p)
	if idx+1 < len(t.positions) {
		if s := t.positions[idx+1]; s.present {
			out[s.pos] = struct{}{}
		}
		return out
	}
	// p is the track's last position; futures are the first positions of
	// every next track.
	for _, n := range t.next {
		out[n.FirstPosition()] = struct{}{}
	}
	return out
}

// FindPasts returns the set of positions one time point earlier than p
// that are linked to p.
func (l *Links) FindPasts(p geom.Position) map[geom.Position]struct{} {
	out := make(map[geom.Position]struct{})
	t := l.posIndex[p]
	if t == nil {
		return out
	}
	idx := t.age(p)
	if idx-1 >= 0 {
		if s := t.positions[idx-1]; s.present {
			out[s.pos] = struct{}{}
		}
		return out
	}
	for _, pr := range t.prev {
		out[pr.LastPosition()] = struct{}{}
	}
	return out
}

// FindLinksOf returns every position directly linked to p, past or future.
func (l *Links) FindLinksOf(p geom.Position) map[geom.Position]struct{} {
	out := l.FindFutures(p)
	for q := range l.FindPasts(p) {
		out[q] = struct{}{}
	}
	return out
}

// Link is an undirected link between two consecutive-time-point positions,
// always stored with Earlier before Later.
type Link struct {
	Earlier, Later geom.Position
}

// FindAllLinks returns every link in the graph, each exactly once, as
// (earlier, later) pairs.
func (l *Links) FindAllLinks() []Link {
	var out []Link
	for t := range l.live {
		for i := 0; i+1 < len(t.positions); i++ {
			if t.positions[i].present && t.positions[i+1].present {
				out = append(out, Link{Earlier: t.positions[i].pos, Later: t.positions[i+1].pos})
			}
		}
		for _, n := range t.next {
			out = append(out, Link{Earlier: t.LastPosition(), Later: n.FirstPosition()})
		}
	}
	return out
}

// CountLinks returns len(FindAllLinks()) without allocating the slice.
func (l *Links) CountLinks() int {
	n := 0
	for t := range l.live {
		for i := 0; i+1 < len(t.positions); i++ {
			if t.positions[i].present && t.positions[i+1].present {
				n++
			}
		}
		n += len(t.next)
	}
	return n
}

// AddLink records that a and b are the same cell across consecutive time
// points. Idempotent if the link already exists. Fails with ErrBadLink if
// |a.T - b.T| != 1.
func (l *Links) AddLink(p1, p2 geom.Position) error {
	dt := p1.T - p2.T
	if dt != 1 && dt != -1 {
		return fmt.Errorf("%w: t=%d and t=%d", ErrBadLink, p1.T, p2.T)
	}

	track1 := l.posIndex[p1]
	track2 := l.posIndex[p2]

	if track1 != nil && track2 != nil && l.ContainsLink(p1, p2) {
		return nil // already linked
	}

	// Fast path: appending p2 directly onto p1's track.
	if track1 != nil && track2 == nil {
		if track1.MaxTimePointNumber() == p1.T && len(track1.next) == 0 && p2.T == p1.T+1 {
			track1.positions = append(track1.positions, positionSlot{pos: p2, present: true})
			l.posIndex[p2] = track1
			return nil
		}
	}

	if track1 == nil {
		track1 = l.getOrCreateTrack(p1)
	}
	if track2 == nil {
		track2 = l.getOrCreateTrack(p2)
	}

	if p1.T > p2.T {
		track1, track2 = track2, track1
		p1, p2 = p2, p1
	}

	if track1 == track2 {
		// Both positions already live in the same track; since dt==1 this
		// can only mean they're already adjacent there, i.e. idempotent.
		return nil
	}

	if p1.T < track1.MaxTimePointNumber() {
		l.splitTrack(track1, track1.age(p1)+1, true) // track1 keeps the head ending at p1
	}
	if p2.T > track2.MinTimePointNumber() {
		track2 = l.splitTrack(track2, track2.age(p2), true) // track2 becomes the tail starting at p2
	}

	track1.next = append(track1.next, track2)
	track2.prev = append(track2.prev, track1)

	l.tryMerge(track1, track2)
	return nil
}

// splitTrack splits old at index i: positions [0,i) remain in old,
// [i, len) move to a freshly created track. When link is true the two
// halves stay connected (old.next = {new}, new.prev = {old}), matching the
// split used internally by AddLink; when false they are left unconnected,
// matching the split used by RemoveLink.
func (l *Links) splitTrack(old *Track, i int, link bool) *Track {
	tail := make([]positionSlot, len(old.positions)-i)
	copy(tail, old.positions[i:])
	newMinT := old.minT + i
	// A merge may have left a None-padded gap; a freshly split track must
	// not start with an absent slot.
	for len(tail) > 0 && !tail[0].present {
		tail = tail[1:]
		newMinT++
	}

	newTrack := &Track{
		minT:      newMinT,
		positions: tail,
		next:      old.next,
		seq:       l.nextSeq,
	}
	l.nextSeq++
	for _, n := range newTrack.next {
		n.prev = removeTrackFromSlice(n.prev, old)
		n.prev = append(n.prev, newTrack)
	}

	old.positions = old.positions[:i]
	if link {
		old.next = []*Track{newTrack}
		newTrack.prev = []*Track{old}
	} else {
		old.next = nil
	}

	for _, s := range newTrack.positions {
		if s.present {
			l.posIndex[s.pos] = newTrack
		}
	}
	l.addTrack(newTrack)
	return newTrack
}

// tryMerge concatenates b onto a when a has exactly one next track (b) and
// b has exactly one previous track (a), removing b.
func (l *Links) tryMerge(a, b *Track) {
	if len(a.next) != 1 || a.next[0] != b {
		return
	}
	if len(b.prev) != 1 || b.prev[0] != a {
		return
	}
	l.merge(a, b)
}

func (l *Links) merge(a, b *Track) {
	gap := b.minT - (a.minT + len(a.positions))
	for i := 0; i < gap; i++ {
		a.positions = append(a.positions, positionSlot{})
	}
	a.positions = append(a.positions, b.positions...)

	if a.lineageData == nil {
		a.lineageData = b.lineageData
	} else {
		for k, v := range b.lineageData {
			if _, ok := a.lineageData[k]; !ok {
				a.lineageData[k] = v
			}
		}
	}

	for _, s := range b.positions {
		if s.present {
			l.posIndex[s.pos] = a
		}
	}
	a.next = b.next
	for _, n := range a.next {
		n.prev = removeTrackFromSlice(n.prev, b)
		n.prev = append(n.prev, a)
	}
	l.removeTrack(b)
}

// RemoveLink removes the link between a and b, if any. Returns false if no
// such link existed.
func (l *Links) RemoveLink(a, b geom.Position) bool {
	p1, p2 := a, b
	if p1.T > p2.T {
		p1, p2 = p2, p1
	}
	if p1.T == p2.T {
		return false
	}

	t1 := l.posIndex[p1]
	t2 := l.posIndex[p2]
	if t1 == nil || t2 == nil {
		return false
	}

	if t1 == t2 {
		for tp := p1.T + 1; tp < p2.T; tp++ {
			if _, ok := t1.PositionAt(tp); ok {
				return false // something in between: no direct link exists
			}
		}
		newTrack := l.splitTrack(t1, t1.age(p1)+1, false)
		_ = newTrack
		return true
	}

	if t1.MaxTimePointNumber() != p1.T || t2.MinTimePointNumber() != p2.T {
		return false
	}
	if !containsTrack(t1.next, t2) {
		return false
	}
	t1.next = removeTrackFromSlice(t1.next, t2)
	t2.prev = removeTrackFromSlice(t2.prev, t1)
	// Dropping a division or merge branch can leave a sole successor or
	// predecessor behind; merge it so every track stays maximal.
	if len(t1.next) == 1 {
		l.tryMerge(t1, t1.next[0])
	}
	if len(t2.prev) == 1 {
		l.tryMerge(t2.prev[0], t2)
	}
	return true
}

// RemovePosition detaches p from the graph entirely, discarding its track
// if p was its only position, and dropping all position/link data touching
// p and its adjacent links.
func (l *Links) RemovePosition(p geom.Position) {
	t := l.posIndex[p]
	if t == nil {
		return
	}
	age := t.age(p)
	prevs, nexts := t.Previous(), t.Next()

	switch {
	case len(t.positions) == 1:
		for _, pr := range t.prev {
			pr.next = removeTrackFromSlice(pr.next, t)
		}
		for _, n := range t.next {
			n.prev = removeTrackFromSlice(n.prev, t)
		}
		l.removeTrack(t)
	case age == 0:
		for _, pr := range t.prev {
			pr.next = removeTrackFromSlice(pr.next, t)
		}
		t.prev = nil
		t.positions = t.positions[1:]
		t.minT++
		for len(t.positions) > 0 && !t.positions[0].present {
			t.positions = t.positions[1:]
			t.minT++
		}
	default:
		if p.T < t.MaxTimePointNumber() {
			// Splits off everything after p into a fresh track, linked for
			// now; the decoupling below immediately severs that link, since
			// p itself (about to be deleted) was the only thing connecting
			// them.
			l.splitTrack(t, age+1, true)
		}
		for _, n := range t.next {
			n.prev = removeTrackFromSlice(n.prev, t)
		}
		t.next = nil
		t.positions = t.positions[:len(t.positions)-1]
	}

	// A neighbouring track that lost a division or merge branch may now
	// have a sole successor or predecessor; merge it so tracks stay maximal.
	for _, pr := range prevs {
		if _, ok := l.live[pr]; ok && len(pr.next) == 1 {
			l.tryMerge(pr, pr.next[0])
		}
	}
	for _, n := range nexts {
		if _, ok := l.live[n]; ok && len(n.prev) == 1 {
			l.tryMerge(n.prev[0], n)
		}
	}

	delete(l.posIndex, p)
	l.posData.RemovePosition(p)
	l.linkData.RemovePosition(p)
	l.idsValid = false
}

// ReplacePosition moves old's identity (and all associated metadata and
// links) to new, requiring old.T == new.T.
func (l *Links) ReplacePosition(old, new_ geom.Position) error {
	if old.T != new_.T {
		return ErrTimePointMismatch
	}
	t := l.posIndex[old]
	if t == nil {
		return nil
	}
	idx := t.age(old)
	t.positions[idx] = positionSlot{pos: new_, present: true}
	delete(l.posIndex, old)
	l.posIndex[new_] = t

	l.posData.ReplacePosition(old, new_)
	l.linkData.ReplacePosition(old, new_)
	return nil
}

// FindStartingTracks returns every track with no previous tracks.
func (l *Links) FindStartingTracks() []*Track {
	var out []*Track
	for t := range l.live {
		if t.IsRoot() {
			out = append(out, t)
		}
	}
	return out
}

// FindAllTracks returns every track currently in the graph.
func (l *Links) FindAllTracks() []*Track {
	out := make([]*Track, 0, len(l.live))
	for t := range l.live {
		out = append(out, t)
	}
	return out
}

// FindAllTracksInTimePoint returns every track that has a position at t.
func (l *Links) FindAllTracksInTimePoint(t int) []*Track {
	var out []*Track
	for tr := range l.live {
		if _, ok := tr.PositionAt(t); ok {
			out = append(out, tr)
		}
	}
	return out
}

// GetPositionNearTimePoint walks the lineage forward or backward from p,
// choosing an arbitrary child at divisions, stopping at endpoints, and
// returning the position closest in time to target.
func (l *Links) GetPositionNearTimePoint(p geom.Position, target int) geom.Position {
	best := p
	if target == p.T {
		return p
	}
	if target > p.T {
		cur := p
		for cur.T < target {
			futures := l.FindFutures(cur)
			if len(futures) == 0 {
				break
			}
			cur = anyOf(futures)
			best = cur
		}
		return best
	}
	cur := p
	for cur.T > target {
		pasts := l.FindPasts(cur)
		if len(pasts) == 0 {
			break
		}
		cur = anyOf(pasts)
		best = cur
	}
	return best
}

func anyOf(set map[geom.Position]struct{}) geom.Position {
	for p := range set {
		return p
	}
	return geom.Position{}
}

// IterateToPast calls visit(p) and then repeats for p's single predecessor.
// The first visited position with zero or multiple predecessors is the last
// one visited; the walk passes through division mothers, which have a
// single predecessor of their own.
func (l *Links) IterateToPast(p geom.Position, visit func(geom.Position)) {
	cur := p
	for {
		visit(cur)
		pasts := l.FindPasts(cur)
		if len(pasts) != 1 {
			return
		}
		cur = anyOf(pasts)
	}
}

// SetPositionData delegates to the position-data store, additionally
// rejecting the reserved name "id".
func (l *Links) SetPositionData(p geom.Position, name string, value *metadata.Value) error {
	if name == "id" {
		return ErrReservedDataName
	}
	return l.posData.Set(p, name, value)
}

// GetPositionData delegates to the position-data store.
func (l *Links) GetPositionData(p geom.Position, name string) (metadata.Value, bool) {
	return l.posData.Get(p, name)
}

// PositionData exposes the underlying position-data store for bulk
// queries (e.g. AllWithName), per spec.md's data-model delegation.
func (l *Links) PositionData() *metadata.PositionData { return l.posData }

// SetLinkData delegates to the link-data store, additionally rejecting the
// reserved name "id".
func (l *Links) SetLinkData(a, b geom.Position, name string, value *metadata.Value) error {
	if name == "id" {
		return ErrReservedDataName
	}
	return l.linkData.Set(a, b, name, value)
}

// GetLinkData delegates to the link-data store.
func (l *Links) GetLinkData(a, b geom.Position, name string) (metadata.Value, bool, error) {
	return l.linkData.Get(a, b, name)
}

// LinkData exposes the underlying link-data store.
func (l *Links) LinkData() *metadata.LinkData { return l.linkData }

// GetLineageData reads per-lineage metadata, chasing previous-pointers to
// the lineage root (per spec.md §9's shared-mutable-lineage-data design).
func (l *Links) GetLineageData(t *Track, name string) (metadata.Value, bool) {
	root := rootOf(t)
	if root.lineageData == nil {
		return metadata.Value{}, false
	}
	v, ok := root.lineageData[name]
	return v, ok
}

// SetLineageData writes per-lineage metadata at the lineage root reached by
// chasing previous-pointers from t.
func (l *Links) SetLineageData(t *Track, name string, value *metadata.Value) error {
	if name == "id" {
		return ErrReservedDataName
	}
	root := rootOf(t)
	if value == nil {
		if root.lineageData != nil {
			delete(root.lineageData, name)
		}
		return nil
	}
	if root.lineageData == nil {
		root.lineageData = make(map[string]metadata.Value)
	}
	root.lineageData[name] = *value
	return nil
}

func rootOf(t *Track) *Track {
	for len(t.prev) > 0 {
		t = t.prev[0]
	}
	return t
}

// SortTracksByX reorders dense track ids so that tracks are visited in
// ascending order of their first position's X coordinate; the order of
// tracks with equal X is not defined. The ordering stays in effect for
// GetTrackID and FindAllTracksAndIDs from then on: ids are recomputed in X
// order after every structural mutation.
func (l *Links) SortTracksByX() {
	l.mode = sortByX
	l.idsValid = false
}

func (l *Links) ensureIDs() {
	if l.idsValid {
		return
	}
	tracks := make([]*Track, 0, len(l.live))
	for t := range l.live {
		tracks = append(tracks, t)
	}
	switch l.mode {
	case sortByX:
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].FirstPosition().X < tracks[j].FirstPosition().X
		})
	default:
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].seq < tracks[j].seq
		})
	}
	ids := make(map[*Track]int, len(tracks))
	for i, t := range tracks {
		ids[t] = i
	}
	l.order = tracks
	l.ids = ids
	l.idsValid = true
}

// GetTrackID returns t's dense integer id, stable until the next
// structural mutation or SortTracksByX call.
func (l *Links) GetTrackID(t *Track) int {
	l.ensureIDs()
	return l.ids[t]
}

// FindAllTracksAndIDs returns every track paired with its current dense id,
// in id order.
func (l *Links) FindAllTracksAndIDs() []TrackID {
	l.ensureIDs()
	out := make([]TrackID, len(l.order))
	for i, t := range l.order {
		out[i] = TrackID{Track: t, ID: i}
	}
	return out
}

// TrackID pairs a Track with its dense integer id.
type TrackID struct {
	Track *Track
	ID    int
}

// Copy returns a deep copy of l, reconstructing all track back-pointers.
func (l *Links) Copy() *Links {
	out := New()
	out.nextSeq = l.nextSeq
	out.mode = l.mode

	clones := make(map[*Track]*Track, len(l.live))
	for t := range l.live {
		c := &Track{minT: t.minT, seq: t.seq}
		c.positions = append([]positionSlot(nil), t.positions...)
		if t.lineageData != nil {
			c.lineageData = make(map[string]metadata.Value, len(t.lineageData))
			for k, v := range t.lineageData {
				c.lineageData[k] = v
			}
		}
		clones[t] = c
		out.live[c] = struct{}{}
	}
	for t, c := range clones {
		for _, pr := range t.prev {
			c.prev = append(c.prev, clones[pr])
		}
		for _, n := range t.next {
			c.next = append(c.next, clones[n])
		}
	}
	for p, t := range l.posIndex {
		out.posIndex[p] = clones[t]
	}
	out.posData = l.posData.Copy()
	out.linkData = l.linkData.Copy()
	return out
}

// SanityCheck is a debug-only invariant checker (spec.md §4.4): every
// position is indexed to the track it belongs to, no track is empty, a
// track with previous tracks carries no lineage data, every prev link is
// mirrored by a next link, and no two tracks could have been merged.
func (l *Links) SanityCheck() error {
	for p, t := range l.posIndex {
		if _, ok := l.live[t]; !ok {
			return fmt.Errorf("lineage: position %v indexed to a track not in the live set", p)
		}
		if _, ok := t.PositionAt(p.T); !ok {
			return fmt.Errorf("lineage: position %v not found in its indexed track", p)
		}
	}
	for t := range l.live {
		if len(t.positions) == 0 {
			return fmt.Errorf("lineage: empty track at t=%d", t.minT)
		}
		if !t.IsRoot() && len(t.lineageData) > 0 {
			return fmt.Errorf("lineage: non-root track at t=%d carries lineage data", t.minT)
		}
		for i, s := range t.positions {
			if s.present && s.pos.T != t.minT+i {
				return fmt.Errorf("lineage: track position at index %d has wrong time point", i)
			}
		}
		for _, pr := range t.prev {
			if !containsTrack(pr.next, t) {
				return fmt.Errorf("lineage: prev link not mirrored by a next link")
			}
		}
		for _, n := range t.next {
			if !containsTrack(n.prev, t) {
				return fmt.Errorf("lineage: next link not mirrored by a prev link")
			}
		}
		if len(t.next) == 1 && len(t.next[0].prev) == 1 && t.next[0].prev[0] == t {
			return fmt.Errorf("lineage: track at t=%d should have been merged with its sole successor", t.minT)
		}
	}
	return nil
}
