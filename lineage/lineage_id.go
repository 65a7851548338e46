package lineage

import (
	"sort"

	"github.com/jvzon-lab/tracklineage/geom"
)

// GetLineageID returns an id for the lineage tree p belongs to (i.e. p's
// track has previously divided, or will divide later in the experiment), or
// -1 if p is not part of any such tree. The id is the dense track id
// (GetTrackID) of the tree's root track: unique per tree, but not dense
// across trees, since non-root tracks take up ids too. Grounded on
// original_source/ai_track/linking_analysis/lineage_id_creator.py; unlike
// that source this does not randomize the trailing digits of the id, since
// spec.md's Non-goals rule out bit-for-bit reproduction of source output.
func (l *Links) GetLineageID(p geom.Position) int {
	t := l.GetTrack(p)
	if t == nil {
		return -1
	}

	inTree := len(t.next) > 1
	for len(t.prev) == 1 {
		inTree = true
		t = t.prev[0]
	}
	if !inTree {
		return -1
	}
	return l.GetTrackID(t)
}

// AssignLineageIDs assigns a dense integer lineage id, starting at 0, to
// every root track that heads a lineage tree (a root whose track divides
// somewhere in its future). Roots are visited in ascending GetTrackID order,
// so the assignment is stable across calls as long as no mutation or
// SortTracksByX call has invalidated the dense track ids in between.
// Grounded on lineage_id_creator.py's get_lineage_id, generalized from a
// single position query to a whole-graph numbering pass.
func (l *Links) AssignLineageIDs() map[*Track]int {
	roots := l.FindStartingTracks()
	sortTracksByID(roots, l)

	out := make(map[*Track]int, len(roots))
	next := 0
	for _, root := range roots {
		if !headsLineageTree(root) {
			continue
		}
		out[root] = next
		next++
	}
	return out
}

func headsLineageTree(root *Track) bool {
	t := root
	for {
		if len(t.next) > 1 {
			return true
		}
		if len(t.next) != 1 {
			return false
		}
		t = t.next[0]
	}
}

func sortTracksByID(tracks []*Track, l *Links) {
	ids := make(map[*Track]int, len(tracks))
	for _, t := range tracks {
		ids[t] = l.GetTrackID(t)
	}
	sort.Slice(tracks, func(i, j int) bool { return ids[tracks[i]] < ids[tracks[j]] })
}
