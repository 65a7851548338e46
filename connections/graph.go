// Package connections implements the per-time-point connection graph (C5):
// an undirected graph on positions of a single time point, used to record
// adjacency that is not a cell-lineage link (shared membrane, part of the
// same organoid lumen, and so on). Grounded on original_source/ai_track/
// core/connections.py, re-expressed with Go maps in place of the source's
// per-time-point networkx.Graph.
package connections

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/jvzon-lab/tracklineage/geom"
)

// Link is an undirected connection between two positions sharing a time
// point.
type Link struct {
	A, B geom.Position
}

// Connections holds the connection graphs of every time point that has at
// least one connection. The zero value is not usable; construct with New.
type Connections struct {
	byT map[int]*timePointGraph
}

type timePointGraph struct {
	adj    map[geom.Position]map[geom.Position]struct{}
	weight map[geom.Position]map[geom.Position]float64
}

func newTimePointGraph() *timePointGraph {
	return &timePointGraph{
		adj:    make(map[geom.Position]map[geom.Position]struct{}),
		weight: make(map[geom.Position]map[geom.Position]float64),
	}
}

func (g *timePointGraph) addEdge(a, b geom.Position) {
	if g.adj[a] == nil {
		g.adj[a] = make(map[geom.Position]struct{})
	}
	if g.adj[b] == nil {
		g.adj[b] = make(map[geom.Position]struct{})
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// addWeightedEdge records the edge like addEdge and additionally labels it
// with distanceUm, readable from either endpoint.
func (g *timePointGraph) addWeightedEdge(a, b geom.Position, distanceUm float64) {
	g.addEdge(a, b)
	if g.weight[a] == nil {
		g.weight[a] = make(map[geom.Position]float64)
	}
	if g.weight[b] == nil {
		g.weight[b] = make(map[geom.Position]float64)
	}
	g.weight[a][b] = distanceUm
	g.weight[b][a] = distanceUm
}

func (g *timePointGraph) removeEdge(a, b geom.Position) bool {
	if _, ok := g.adj[a][b]; !ok {
		return false
	}
	delete(g.adj[a], b)
	delete(g.adj[b], a)
	delete(g.weight[a], b)
	delete(g.weight[b], a)
	return true
}

func (g *timePointGraph) removeVertex(p geom.Position) {
	for nbr := range g.adj[p] {
		delete(g.adj[nbr], p)
		delete(g.weight[nbr], p)
	}
	delete(g.adj, p)
	delete(g.weight, p)
}

func (g *timePointGraph) isEmpty() bool {
	for _, nbrs := range g.adj {
		if len(nbrs) > 0 {
			return false
		}
	}
	return true
}

func (g *timePointGraph) edgeCount() int {
	n := 0
	for _, nbrs := range g.adj {
		n += len(nbrs)
	}
	return n / 2
}

func (g *timePointGraph) copy() *timePointGraph {
	out := newTimePointGraph()
	for p, nbrs := range g.adj {
		cp := make(map[geom.Position]struct{}, len(nbrs))
		for n := range nbrs {
			cp[n] = struct{}{}
		}
		out.adj[p] = cp
	}
	for p, nbrs := range g.weight {
		cp := make(map[geom.Position]float64, len(nbrs))
		for n, d := range nbrs {
			cp[n] = d
		}
		out.weight[p] = cp
	}
	return out
}

// New returns an empty Connections.
func New() *Connections {
	return &Connections{byT: make(map[int]*timePointGraph)}
}

// Add records a connection between a and b. Requires a.T == b.T and a != b;
// idempotent if the connection already exists.
func (c *Connections) Add(a, b geom.Position) error {
	if a.T != b.T {
		return fmt.Errorf("connections: %v and %v are not in the same time point", a, b)
	}
	if a.Equal(b) {
		return fmt.Errorf("connections: cannot connect %v to itself", a)
	}
	g, ok := c.byT[a.T]
	if !ok {
		g = newTimePointGraph()
		c.byT[a.T] = g
	}
	g.addEdge(a, b)
	return nil
}

// AddWeighted records a connection between a and b like Add, additionally
// labeling the edge with distanceUm (the micrometer distance between them),
// retrievable with DistanceUm. Used by neighbor.MakeNearbyGraph, spec.md
// §4.6's "edges labeled with the micrometer distance".
func (c *Connections) AddWeighted(a, b geom.Position, distanceUm float64) error {
	if a.T != b.T {
		return fmt.Errorf("connections: %v and %v are not in the same time point", a, b)
	}
	if a.Equal(b) {
		return fmt.Errorf("connections: cannot connect %v to itself", a)
	}
	g, ok := c.byT[a.T]
	if !ok {
		g = newTimePointGraph()
		c.byT[a.T] = g
	}
	g.addWeightedEdge(a, b, distanceUm)
	return nil
}

// DistanceUm returns the micrometer distance AddWeighted recorded for the
// edge between a and b, if any. Returns (0, false) for an edge added with
// Add instead of AddWeighted, or for no edge at all.
func (c *Connections) DistanceUm(a, b geom.Position) (float64, bool) {
	if a.T != b.T {
		return 0, false
	}
	g, ok := c.byT[a.T]
	if !ok {
		return 0, false
	}
	d, ok := g.weight[a][b]
	return d, ok
}

// Remove drops the connection between a and b, if any. Returns true if a
// connection was removed.
func (c *Connections) Remove(a, b geom.Position) bool {
	if a.T != b.T {
		return false
	}
	g, ok := c.byT[a.T]
	if !ok {
		return false
	}
	removed := g.removeEdge(a, b)
	if removed && g.isEmpty() {
		delete(c.byT, a.T)
	}
	return removed
}

// Contains reports whether a and b are directly connected.
func (c *Connections) Contains(a, b geom.Position) bool {
	if a.T != b.T {
		return false
	}
	g, ok := c.byT[a.T]
	if !ok {
		return false
	}
	_, ok = g.adj[a][b]
	return ok
}

// RemoveConnectionsOf drops p and every connection touching it.
func (c *Connections) RemoveConnectionsOf(p geom.Position) {
	g, ok := c.byT[p.T]
	if !ok {
		return
	}
	g.removeVertex(p)
	if g.isEmpty() {
		delete(c.byT, p.T)
	}
}

// ReplacePosition reroutes every connection of old onto new_. Does nothing
// if old has no connections.
func (c *Connections) ReplacePosition(old, new_ geom.Position) error {
	if old.T != new_.T {
		return fmt.Errorf("connections: %v and %v must share a time point", old, new_)
	}
	g, ok := c.byT[old.T]
	if !ok {
		return nil
	}
	nbrs, ok := g.adj[old]
	if !ok {
		return nil
	}
	weights := make(map[geom.Position]float64, len(nbrs))
	for nbr, d := range g.weight[old] {
		weights[nbr] = d
	}
	g.removeVertex(old)
	for nbr := range nbrs {
		if d, ok := weights[nbr]; ok {
			g.addWeightedEdge(new_, nbr, d)
		} else {
			g.addEdge(new_, nbr)
		}
	}
	return nil
}

// FindConnections returns every position directly connected to p.
func (c *Connections) FindConnections(p geom.Position) []geom.Position {
	g, ok := c.byT[p.T]
	if !ok {
		return nil
	}
	out := make([]geom.Position, 0, len(g.adj[p]))
	for n := range g.adj[p] {
		out = append(out, n)
	}
	return out
}

// IsConnected reports whether p has any connection at all.
func (c *Connections) IsConnected(p geom.Position) bool {
	return len(c.FindConnections(p)) > 0
}

// OfTimePoint returns every connection of the given time point, each
// exactly once.
func (c *Connections) OfTimePoint(t int) []Link {
	g, ok := c.byT[t]
	if !ok {
		return nil
	}
	var out []Link
	seen := make(map[geom.Position]struct{}, len(g.adj))
	for p, nbrs := range g.adj {
		for n := range nbrs {
			if _, ok := seen[n]; ok {
				continue
			}
			out = append(out, Link{A: p, B: n})
		}
		seen[p] = struct{}{}
	}
	return out
}

// TimePoints returns every time point with at least one connection, sorted
// ascending.
func (c *Connections) TimePoints() []int {
	out := make([]int, 0, len(c.byT))
	for t := range c.byT {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Len returns the total number of connections across every time point.
func (c *Connections) Len() int {
	n := 0
	for _, g := range c.byT {
		n += g.edgeCount()
	}
	return n
}

// HasConnections reports whether any connection is stored at all.
func (c *Connections) HasConnections() bool { return len(c.byT) > 0 }

// AddConnections merges every connection of other into c, carrying over any
// AddWeighted distance labels.
func (c *Connections) AddConnections(other *Connections) {
	for t, og := range other.byT {
		g, ok := c.byT[t]
		if !ok {
			c.byT[t] = og.copy()
			continue
		}
		for p, nbrs := range og.adj {
			for n := range nbrs {
				if d, ok := og.weight[p][n]; ok {
					g.addWeightedEdge(p, n, d)
				} else {
					g.addEdge(p, n)
				}
			}
		}
	}
}

// MoveInTime shifts every connection's time point by dt, carrying over any
// AddWeighted distance labels.
func (c *Connections) MoveInTime(dt int) {
	out := make(map[int]*timePointGraph, len(c.byT))
	for t, g := range c.byT {
		shifted := newTimePointGraph()
		seen := make(map[geom.Position]struct{}, len(g.adj))
		for p, nbrs := range g.adj {
			for n := range nbrs {
				if _, ok := seen[n]; ok {
					continue
				}
				a, b := p.WithTime(p.T+dt), n.WithTime(n.T+dt)
				if d, ok := g.weight[p][n]; ok {
					shifted.addWeightedEdge(a, b, d)
				} else {
					shifted.addEdge(a, b)
				}
			}
			seen[p] = struct{}{}
		}
		out[t+dt] = shifted
	}
	c.byT = out
}

// Copy returns a deep copy of c.
func (c *Connections) Copy() *Connections {
	out := New()
	for t, g := range c.byT {
		out.byT[t] = g.copy()
	}
	return out
}

// CalculateDistances returns, for every position of the sources' time point
// reachable from any source, the shortest-path hop count (all edges have
// unit weight, so this is Dijkstra specialized to a uniform-weight graph,
// grounded on graph/dijkstra.go's heap-based implementation). All sources
// must share a time point. Returns an empty map if sources is empty or the
// time point has no connections.
func (c *Connections) CalculateDistances(sources []geom.Position) (map[geom.Position]int, error) {
	if len(sources) == 0 {
		return map[geom.Position]int{}, nil
	}
	t := sources[0].T
	for _, s := range sources[1:] {
		if s.T != t {
			return nil, fmt.Errorf("connections: all sources must share a time point, got t=%d and t=%d", t, s.T)
		}
	}
	g, ok := c.byT[t]
	if !ok {
		return map[geom.Position]int{}, nil
	}

	dist := make(map[geom.Position]int, len(g.adj))
	pq := &posPQ{}
	heap.Init(pq)
	for _, s := range sources {
		if _, ok := g.adj[s]; !ok {
			continue
		}
		if _, seen := dist[s]; seen {
			continue
		}
		dist[s] = 0
		heap.Push(pq, &posItem{pos: s, dist: 0})
	}

	visited := make(map[geom.Position]bool, len(g.adj))
	for pq.Len() > 0 {
		u := heap.Pop(pq).(*posItem)
		if visited[u.pos] {
			continue
		}
		visited[u.pos] = true
		for nbr := range g.adj[u.pos] {
			nd := u.dist + 1
			if d, ok := dist[nbr]; !ok || nd < d {
				dist[nbr] = nd
				heap.Push(pq, &posItem{pos: nbr, dist: nd})
			}
		}
	}
	return dist, nil
}

type posItem struct {
	pos  geom.Position
	dist int
}

type posPQ []*posItem

func (pq posPQ) Len() int            { return len(pq) }
func (pq posPQ) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq posPQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *posPQ) Push(x interface{}) { *pq = append(*pq, x.(*posItem)) }
func (pq *posPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// HasFullNeighbors reports whether p's neighbors, considered as an induced
// subgraph, contain a cycle (or, with exactly three neighbors, form a
// triangle) — a heuristic for "p has been fully annotated", since an
// annotator who draws connections around a cell's full perimeter closes a
// loop among its neighbors.
func (c *Connections) HasFullNeighbors(p geom.Position) bool {
	g, ok := c.byT[p.T]
	if !ok {
		return false
	}
	neighbors, ok := g.adj[p]
	if !ok || len(neighbors) < 3 {
		return false
	}
	nbrSet := make(map[geom.Position]struct{}, len(neighbors))
	for n := range neighbors {
		nbrSet[n] = struct{}{}
	}

	visited := make(map[geom.Position]bool, len(nbrSet))
	for start := range nbrSet {
		if visited[start] {
			continue
		}
		if subgraphHasCycle(g, nbrSet, start, geom.Position{}, false, visited) {
			return true
		}
	}
	return false
}

// subgraphHasCycle runs a DFS restricted to allowed, detecting a back-edge
// to an already-visited vertex other than the immediate parent. Grounded on
// graph/dfs.go's parent-tracking DFS idiom.
func subgraphHasCycle(g *timePointGraph, allowed map[geom.Position]struct{}, cur, parent geom.Position, hasParent bool, visited map[geom.Position]bool) bool {
	visited[cur] = true
	for nbr := range g.adj[cur] {
		if _, ok := allowed[nbr]; !ok {
			continue
		}
		if !visited[nbr] {
			if subgraphHasCycle(g, allowed, nbr, cur, true, visited) {
				return true
			}
			continue
		}
		if !hasParent || nbr != parent {
			return true
		}
	}
	return false
}

// FindClusters partitions the positions of time point t into clusters: a
// connected-components walk over the connection graph restricted to that
// time point, where every position given in all appears in exactly one
// cluster (isolated positions form a singleton cluster of their own).
// Grounded on original_source/ai_track/connecting/cluster_finder.py,
// re-expressed as plain BFS connected-components in the idiom of
// graph/bfs.go rather than the source's incremental union-by-edge walk.
func (c *Connections) FindClusters(all []geom.Position, t int) [][]geom.Position {
	g := c.byT[t]
	visited := make(map[geom.Position]bool, len(all))
	var clusters [][]geom.Position

	for _, start := range all {
		if start.T != t || visited[start] {
			continue
		}
		var cluster []geom.Position
		queue := []geom.Position{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			cluster = append(cluster, cur)
			if g == nil {
				continue
			}
			for nbr := range g.adj[cur] {
				if !visited[nbr] {
					visited[nbr] = true
					queue = append(queue, nbr)
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}
