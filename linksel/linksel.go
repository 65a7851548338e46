// Package linksel implements the constraint-based link selector (C8): given
// a set of candidate positions, candidate links, and a mother-score map, it
// selects the globally cheapest subset of links forming a valid lineage
// graph. Grounded on flow/ford_fulkerson.go and flow/dinic.go's residual-
// capacity-map idiom (map[string]map[string]float64), generalized to a
// minimum-cost flow by running a successive-shortest-augmenting-path loop:
// repeatedly find the shortest source-to-sink path in the residual network
// (SPFA — a queue-based Bellman-Ford, needed because the division bonus and
// the "detection used" bonus below both introduce negative edge costs that
// rule out a plain BFS/Dijkstra shortest path) and augment along it as long
// as doing so still reduces total cost.
package linksel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/internal/log"
	"github.com/jvzon-lab/tracklineage/lineage"
)

// Options configures the solver, mirroring the teacher's FlowOptions shape.
type Options struct {
	// Epsilon treats path costs within Epsilon of zero as zero (default 1e-9).
	Epsilon float64
	// Verbose logs every accepted augmentation when true.
	Verbose bool
	// Ctx, if non-nil, is polled between augmentations; a cancelled context
	// stops the solver early, and Select then returns no selection and the
	// context's error.
	Ctx context.Context
}

// Weights are the five cost coefficients spec.md §4.8 requires.
type Weights struct {
	WLink, WDetect, WDiv, WApp, WDisapp float64
}

// Candidate is a directed candidate link, Earlier strictly one time point
// before Later.
type Candidate struct {
	Earlier, Later geom.Position
}

// ErrBadCandidate indicates a candidate link whose endpoints are not
// exactly one time point apart.
var ErrBadCandidate = errors.New("linksel: candidate link endpoints must be exactly one time point apart")

const (
	nodeSource = "__source__"
	nodeSink   = "__sink__"
)

func nodeIn(p geom.Position) string  { return "in:" + p.String() }
func nodeOut(p geom.Position) string { return "out:" + p.String() }
func nodeUse(p geom.Position) string { return "use:" + p.String() }
func nodeDiv(p geom.Position) string { return "div:" + p.String() }

// Select builds the detection/linking hypothesis graph for the given
// positions and deduplicated, endpoint-filtered candidates, runs the
// successive-shortest-paths solver, and returns a fresh Links containing
// exactly the selected subset.
//
// volume is optional (nil is fine): a position absent from it is treated as
// having undefined volume, contributing no shape term to its links' cost.
func Select(
	positions []geom.Position,
	candidates []Candidate,
	motherScore map[geom.Position]float64,
	volume map[geom.Position]float64,
	res geom.Resolution,
	w Weights,
	opts *Options,
) (*lineage.Links, error) {
	ctx := context.Background()
	eps := 1e-9
	if opts != nil {
		if opts.Ctx != nil {
			ctx = opts.Ctx
		}
		if opts.Epsilon > 0 {
			eps = opts.Epsilon
		}
	}

	posSet := make(map[geom.Position]struct{}, len(positions))
	firstT, lastT := math.MaxInt64, math.MinInt64
	for _, p := range positions {
		posSet[p] = struct{}{}
		if p.T < firstT {
			firstT = p.T
		}
		if p.T > lastT {
			lastT = p.T
		}
	}

	dedup := make(map[Candidate]struct{}, len(candidates))
	var filtered []Candidate
	for _, c := range candidates {
		if c.Earlier.T+1 != c.Later.T {
			return nil, fmt.Errorf("%w: %v (t=%d) -> %v (t=%d)", ErrBadCandidate, c.Earlier, c.Earlier.T, c.Later, c.Later.T)
		}
		if _, ok := posSet[c.Earlier]; !ok {
			continue
		}
		if _, ok := posSet[c.Later]; !ok {
			continue
		}
		if _, seen := dedup[c]; seen {
			continue
		}
		dedup[c] = struct{}{}
		filtered = append(filtered, c)
	}

	g := newResidualGraph()
	for _, p := range positions {
		appCost := w.WApp
		if p.T == firstT {
			appCost = 0
		}
		disappCost := w.WDisapp
		if p.T == lastT {
			disappCost = 0
		}
		g.addEdge(nodeSource, nodeIn(p), 1, appCost)
		g.addEdge(nodeOut(p), nodeSink, 1, disappCost)

		// Using a detection avoids the cost it would otherwise incur by
		// being left unused, so "use" carries a -w_detect bonus; this is
		// equivalent up to an additive constant (len(positions)*w_detect)
		// to the spec's framing of w_detect as the cost of leaving a
		// position unused, since an unrouted position contributes no edges
		// and so no cost at all under a pure minimization.
		g.addEdge(nodeIn(p), nodeUse(p), 1, -w.WDetect)
		g.addEdge(nodeUse(p), nodeOut(p), 1, 0)

		if score := motherScore[p]; score > 0 {
			// A division sends a second unit of flow out of p, so the
			// division node draws that unit straight from the source.
			g.addEdge(nodeSource, nodeDiv(p), 1, -w.WDiv*score)
			g.addEdge(nodeDiv(p), nodeOut(p), 1, 0)
		}
	}
	for _, c := range filtered {
		cost := w.WLink * linkCost(c.Earlier, c.Later, volume, res)
		if motherScore[c.Earlier] > 0 {
			cost /= 2
		}
		g.addEdge(nodeOut(c.Earlier), nodeIn(c.Later), 1, cost)
	}

	if err := g.solve(ctx, eps, opts != nil && opts.Verbose); err != nil {
		return nil, err
	}

	out := lineage.New()
	for _, c := range filtered {
		if g.flowOn(nodeOut(c.Earlier), nodeIn(c.Later)) > eps {
			if err := out.AddLink(c.Earlier, c.Later); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// linkCost is the pure distance/shape term of a candidate link's cost,
// before the w_link weight and any division-bonus halving are applied.
func linkCost(p1, p2 geom.Position, volume map[geom.Position]float64, res geom.Resolution) float64 {
	d := geom.DistanceUm(p1, p2, res)
	v1, ok1 := volume[p1]
	v2, ok2 := volume[p2]
	if ok1 && ok2 {
		d += math.Abs(math.Cbrt(v1)-math.Cbrt(v2)) * res.PxXUm
	}
	return d
}

// residualGraph is a min-cost-flow residual network: parallel capacity and
// cost maps keyed by node id, following flow/ford_fulkerson.go's
// map[string]map[string]float64 idiom. Every forward edge gets a reverse
// edge of capacity 0 and negated cost, standard for residual min-cost flow.
// used tracks net forward flow per original edge, separately from cap,
// since cap alone cannot distinguish "this edge carried flow" from "this
// edge is a reverse edge that gained residual capacity".
type residualGraph struct {
	cap  map[string]map[string]float64
	cost map[string]map[string]float64
	used map[string]map[string]float64
}

func newResidualGraph() *residualGraph {
	return &residualGraph{
		cap:  make(map[string]map[string]float64),
		cost: make(map[string]map[string]float64),
		used: make(map[string]map[string]float64),
	}
}

func (g *residualGraph) ensure(u string) {
	if g.cap[u] == nil {
		g.cap[u] = make(map[string]float64)
		g.cost[u] = make(map[string]float64)
	}
}

func (g *residualGraph) addEdge(u, v string, capacity, cost float64) {
	g.ensure(u)
	g.ensure(v)
	g.cap[u][v] += capacity
	g.cost[u][v] = cost
	if _, ok := g.cap[v][u]; !ok {
		g.cap[v][u] = 0
		g.cost[v][u] = -cost
	}
}

// flowOn reports how much net flow ended up on the original forward edge
// u->v.
func (g *residualGraph) flowOn(u, v string) float64 {
	return g.used[u][v]
}

// solve runs successive-shortest-augmenting-paths: while the cheapest
// source-to-sink path in the residual graph has negative cost, push 1 unit
// of flow along it (every edge in this graph has capacity <= 1, so the
// bottleneck is always 1) and repeat.
func (g *residualGraph) solve(ctx context.Context, eps float64, verbose bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dist, parent, ok := g.spfa()
		if !ok {
			break
		}
		sinkDist, reached := dist[nodeSink]
		if !reached || sinkDist >= -eps {
			break
		}

		// Reconstruct the path and find the bottleneck (always 1 here, but
		// computed generally in case future edges relax that assumption).
		path := []string{nodeSink}
		cur := nodeSink
		bottleneck := math.Inf(1)
		for cur != nodeSource {
			prev := parent[cur]
			if g.cap[prev][cur] < bottleneck {
				bottleneck = g.cap[prev][cur]
			}
			path = append(path, prev)
			cur = prev
		}

		for i := len(path) - 1; i > 0; i-- {
			u, v := path[i], path[i-1]
			g.cap[u][v] -= bottleneck
			g.cap[v][u] += bottleneck
			g.recordFlow(u, v, bottleneck)
		}
		if verbose {
			log.Logf("linksel: augmented %g along %v at cost %g\n", bottleneck, path, sinkDist)
		}
	}
	return nil
}

// recordFlow updates g.used for the edge (u,v), netting out against any
// prior flow on the reverse edge (v,u) that this augmentation cancels.
func (g *residualGraph) recordFlow(u, v string, amount float64) {
	if g.used[u] == nil {
		g.used[u] = make(map[string]float64)
	}
	if g.used[v][u] > 0 {
		// This augmentation cancels flow that previously went v->u.
		cancel := math.Min(g.used[v][u], amount)
		g.used[v][u] -= cancel
		amount -= cancel
	}
	g.used[u][v] += amount
}

// spfa finds shortest distances from nodeSource using the Bellman-Ford
// queue algorithm (tolerant of the negative edge costs the division and
// detection-use bonuses introduce, unlike Dijkstra), returning false if
// nodeSource has no outgoing residual capacity at all.
func (g *residualGraph) spfa() (dist map[string]float64, parent map[string]string, ok bool) {
	dist = make(map[string]float64)
	parent = make(map[string]string)
	inQueue := make(map[string]bool)
	dist[nodeSource] = 0

	queue := []string{nodeSource}
	inQueue[nodeSource] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		inQueue[u] = false

		for v, c := range g.cap[u] {
			if c <= 0 {
				continue
			}
			nd := dist[u] + g.cost[u][v]
			if d, seen := dist[v]; !seen || nd < d {
				dist[v] = nd
				parent[v] = u
				if !inQueue[v] {
					queue = append(queue, v)
					inQueue[v] = true
				}
			}
		}
	}
	ok = len(dist) > 1
	return dist, parent, ok
}

// Link is an accepted link from a candidate selection, returned by
// SelectedLinks for callers that want the raw pairs rather than a Links
// instance.
type Link = Candidate

// SelectedLinks extracts the list of accepted links from out (a Links
// returned by Select), sorted for deterministic output.
func SelectedLinks(out *lineage.Links) []Link {
	raw := out.FindAllLinks()
	links := make([]Link, len(raw))
	for i, l := range raw {
		links[i] = Link{Earlier: l.Earlier, Later: l.Later}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Earlier.T != links[j].Earlier.T {
			return links[i].Earlier.T < links[j].Earlier.T
		}
		if links[i].Earlier.String() != links[j].Earlier.String() {
			return links[i].Earlier.String() < links[j].Earlier.String()
		}
		return links[i].Later.String() < links[j].Later.String()
	})
	return links
}
