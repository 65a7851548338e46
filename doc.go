// Package tracklineage is the core tracking-data model for a cell-lineage
// analysis pipeline over time-lapse 3D microscopy recordings.
//
// It brings together:
//
//   - geom/position: pixel coordinates, physical resolution, and the
//     spatially-indexed position collection for a single time-lapse
//   - lineage: the directed lineage graph (tracks, divisions, cell merges)
//   - connections: the undirected same-time-point connection graph
//   - metadata: the dynamically-typed per-position and per-link data store
//   - experiment: the owning aggregate tying all of the above together,
//     plus image access and resolution-aware rescaling on merge
//   - linksel: a constraint-based link selector, posed as a minimum-cost
//     flow problem and solved with a successive-shortest-augmenting-paths
//     search over a residual capacity/cost graph
//   - defects: a priority-ordered rule table flagging likely tracking
//     mistakes (missing links, implausible divisions, fast jumps, ...)
//   - compare: precision/recall/F1 scoring of one tracking result against
//     another, bucketed by time point and z-layer
//   - undoredo: a bounded double-stack undo/redo engine for interactive
//     editing of a lineage graph
//   - postproc: post-processing passes (edge trimming, spur removal,
//     camera-motion annotation) run after link selection
//   - cellfate: per-cell age and fate classification, and lineage-wide
//     fate tallies, over the finished lineage graph
//
// None of this package renders images, runs detection, or talks to disk
// directly; see cmd/tracklineage-demo for a minimal end-to-end example
// wiring the pieces together.
package tracklineage
