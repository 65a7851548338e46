// Package workerpool runs experiment-mutating jobs concurrently, one
// private *experiment.Experiment copy per job, cooperatively cancellable
// between time points the way flow.Dinic polls ctx.Err() between
// augmentations. Grounded on golang.org/x/sync/errgroup (already a direct
// pack dependency) plus that cancellation-polling idiom.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jvzon-lab/tracklineage/experiment"
)

// Job mutates its own private copy of an experiment and returns it, or an
// error if it could not complete. ctx should be polled (e.g. via
// ctx.Err()) between expensive steps so cancellation takes effect promptly.
type Job func(ctx context.Context, e *experiment.Experiment) (*experiment.Experiment, error)

// Pool runs Jobs concurrently, each against its own deep copy of a base
// experiment, bounded by a concurrency limit.
type Pool struct {
	base  *experiment.Experiment
	limit int
}

// New returns a Pool that hands every submitted Job a fresh base.Copy().
// limit caps the number of jobs running at once; limit <= 0 means
// unbounded.
func New(base *experiment.Experiment, limit int) *Pool {
	return &Pool{base: base, limit: limit}
}

// Result pairs a job's index (matching its position in the Run call) with
// the experiment copy it produced.
type Result struct {
	Index      int
	Experiment *experiment.Experiment
}

// Run submits every job, waits for all of them, and returns their results
// in submission order. The first job error cancels the shared context,
// stopping every other still-running job at its next ctx.Err() poll, and
// Run returns that error. The caller applies each Result back onto its own
// foreground state; Run never mutates base itself.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			cp := p.base.Copy()
			out, err := job(gctx, cp)
			if err != nil {
				return err
			}
			results[i] = Result{Index: i, Experiment: out}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
