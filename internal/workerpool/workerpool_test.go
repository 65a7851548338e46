package workerpool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAppliesEachJobToItsOwnCopy(t *testing.T) {
	base := experiment.New()
	base.Positions.Add(geom.New(0, 0, 0, 0))

	jobs := make([]workerpool.Job, 3)
	for i := 0; i < 3; i++ {
		t := i
		jobs[i] = func(ctx context.Context, e *experiment.Experiment) (*experiment.Experiment, error) {
			e.Positions.Add(geom.New(float64(t), 0, 0, 1))
			return e, nil
		}
	}

	pool := workerpool.New(base, 2)
	results, err := pool.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// base itself was never mutated.
	assert.False(t, base.Positions.Contains(geom.New(0, 0, 0, 1)))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.Experiment.Positions.Contains(geom.New(float64(i), 0, 0, 1)))
	}
}

func TestRunReturnsFirstJobError(t *testing.T) {
	base := experiment.New()
	boom := errors.New("boom")

	jobs := []workerpool.Job{
		func(ctx context.Context, e *experiment.Experiment) (*experiment.Experiment, error) {
			return nil, boom
		},
	}

	pool := workerpool.New(base, 0)
	_, err := pool.Run(context.Background(), jobs)
	assert.ErrorIs(t, err, boom)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	base := experiment.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ranSecond := false
	jobs := []workerpool.Job{
		func(ctx context.Context, e *experiment.Experiment) (*experiment.Experiment, error) {
			return e, ctx.Err()
		},
		func(ctx context.Context, e *experiment.Experiment) (*experiment.Experiment, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			ranSecond = true
			return e, nil
		},
	}

	pool := workerpool.New(base, 0)
	_, err := pool.Run(ctx, jobs)
	assert.Error(t, err)
	assert.False(t, ranSecond)
}
