package experiment_test

import (
	"testing"

	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemovePositionForwardsToEverySubStore(t *testing.T) {
	e := experiment.New()
	a, b := geom.New(0, 0, 0, 0), geom.New(0, 0, 0, 1)
	require.NoError(t, e.Links.AddLink(a, b))
	e.Positions.Add(a)
	e.Positions.Add(b)
	require.NoError(t, e.Connections.Add(a, geom.New(1, 0, 0, 0)))

	e.RemovePosition(a)

	assert.False(t, e.Positions.Contains(a))
	assert.Nil(t, e.Links.GetTrack(a))
	assert.Empty(t, e.Connections.FindConnections(a))
}

func TestMovePositionRejectsTimePointChange(t *testing.T) {
	e := experiment.New()
	err := e.MovePosition(geom.New(0, 0, 0, 0), geom.New(0, 0, 0, 1))
	assert.ErrorIs(t, err, experiment.ErrTimePointMismatch)
}

func TestMovePositionPreservesLinks(t *testing.T) {
	e := experiment.New()
	a, b := geom.New(0, 0, 0, 0), geom.New(0, 0, 0, 1)
	e.Positions.Add(a)
	e.Positions.Add(b)
	require.NoError(t, e.Links.AddLink(a, b))

	newA := geom.New(5, 5, 5, 0)
	require.NoError(t, e.MovePosition(a, newA))

	assert.True(t, e.Positions.Contains(newA))
	assert.False(t, e.Positions.Contains(a))
	assert.True(t, e.Links.ContainsLink(newA, b))
}

func TestFirstLastTimePointNumberFromPositionsOnly(t *testing.T) {
	e := experiment.New()
	e.Positions.Add(geom.New(0, 0, 0, 3))
	e.Positions.Add(geom.New(0, 0, 0, 7))

	first, ok := e.FirstTimePointNumber()
	require.True(t, ok)
	assert.Equal(t, 3, first)

	last, ok := e.LastTimePointNumber()
	require.True(t, ok)
	assert.Equal(t, 7, last)
}

func TestFirstLastTimePointNumberEmpty(t *testing.T) {
	e := experiment.New()
	_, ok := e.FirstTimePointNumber()
	assert.False(t, ok)
}

func TestMergeUnionsPositionsLinksAndConnections(t *testing.T) {
	a := experiment.New()
	b := experiment.New()

	p0, p1 := geom.New(0, 0, 0, 0), geom.New(0, 0, 0, 1)
	b.Positions.Add(p0)
	b.Positions.Add(p1)
	require.NoError(t, b.Links.AddLink(p0, p1))
	require.NoError(t, b.Connections.Add(p0, geom.New(1, 0, 0, 0)))

	require.NoError(t, a.Merge(b))

	assert.True(t, a.Positions.Contains(p0))
	assert.True(t, a.Links.ContainsLink(p0, p1))
	assert.True(t, a.Connections.Contains(p0, geom.New(1, 0, 0, 0)))
}

func TestMergeRescalesOnResolutionMismatch(t *testing.T) {
	a := experiment.New()
	a.SetResolution(geom.Resolution{PxXUm: 1, PxYUm: 1, PxZUm: 1, TimePointIntervalMinutes: 10})

	b := experiment.New()
	b.SetResolution(geom.Resolution{PxXUm: 2, PxYUm: 2, PxZUm: 2, TimePointIntervalMinutes: 10})
	p0 := geom.New(10, 10, 10, 0)
	b.Positions.Add(p0)

	require.NoError(t, a.Merge(b))

	// b's positions were scaled by xFactor = a.PxXUm/b.PxXUm = 0.5 before merge.
	assert.True(t, a.Positions.Contains(geom.New(5, 5, 5, 0)))
}

func TestMergeRejectsLargeTimeScaleMismatch(t *testing.T) {
	a := experiment.New()
	a.SetResolution(geom.Resolution{PxXUm: 1, PxYUm: 1, PxZUm: 1, TimePointIntervalMinutes: 10})

	b := experiment.New()
	b.SetResolution(geom.Resolution{PxXUm: 1, PxYUm: 1, PxZUm: 1, TimePointIntervalMinutes: 100})

	err := a.Merge(b)
	assert.ErrorIs(t, err, experiment.ErrScaleMismatch)
}
