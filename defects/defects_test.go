package defects_test

import (
	"testing"

	"github.com/jvzon-lab/tracklineage/defects"
	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUncertainPositionTakesPriority(t *testing.T) {
	e := experiment.New()
	p := geom.New(0, 0, 0, 0)
	e.Positions.Add(p)
	uncertain := metadata.Bool(true)
	require.NoError(t, e.PositionData.Set(p, metadata.NameUncertain, &uncertain))

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, p)
	require.True(t, ok)
	assert.Equal(t, defects.UncertainPosition, kind)
}

func TestTooManyDaughterCells(t *testing.T) {
	e := experiment.New()
	mother := geom.New(0, 0, 0, 0)
	d1, d2, d3 := geom.New(1, 0, 0, 1), geom.New(-1, 0, 0, 1), geom.New(0, 1, 0, 1)
	for _, p := range []geom.Position{mother, d1, d2, d3} {
		e.Positions.Add(p)
	}
	require.NoError(t, e.Links.AddLink(mother, d1))
	require.NoError(t, e.Links.AddLink(mother, d2))
	require.NoError(t, e.Links.AddLink(mother, d3))

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, mother)
	require.True(t, ok)
	assert.Equal(t, defects.TooManyDaughterCells, kind)
}

func TestNoFuturePositionWithoutEndMarker(t *testing.T) {
	e := experiment.New()
	p0 := geom.New(0, 0, 0, 0)
	p1 := geom.New(0, 0, 0, 1)
	e.Positions.Add(p0)
	e.Positions.Add(p1)

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, p0)
	require.True(t, ok)
	assert.Equal(t, defects.NoFuturePosition, kind)
}

func TestNoFuturePositionSuppressedByEndMarker(t *testing.T) {
	e := experiment.New()
	p0 := geom.New(0, 0, 0, 0)
	p1 := geom.New(0, 0, 0, 1)
	e.Positions.Add(p0)
	e.Positions.Add(p1)
	ending := metadata.Str(metadata.EndMarkerDead)
	require.NoError(t, e.Links.SetPositionData(p0, metadata.NameEnding, &ending))

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, p0)
	require.False(t, ok)
	assert.Equal(t, defects.None, kind)
}

func TestLowMotherScoreWithoutPositiveScore(t *testing.T) {
	e := experiment.New()
	mother := geom.New(0, 0, 0, 0)
	d1, d2 := geom.New(1, 0, 0, 1), geom.New(-1, 0, 0, 1)
	e.Positions.Add(mother)
	e.Positions.Add(d1)
	e.Positions.Add(d2)
	require.NoError(t, e.Links.AddLink(mother, d1))
	require.NoError(t, e.Links.AddLink(mother, d2))

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, mother)
	require.True(t, ok)
	assert.Equal(t, defects.LowMotherScore, kind)
}

func TestCellMergeOnMultiplePasts(t *testing.T) {
	e := experiment.New()
	a, b := geom.New(0, 0, 0, 0), geom.New(1, 0, 0, 0)
	merged := geom.New(0.5, 0, 0, 1)
	e.Positions.Add(a)
	e.Positions.Add(b)
	e.Positions.Add(merged)
	require.NoError(t, e.Links.AddLink(a, merged))
	require.NoError(t, e.Links.AddLink(b, merged))

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, merged)
	require.True(t, ok)
	assert.Equal(t, defects.CellMerge, kind)
}

func TestMovedTooFastWithoutEndMarker(t *testing.T) {
	e := experiment.New()
	e.SetResolution(geom.Resolution{PxXUm: 1, PxYUm: 1, PxZUm: 1, TimePointIntervalMinutes: 10})
	a := geom.New(0, 0, 0, 0)
	b := geom.New(100, 0, 0, 1)
	c := geom.New(100, 0, 0, 2)
	e.Positions.Add(a)
	e.Positions.Add(b)
	e.Positions.Add(c)
	require.NoError(t, e.Links.AddLink(a, b))
	require.NoError(t, e.Links.AddLink(b, c))

	defects.Scan(e, defects.DefaultConfig())

	kind, ok := defects.VisibleError(e, b)
	require.True(t, ok)
	assert.Equal(t, defects.MovedTooFast, kind)
}

func TestSuppressedErrorHidesButKeepsMarker(t *testing.T) {
	e := experiment.New()
	p0 := geom.New(0, 0, 0, 0)
	p1 := geom.New(0, 0, 0, 1)
	e.Positions.Add(p0)
	e.Positions.Add(p1)

	defects.Scan(e, defects.DefaultConfig())
	raw, ok := e.Links.GetPositionData(p0, metadata.NameError)
	require.True(t, ok)

	suppressed := metadata.Str(raw.S)
	require.NoError(t, e.Links.SetPositionData(p0, metadata.NameSuppressedError, &suppressed))

	kind, ok := defects.VisibleError(e, p0)
	require.True(t, ok)
	assert.Equal(t, defects.None, kind)

	stillRaw, ok := e.Links.GetPositionData(p0, metadata.NameError)
	require.True(t, ok)
	assert.Equal(t, raw.S, stillRaw.S)
}
