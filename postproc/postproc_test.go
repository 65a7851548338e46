package postproc_test

import (
	"testing"

	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
	"github.com/jvzon-lab/tracklineage/postproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSizeLoader struct{ z, y, x int }

func (f fixedSizeLoader) Channels() []string                       { return nil }
func (f fixedSizeLoader) LoadImage3D(int, string) (*experiment.Image3D, bool) { return nil, false }
func (f fixedSizeLoader) ImageSize() (z, y, x int, ok bool)         { return f.z, f.y, f.x, true }
func (f fixedSizeLoader) FirstTimePointNumber() (int, bool)         { return 0, true }
func (f fixedSizeLoader) LastTimePointNumber() (int, bool)          { return 9, true }
func (f fixedSizeLoader) Copy() experiment.ImageLoader               { return f }
func (f fixedSizeLoader) Uncached() experiment.ImageLoader           { return f }
func (f fixedSizeLoader) SerializeToConfig() (string, string)      { return "", "" }

func TestRemovePositionsNearEdgeAnnotatesAndRemoves(t *testing.T) {
	e := experiment.New()
	e.SetImageLoader(fixedSizeLoader{z: 10, y: 100, x: 100})

	inside := geom.New(50, 50, 5, 0)
	outside := geom.New(50, 50, 5, 1) // will be removed at t=1
	e.Positions.Add(inside)
	e.Positions.Add(outside)
	require.NoError(t, e.Links.AddLink(inside, outside))

	// Move outside's position out of bounds at t=1 only, by offsetting the
	// loader so the same xyz falls outside the image there.
	e.SetImageOffset(1, 200, 0, 0)

	postproc.RemovePositionsNearEdge(e, 0)

	assert.False(t, e.Positions.Contains(outside))
	v, ok := e.Links.GetPositionData(inside, metadata.NameEnding)
	require.True(t, ok)
	assert.Equal(t, metadata.EndMarkerOutOfView, v.S)
}

func TestRemoveSpursDeletesShortTerminalBranch(t *testing.T) {
	e := experiment.New()
	p0 := geom.New(0, 0, 0, 0)
	p1 := geom.New(0, 0, 0, 1)
	e.Positions.Add(p0)
	e.Positions.Add(p1)
	require.NoError(t, e.Links.AddLink(p0, p1))

	postproc.RemoveSpurs(e)

	assert.False(t, e.Positions.Contains(p0))
	assert.False(t, e.Positions.Contains(p1))
}

func TestRemoveSpursKeepsLongTrack(t *testing.T) {
	e := experiment.New()
	positions := []geom.Position{
		geom.New(0, 0, 0, 0),
		geom.New(0, 0, 0, 1),
		geom.New(0, 0, 0, 2),
		geom.New(0, 0, 0, 3),
	}
	for _, p := range positions {
		e.Positions.Add(p)
	}
	for i := 0; i+1 < len(positions); i++ {
		require.NoError(t, e.Links.AddLink(positions[i], positions[i+1]))
	}

	postproc.RemoveSpurs(e)

	for _, p := range positions {
		assert.True(t, e.Positions.Contains(p))
	}
}

func TestRemoveSpursKeepsDividingBranchEvenIfShort(t *testing.T) {
	e := experiment.New()
	mother := geom.New(0, 0, 0, 0)
	d1 := geom.New(1, 0, 0, 1)
	d2 := geom.New(-1, 0, 0, 1)
	e.Positions.Add(mother)
	e.Positions.Add(d1)
	e.Positions.Add(d2)
	require.NoError(t, e.Links.AddLink(mother, d1))
	require.NoError(t, e.Links.AddLink(mother, d2))

	postproc.RemoveSpurs(e)

	assert.True(t, e.Positions.Contains(mother))
}
