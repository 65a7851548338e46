package cellfate_test

import (
	"testing"

	"github.com/jvzon-lab/tracklineage/cellfate"
	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(e *experiment.Experiment, x float64, from, to int) []geom.Position {
	var out []geom.Position
	for t := from; t <= to; t++ {
		p := geom.New(x, 0, 0, t)
		e.Positions.Add(p)
		out = append(out, p)
	}
	for i := 0; i+1 < len(out); i++ {
		if err := e.Links.AddLink(out[i], out[i+1]); err != nil {
			panic(err)
		}
	}
	return out
}

func setEnding(e *experiment.Experiment, p geom.Position, marker string) {
	v := metadata.Str(marker)
	if err := e.Links.SetPositionData(p, metadata.NameEnding, &v); err != nil {
		panic(err)
	}
}

func TestAgeInTimePointsWithinSingleTrack(t *testing.T) {
	e := experiment.New()
	track := chain(e, 0, 0, 5)

	age, ok := cellfate.AgeInTimePoints(e.Links, track[3])
	require.True(t, ok)
	assert.Equal(t, 3, age)
}

func TestAgeInTimePointsStopsAtDivision(t *testing.T) {
	e := experiment.New()
	mother := chain(e, 0, 0, 2) // t=0,1,2
	d1 := geom.New(1, 0, 0, 3)
	d2 := geom.New(-1, 0, 0, 3)
	e.Positions.Add(d1)
	e.Positions.Add(d2)
	require.NoError(t, e.Links.AddLink(mother[2], d1))
	require.NoError(t, e.Links.AddLink(mother[2], d2))
	daughterChain := chain(e, 1, 4, 5)
	require.NoError(t, e.Links.AddLink(d1, daughterChain[0]))

	age, ok := cellfate.AgeInTimePoints(e.Links, daughterChain[1])
	require.True(t, ok)
	// d1 is index 0 in its own track (length 3: d1, t4, t5), daughter chain
	// doesn't extend further back past the division at mother[2].
	assert.Equal(t, 2, age)
}

func TestAgeInTimePointsFailsAcrossMerge(t *testing.T) {
	e := experiment.New()
	a := geom.New(1, 0, 0, 0)
	b := geom.New(-1, 0, 0, 0)
	merged := geom.New(0, 0, 0, 1)
	e.Positions.Add(a)
	e.Positions.Add(b)
	e.Positions.Add(merged)
	require.NoError(t, e.Links.AddLink(a, merged))
	require.NoError(t, e.Links.AddLink(b, merged))
	rest := chain(e, 0, 2, 3)
	require.NoError(t, e.Links.AddLink(merged, rest[0]))

	_, ok := cellfate.AgeInTimePoints(e.Links, rest[1])
	assert.False(t, ok)
}

func TestGetFateWillDivide(t *testing.T) {
	e := experiment.New()
	mother := chain(e, 0, 0, 2)
	d1 := geom.New(1, 0, 0, 3)
	d2 := geom.New(-1, 0, 0, 3)
	e.Positions.Add(d1)
	e.Positions.Add(d2)
	require.NoError(t, e.Links.AddLink(mother[2], d1))
	require.NoError(t, e.Links.AddLink(mother[2], d2))

	fate := cellfate.GetFate(e, mother[0])
	assert.Equal(t, cellfate.WillDivide, fate.Kind)
	assert.True(t, fate.HasRemaining)
	assert.Equal(t, 2, fate.TimePointsRemaining)
}

func TestGetFateWillDie(t *testing.T) {
	e := experiment.New()
	track := chain(e, 0, 0, 3)
	setEnding(e, track[3], metadata.EndMarkerDead)

	fate := cellfate.GetFate(e, track[0])
	assert.Equal(t, cellfate.WillDie, fate.Kind)
}

func TestGetFateWillShed(t *testing.T) {
	e := experiment.New()
	track := chain(e, 0, 0, 3)
	setEnding(e, track[3], metadata.EndMarkerShed)

	fate := cellfate.GetFate(e, track[0])
	assert.Equal(t, cellfate.WillShed, fate.Kind)
}

func TestGetFateJustMovingWhenTrackOutlivesLookahead(t *testing.T) {
	e := experiment.New()
	e.LineageLookaheadHorizon = 2
	track := chain(e, 0, 0, 10)

	fate := cellfate.GetFate(e, track[0])
	assert.Equal(t, cellfate.JustMoving, fate.Kind)
}

func TestGetFateUnknownWhenTrackEndsWithinLookaheadUnmarked(t *testing.T) {
	e := experiment.New()
	e.LineageLookaheadHorizon = 20
	track := chain(e, 0, 0, 3)

	fate := cellfate.GetFate(e, track[0])
	assert.Equal(t, cellfate.Unknown, fate.Kind)
}

func TestGetLineageFateCountsDivisionsAndDeaths(t *testing.T) {
	e := experiment.New()
	mother := chain(e, 0, 0, 1)
	d1 := geom.New(1, 0, 0, 2)
	d2 := geom.New(-1, 0, 0, 2)
	e.Positions.Add(d1)
	e.Positions.Add(d2)
	require.NoError(t, e.Links.AddLink(mother[1], d1))
	require.NoError(t, e.Links.AddLink(mother[1], d2))
	setEnding(e, d1, metadata.EndMarkerDead)
	setEnding(e, d2, metadata.EndMarkerShed)

	fate := cellfate.GetLineageFate(e, mother[0], 100)
	assert.Equal(t, 1, fate.Divisions)
	assert.Equal(t, 1, fate.Deaths)
	assert.Equal(t, 1, fate.Sheds)
}

func TestNearbyDeathCounterCountsAcrossAncestry(t *testing.T) {
	e := experiment.New()
	e.SetResolution(geom.Resolution{PxXUm: 1, PxYUm: 1, PxZUm: 1, TimePointIntervalMinutes: 1})

	mother := chain(e, 0, 0, 1)
	dying := geom.New(5, 0, 0, 1)
	e.Positions.Add(dying)
	setEnding(e, dying, metadata.EndMarkerDead)

	d1 := geom.New(1, 0, 0, 2)
	e.Positions.Add(d1)
	require.NoError(t, e.Links.AddLink(mother[1], d1))
	d2 := geom.New(-1, 0, 0, 2)
	e.Positions.Add(d2)
	require.NoError(t, e.Links.AddLink(mother[1], d2))
	daughterChain := chain(e, 1, 3, 4)
	require.NoError(t, e.Links.AddLink(d1, daughterChain[0]))

	counter := cellfate.NewNearbyDeathCounter(e, 10)
	assert.Equal(t, 1, counter.CountNearbyDeathsInPast(daughterChain[1]))
}

func TestNearbyDeathCounterIgnoresFarDeaths(t *testing.T) {
	e := experiment.New()
	e.SetResolution(geom.Resolution{PxXUm: 1, PxYUm: 1, PxZUm: 1, TimePointIntervalMinutes: 1})

	track := chain(e, 0, 0, 2)
	far := geom.New(1000, 0, 0, 1)
	e.Positions.Add(far)
	setEnding(e, far, metadata.EndMarkerDead)

	counter := cellfate.NewNearbyDeathCounter(e, 10)
	assert.Equal(t, 0, counter.CountNearbyDeathsInPast(track[2]))
}
