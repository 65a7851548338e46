package connections_test

import (
	"testing"

	"github.com/jvzon-lab/tracklineage/connections"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(x, y, z float64, t int) geom.Position { return geom.New(x, y, z, t) }

func TestAddTwiceLeavesOneEdge(t *testing.T) {
	c := connections.New()
	a, b := p(0, 0, 0, 3), p(1, 0, 0, 3)
	require.NoError(t, c.Add(a, b))
	require.NoError(t, c.Add(b, a))
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(a, b))
	assert.True(t, c.Contains(b, a))
}

func TestAddRejectsDifferentTimePoints(t *testing.T) {
	c := connections.New()
	err := c.Add(p(0, 0, 0, 3), p(0, 0, 0, 4))
	assert.Error(t, err)
}

func TestAddRejectsSelfConnection(t *testing.T) {
	c := connections.New()
	a := p(0, 0, 0, 3)
	err := c.Add(a, a)
	assert.Error(t, err)
}

func TestAddWeightedRecordsDistanceFromEitherEndpoint(t *testing.T) {
	c := connections.New()
	a, b := p(0, 0, 0, 0), p(3, 4, 0, 0)
	require.NoError(t, c.AddWeighted(a, b, 5))

	d, ok := c.DistanceUm(a, b)
	require.True(t, ok)
	assert.Equal(t, 5.0, d)

	d, ok = c.DistanceUm(b, a)
	require.True(t, ok)
	assert.Equal(t, 5.0, d)
}

func TestDistanceUmUnknownForPlainAdd(t *testing.T) {
	c := connections.New()
	a, b := p(0, 0, 0, 0), p(1, 0, 0, 0)
	require.NoError(t, c.Add(a, b))

	_, ok := c.DistanceUm(a, b)
	assert.False(t, ok)
}

func TestRemoveConnectionsOf(t *testing.T) {
	c := connections.New()
	a, b, d := p(0, 0, 0, 0), p(1, 0, 0, 0), p(2, 0, 0, 0)
	require.NoError(t, c.Add(a, b))
	require.NoError(t, c.Add(a, d))

	c.RemoveConnectionsOf(a)
	assert.Empty(t, c.FindConnections(a))
	assert.Empty(t, c.FindConnections(b))
	assert.Empty(t, c.FindConnections(d))
	assert.False(t, c.HasConnections())
}

func TestFindConnections(t *testing.T) {
	c := connections.New()
	a, b, d := p(0, 0, 0, 0), p(1, 0, 0, 0), p(2, 0, 0, 0)
	require.NoError(t, c.Add(a, b))
	require.NoError(t, c.Add(a, d))

	got := c.FindConnections(a)
	assert.ElementsMatch(t, []geom.Position{b, d}, got)
}

func TestCalculateDistancesChain(t *testing.T) {
	c := connections.New()
	a, b, d, e := p(0, 0, 0, 0), p(1, 0, 0, 0), p(2, 0, 0, 0), p(3, 0, 0, 0)
	require.NoError(t, c.Add(a, b))
	require.NoError(t, c.Add(b, d))
	require.NoError(t, c.Add(d, e))

	dist, err := c.CalculateDistances([]geom.Position{a})
	require.NoError(t, err)
	assert.Equal(t, 0, dist[a])
	assert.Equal(t, 1, dist[b])
	assert.Equal(t, 2, dist[d])
	assert.Equal(t, 3, dist[e])
}

func TestCalculateDistancesMultipleSourcesTakesMinimum(t *testing.T) {
	c := connections.New()
	a, b, d, e := p(0, 0, 0, 0), p(1, 0, 0, 0), p(2, 0, 0, 0), p(3, 0, 0, 0)
	require.NoError(t, c.Add(a, b))
	require.NoError(t, c.Add(b, d))
	require.NoError(t, c.Add(d, e))

	dist, err := c.CalculateDistances([]geom.Position{a, e})
	require.NoError(t, err)
	assert.Equal(t, 0, dist[a])
	assert.Equal(t, 1, dist[b])
	assert.Equal(t, 1, dist[d])
	assert.Equal(t, 0, dist[e])
}

func TestCalculateDistancesRejectsMixedTimePoints(t *testing.T) {
	c := connections.New()
	_, err := c.CalculateDistances([]geom.Position{p(0, 0, 0, 0), p(0, 0, 0, 1)})
	assert.Error(t, err)
}

func TestHasFullNeighborsTriangle(t *testing.T) {
	c := connections.New()
	center := p(0, 0, 0, 0)
	n1, n2, n3 := p(1, 0, 0, 0), p(0, 1, 0, 0), p(-1, 0, 0, 0)
	require.NoError(t, c.Add(center, n1))
	require.NoError(t, c.Add(center, n2))
	require.NoError(t, c.Add(center, n3))
	require.NoError(t, c.Add(n1, n2))
	require.NoError(t, c.Add(n2, n3))
	require.NoError(t, c.Add(n3, n1))

	assert.True(t, c.HasFullNeighbors(center))
}

func TestHasFullNeighborsOpenStar(t *testing.T) {
	c := connections.New()
	center := p(0, 0, 0, 0)
	n1, n2, n3 := p(1, 0, 0, 0), p(0, 1, 0, 0), p(-1, 0, 0, 0)
	require.NoError(t, c.Add(center, n1))
	require.NoError(t, c.Add(center, n2))
	require.NoError(t, c.Add(center, n3))
	// no edges among n1, n2, n3: the neighbor subgraph is just isolated nodes.

	assert.False(t, c.HasFullNeighbors(center))
}

func TestHasFullNeighborsFewerThanThree(t *testing.T) {
	c := connections.New()
	center := p(0, 0, 0, 0)
	n1, n2 := p(1, 0, 0, 0), p(0, 1, 0, 0)
	require.NoError(t, c.Add(center, n1))
	require.NoError(t, c.Add(center, n2))
	require.NoError(t, c.Add(n1, n2))

	assert.False(t, c.HasFullNeighbors(center))
}

func TestReplacePosition(t *testing.T) {
	c := connections.New()
	a, b := p(0, 0, 0, 0), p(1, 0, 0, 0)
	require.NoError(t, c.Add(a, b))

	newA := p(9, 9, 9, 0)
	require.NoError(t, c.ReplacePosition(a, newA))

	assert.False(t, c.Contains(a, b))
	assert.True(t, c.Contains(newA, b))
}

func TestMoveInTime(t *testing.T) {
	c := connections.New()
	a, b := p(0, 0, 0, 5), p(1, 0, 0, 5)
	require.NoError(t, c.Add(a, b))

	c.MoveInTime(10)

	assert.Equal(t, []int{15}, c.TimePoints(), "old time point 5 should be gone")
	shiftedA, shiftedB := p(0, 0, 0, 15), p(1, 0, 0, 15)
	assert.True(t, c.Contains(shiftedA, shiftedB))
}

func TestCopyIsIndependent(t *testing.T) {
	c := connections.New()
	a, b := p(0, 0, 0, 0), p(1, 0, 0, 0)
	require.NoError(t, c.Add(a, b))

	cp := c.Copy()
	d := p(2, 0, 0, 0)
	require.NoError(t, cp.Add(a, d))

	assert.False(t, c.Contains(a, d))
	assert.True(t, cp.Contains(a, d))
}

func TestFindClustersGroupsConnectedAndIsolated(t *testing.T) {
	c := connections.New()
	a, b, d := p(0, 0, 0, 0), p(1, 0, 0, 0), p(2, 0, 0, 0)
	lonely := p(10, 10, 10, 0)
	require.NoError(t, c.Add(a, b))
	require.NoError(t, c.Add(b, d))

	clusters := c.FindClusters([]geom.Position{a, b, d, lonely}, 0)
	require.Len(t, clusters, 2)

	var sizes []int
	for _, cl := range clusters {
		sizes = append(sizes, len(cl))
	}
	assert.ElementsMatch(t, []int{3, 1}, sizes)
}
