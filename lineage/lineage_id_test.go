package lineage_test

import (
	"testing"

	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLineageIDUnlinkedIsNegativeOne(t *testing.T) {
	l := lineage.New()
	assert.Equal(t, -1, l.GetLineageID(at(0)))
}

func TestGetLineageIDLinearChainIsNegativeOne(t *testing.T) {
	l := lineage.New()
	require.NoError(t, l.AddLink(at(0), at(1)))
	require.NoError(t, l.AddLink(at(1), at(2)))
	assert.Equal(t, -1, l.GetLineageID(at(1)))
}

func TestGetLineageIDDivisionIsConsistentAcrossTree(t *testing.T) {
	l := lineage.New()
	p0, p1, p2 := at(0), at(1), at(2)
	require.NoError(t, l.AddLink(p0, p1))
	require.NoError(t, l.AddLink(p1, p2))
	q3 := geom.New(5, 0, 0, 3)
	r3 := geom.New(6, 0, 0, 3)
	require.NoError(t, l.AddLink(p2, q3))
	require.NoError(t, l.AddLink(p2, r3))

	rootID := l.GetLineageID(p0)
	daughterID := l.GetLineageID(q3)
	assert.NotEqual(t, -1, rootID)
	assert.Equal(t, rootID, daughterID)
}

func TestAssignLineageIDsOnlyNumbersDividingTrees(t *testing.T) {
	l := lineage.New()

	// Non-dividing chain: should not receive a lineage id.
	require.NoError(t, l.AddLink(at(0), at(1)))

	// Dividing tree: should receive a lineage id.
	p0, p1, p2 := geom.New(9, 0, 0, 0), geom.New(9, 0, 0, 1), geom.New(9, 0, 0, 2)
	require.NoError(t, l.AddLink(p0, p1))
	require.NoError(t, l.AddLink(p1, p2))
	q3 := geom.New(14, 0, 0, 3)
	r3 := geom.New(15, 0, 0, 3)
	require.NoError(t, l.AddLink(p2, q3))
	require.NoError(t, l.AddLink(p2, r3))

	ids := l.AssignLineageIDs()
	root := l.GetTrack(p0)
	require.NotNil(t, root)

	assert.Len(t, ids, 1)
	_, ok := ids[root]
	assert.True(t, ok)
}
