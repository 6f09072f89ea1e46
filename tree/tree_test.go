package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRing(t *testing.T, level int) *Tree {
	t.Helper()
	tr, err := New(Config{NDims: 1, Length: 4, Periodic: [3]bool{true}})
	require.NoError(t, err)
	require.NoError(t, tr.RefineUniform(level))
	return tr
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{NDims: 0, Length: 1})
	assert.Error(t, err)
	_, err = New(Config{NDims: 4, Length: 1})
	assert.Error(t, err)
	_, err = New(Config{NDims: 2, Length: 0})
	assert.Error(t, err)
}

func TestTree_PeriodicRoot(t *testing.T) {
	tr, err := New(Config{NDims: 2, Length: 1, Periodic: [3]bool{true, false}})
	require.NoError(t, err)
	assert.Equal(t, tr.Root, tr.Neighbor(tr.Root, Face(0, 0)))
	assert.Equal(t, tr.Root, tr.Neighbor(tr.Root, Face(0, 1)))
	assert.Equal(t, None, tr.Neighbor(tr.Root, Face(1, 0)))
	assert.Equal(t, None, tr.Neighbor(tr.Root, Face(1, 1)))
	assert.Equal(t, []int{tr.Root}, tr.LeafCells())
}

func TestTree_UniformRing(t *testing.T) {
	tr := newRing(t, 2)
	leaves := tr.LeafCells()
	require.Len(t, leaves, 4)

	// Leaves are ordered left to right and wrap periodically
	for i, id := range leaves {
		left := leaves[(i+3)%4]
		right := leaves[(i+1)%4]
		assert.Equal(t, left, tr.Neighbor(id, Face(0, 0)), "leaf %d left", i)
		assert.Equal(t, right, tr.Neighbor(id, Face(0, 1)), "leaf %d right", i)
		assert.Equal(t, 2, tr.Level(id))
		assert.InDelta(t, 1.0, tr.Length(id), 1e-14)
		assert.InDelta(t, -1.5+float64(i), tr.Center(id)[0], 1e-14)
	}
	require.NoError(t, tr.Verify())
}

func TestTree_Refine2D(t *testing.T) {
	tr, err := New(Config{NDims: 2, Length: 2})
	require.NoError(t, err)
	require.NoError(t, tr.RefineUniform(1))
	leaves := tr.LeafCells()
	require.Len(t, leaves, 4)

	// Morton order: bit 0 is x, bit 1 is y
	c0, c1, c2, c3 := leaves[0], leaves[1], leaves[2], leaves[3]
	assert.Equal(t, c1, tr.Neighbor(c0, Face(0, 1)))
	assert.Equal(t, c2, tr.Neighbor(c0, Face(1, 1)))
	assert.Equal(t, None, tr.Neighbor(c0, Face(0, 0)))
	assert.Equal(t, c3, tr.Neighbor(c2, Face(0, 1)))
	assert.Equal(t, [3]float64{-0.5, -0.5, 0}, tr.Center(c0))
	assert.Equal(t, [3]float64{0.5, 0.5, 0}, tr.Center(c3))

	// Refining two neighbors links their facing children
	_, err = tr.Refine([]int{c0, c1})
	require.NoError(t, err)
	require.NoError(t, tr.Verify())
	assert.Equal(t, tr.Child(c1, 0), tr.Neighbor(tr.Child(c0, 1), Face(0, 1)))
	assert.Equal(t, tr.Child(c1, 2), tr.Neighbor(tr.Child(c0, 3), Face(0, 1)))
	// c2 is unrefined, so c0's upper children see no same-level neighbor
	assert.Equal(t, None, tr.Neighbor(tr.Child(c0, 2), Face(1, 1)))
	nb, up := tr.AncestorNeighbor(tr.Child(c0, 2), Face(1, 1))
	assert.Equal(t, c2, nb)
	assert.Equal(t, 1, up)
	assert.Len(t, tr.LeafCells(), 10)
}

func TestTree_RefineErrors(t *testing.T) {
	tr := newRing(t, 1)
	_, err := tr.Refine([]int{tr.Root})
	assert.Error(t, err, "root is not a leaf")
	_, err = tr.Refine([]int{999})
	assert.Error(t, err)
}

func TestTree_CoarsenRestoresLinks(t *testing.T) {
	tr := newRing(t, 2)
	leaves := tr.LeafCells()
	_, err := tr.Refine([]int{leaves[0], leaves[1]})
	require.NoError(t, err)
	require.Len(t, tr.LeafCells(), 6)

	require.NoError(t, tr.Coarsen([]int{leaves[0]}))
	require.NoError(t, tr.Verify())
	assert.Equal(t, leaves[0], tr.LeafCells()[0])
	assert.Len(t, tr.LeafCells(), 5)
	// leaves[1]'s left child no longer has a same-level neighbor
	assert.Equal(t, None, tr.Neighbor(tr.Child(leaves[1], 0), Face(0, 0)))
	assert.Equal(t, leaves[1], tr.Neighbor(leaves[0], Face(0, 1)))

	// Freed ids are recycled without changing the leaf order semantics
	before := tr.Capacity()
	_, err = tr.Refine([]int{leaves[3]})
	require.NoError(t, err)
	assert.Equal(t, before, tr.Capacity())
	require.NoError(t, tr.Verify())
	order := tr.LeafCells()
	assert.Equal(t, leaves[0], order[0])
	assert.Equal(t, tr.Child(leaves[3], 1), order[len(order)-1])
}

func TestTree_CoarsenErrors(t *testing.T) {
	tr := newRing(t, 2)
	leaves := tr.LeafCells()
	assert.Error(t, tr.Coarsen([]int{leaves[0]}), "leaf has no children")
	assert.Error(t, tr.Coarsen([]int{tr.Root}), "children are refined")
}

func TestTree_RefineBalanced(t *testing.T) {
	tr := newRing(t, 2)
	leaves := tr.LeafCells()
	_, err := tr.Refine([]int{leaves[1]})
	require.NoError(t, err)

	// Refining the left child of leaves[1] would put level 4 next to level 2
	target := tr.Child(leaves[1], 0)
	created, err := tr.RefineBalanced([]int{target})
	require.NoError(t, err)
	assert.Len(t, created, 4, "leaves[0] and target are both split")
	assert.False(t, tr.IsLeaf(leaves[0]))
	require.NoError(t, tr.Verify())

	for _, id := range tr.LeafCells() {
		for f := 0; f < tr.NumFaces(); f++ {
			if tr.Neighbor(id, f) != None {
				continue
			}
			_, up := tr.AncestorNeighbor(id, f)
			assert.LessOrEqual(t, up, 1, "cell %d face %d", id, f)
		}
	}
	assert.Equal(t, 4, tr.MaxLevel())
}

func TestTree_CellCopy(t *testing.T) {
	tr := newRing(t, 1)
	c := tr.Cell(tr.Root)
	c.Children[0] = 42
	assert.NotEqual(t, 42, tr.Children(tr.Root)[0])
	assert.Panics(t, func() { tr.Cell(100) })
}

func TestFaceHelpers(t *testing.T) {
	assert.Equal(t, 5, Face(2, 1))
	assert.Equal(t, 2, Axis(5))
	assert.Equal(t, 1, Side(5))
	assert.Equal(t, 4, Opposite(5))
	assert.Equal(t, 3, Opposite(2))
}
