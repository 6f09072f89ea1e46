package containers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGAdapt/equations"
	"github.com/notargets/DGAdapt/tree"
)

var advection = &equations.LinearScalarAdvection{Velocity: [3]float64{1, 1, 1}}

// ring returns a periodic 1-D tree of 4 unit cells on [-2,2]
func ring(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := tree.New(tree.Config{NDims: 1, Length: 4, Periodic: [3]bool{true}})
	require.NoError(t, err)
	require.NoError(t, tr.RefineUniform(2))
	return tr
}

// line returns the non-periodic counterpart of ring
func line(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := tree.New(tree.Config{NDims: 1, Length: 4})
	require.NoError(t, err)
	require.NoError(t, tr.RefineUniform(2))
	return tr
}

// square returns [-1,1]^2 refined once with the lower left quadrant refined
// again
func square(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := tree.New(tree.Config{NDims: 2, Length: 2})
	require.NoError(t, err)
	require.NoError(t, tr.RefineUniform(1))
	_, err = tr.Refine([]int{tr.Child(tr.Root, 0)})
	require.NoError(t, err)
	return tr
}

func serial(t *testing.T, tr *tree.Tree, N int) *Containers {
	t.Helper()
	c, err := New(tr, advection, Config{PolynomialDegree: N})
	require.NoError(t, err)
	require.NoError(t, c.Reinitialize(context.Background(), tr))
	return c
}

func TestReinitialize_UniformRing(t *testing.T) {
	tr := ring(t)
	c := serial(t, tr, 2)

	assert.Equal(t, Counts{Elements: 4, Interfaces: 4}, c.Counts())
	assert.Equal(t, tr.LeafCells(), c.Elements.CellIDs)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}, c.Interfaces.ElementIDs)
	for i := 0; i < c.Interfaces.Count(); i++ {
		assert.Equal(t, [2]int{1, 0}, c.Interfaces.Faces[i])
		assert.Equal(t, 0, c.Interfaces.Orientations[i])
	}

	x0 := []float64{c.Elements.Node(0, 0)[0], c.Elements.Node(0, 1)[0], c.Elements.Node(0, 2)[0]}
	assert.InDeltaSlice(t, []float64{-2, -1.5, -1}, x0, 1e-14)
	assert.Equal(t, []float64{2, 2, 2, 2}, c.Elements.InverseJacobian)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, c.Elements.Jacobian)
	assert.Equal(t, []float64{2, 2, 2, 2}, c.Elements.FaceScale)
	assert.Equal(t, []int{2, 2, 2, 2}, c.Elements.Levels)
	assert.Nil(t, c.Cache)
	assert.Nil(t, c.Layout)
}

func TestReinitialize_RefinedRing(t *testing.T) {
	tr := ring(t)
	leaves := tr.LeafCells()
	children, err := tr.Refine([]int{leaves[0]})
	require.NoError(t, err)
	c := serial(t, tr, 3)

	assert.Equal(t, Counts{Elements: 5, Interfaces: 3, Mortars: 2}, c.Counts())
	assert.Equal(t, tr.LeafCells(), c.Elements.CellIDs)
	assert.Equal(t, []int{children[0], children[1], leaves[1], leaves[2], leaves[3]}, c.Elements.CellIDs)
	assert.Equal(t, [][2]int{{0, 1}, {2, 3}, {3, 4}}, c.Interfaces.ElementIDs)

	mo := c.Mortars
	assert.Equal(t, []int{2, 4}, mo.LargeElements)
	assert.Equal(t, [][]int{{1}, {0}}, mo.SmallElements)
	assert.Equal(t, []int{1, 0}, mo.LargeSides)
	assert.Equal(t, []int{0, 1}, mo.LargeFaces)
	assert.Equal(t, 1, mo.NumSmall())

	// Interfaces only between same-level pairs, mortars one level apart and
	// made of the refined neighbor's children
	el := c.Elements
	for i := 0; i < c.Interfaces.Count(); i++ {
		l, r := c.Interfaces.Elements(i)
		assert.Equal(t, el.Level(l), el.Level(r))
	}
	refined := tr.Children(leaves[0])
	for m := 0; m < mo.Count(); m++ {
		for _, s := range mo.SmallElements[m] {
			assert.Equal(t, el.Level(mo.LargeElements[m])+1, el.Level(s))
			assert.Contains(t, refined, el.CellID(s))
		}
	}
}

func TestReinitialize_Boundaries(t *testing.T) {
	tr := line(t)
	c, err := New(tr, advection, Config{PolynomialDegree: 1, BoundaryTags: map[int]string{0: "inflow"}})
	require.NoError(t, err)
	require.NoError(t, c.Reinitialize(context.Background(), tr))

	assert.Equal(t, Counts{Elements: 4, Interfaces: 3, Boundaries: 2}, c.Counts())
	bd := c.Boundaries
	assert.Equal(t, []int{0, 3}, bd.ElementIDs)
	assert.Equal(t, []int{0, 1}, bd.Faces)
	assert.Equal(t, []int{1, 0}, bd.ElementSides)
	assert.Equal(t, []string{"inflow", DefaultTag}, bd.Tags)
	assert.Equal(t, []int{1, 1}, bd.CountsPerDirection)
	assert.Equal(t, []float64{-2}, bd.Coordinate(0, 0))
	assert.Equal(t, []float64{2}, bd.Coordinate(1, 0))
}

func TestReinitialize_Square(t *testing.T) {
	tr := square(t)
	c := serial(t, tr, 2)

	assert.Equal(t, Counts{Elements: 7, Interfaces: 6, Boundaries: 10, Mortars: 2}, c.Counts())
	assert.Equal(t, []int{3, 2, 3, 2}, c.Boundaries.CountsPerDirection)

	// Leaves: four grandchildren of quadrant 0, then quadrants 1, 2, 3
	mo := c.Mortars
	assert.Equal(t, []int{4, 5}, mo.LargeElements)
	assert.Equal(t, [][]int{{1, 3}, {2, 3}}, mo.SmallElements)
	assert.Equal(t, []int{1, 1}, mo.LargeSides)
	assert.Equal(t, []int{0, 2}, mo.LargeFaces)
	assert.Equal(t, []int{0, 1}, mo.Orientations)

	// Every conforming pair is covered exactly once
	pairs := make(map[[2]int]int)
	for i := 0; i < c.Interfaces.Count(); i++ {
		l, r := c.Interfaces.Elements(i)
		if l > r {
			l, r = r, l
		}
		pairs[[2]int{l, r}]++
	}
	assert.Equal(t, map[[2]int]int{
		{0, 1}: 1, {2, 3}: 1, {0, 2}: 1, {1, 3}: 1, {4, 6}: 1, {5, 6}: 1,
	}, pairs)
}

func TestReinitialize_LevelJump(t *testing.T) {
	tr := line(t)
	leaves := tr.LeafCells()
	c := serial(t, tr, 1)
	before := c.Counts()

	children, err := tr.Refine([]int{leaves[1]})
	require.NoError(t, err)
	grand, err := tr.Refine([]int{children[0]})
	require.NoError(t, err)

	err = c.Reinitialize(context.Background(), tr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTopologyInvariant)
	var te *TopologyError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonLevelJump, te.Reason)
	// Found from the fine side: the nearest neighbor is two levels up
	assert.Equal(t, grand[0], te.Cell)
	assert.Equal(t, 0, te.Face)
	assert.Equal(t, 4, te.Level)
	assert.Equal(t, 2, te.NeighborLevel)

	// Failed rebuilds leave the previous containers in place
	assert.Equal(t, before, c.Counts())
}

func TestReinitialize_Idempotent(t *testing.T) {
	tr := square(t)
	c := serial(t, tr, 2)
	first := *c
	require.NoError(t, c.Reinitialize(context.Background(), tr))

	assert.Equal(t, first.Elements, c.Elements)
	assert.Equal(t, first.Interfaces, c.Interfaces)
	assert.Equal(t, first.Boundaries, c.Boundaries)
	assert.Equal(t, first.Mortars, c.Mortars)
	assert.NotSame(t, first.Elements, c.Elements)
}

func TestReinitialize_Coarsen(t *testing.T) {
	tr := ring(t)
	c := serial(t, tr, 2)
	uniform := c.Counts()

	leaf := tr.LeafCells()[2]
	_, err := tr.Refine([]int{leaf})
	require.NoError(t, err)
	require.NoError(t, c.Reinitialize(context.Background(), tr))
	assert.Equal(t, Counts{Elements: 5, Interfaces: 3, Mortars: 2}, c.Counts())

	require.NoError(t, tr.Coarsen([]int{leaf}))
	require.NoError(t, c.Reinitialize(context.Background(), tr))
	assert.Equal(t, uniform, c.Counts())
}

func TestReinitialize_BalancedRefinement3D(t *testing.T) {
	tr, err := tree.New(tree.Config{NDims: 3, Length: 1, Periodic: [3]bool{true, true, true}})
	require.NoError(t, err)
	require.NoError(t, tr.RefineUniform(1))
	first := tr.LeafCells()[0]
	children, err := tr.RefineBalanced([]int{first})
	require.NoError(t, err)
	_, err = tr.RefineBalanced([]int{children[7]})
	require.NoError(t, err)

	c := serial(t, tr, 1)
	counts := c.Counts()
	assert.Equal(t, len(tr.LeafCells()), counts.Elements)
	assert.Zero(t, counts.Boundaries)
	assert.NotZero(t, counts.Mortars)
	for m := 0; m < c.Mortars.Count(); m++ {
		require.Len(t, c.Mortars.SmallElements[m], 4)
		for _, s := range c.Mortars.SmallElements[m] {
			assert.Equal(t, c.Elements.Level(c.Mortars.LargeElements[m])+1, c.Elements.Level(s))
		}
	}
}

func TestReinitialize_Metrics(t *testing.T) {
	c := serial(t, square(t), 1)
	assert.Equal(t, float64(c.Counts().Boundaries),
		testutil.ToFloat64(containerSize.WithLabelValues("boundaries", "0")))
}

func TestReinitialize_DimensionMismatch(t *testing.T) {
	c := serial(t, ring(t), 1)
	assert.Error(t, c.Reinitialize(context.Background(), square(t)))
}

func TestIndexRange(t *testing.T) {
	c := serial(t, ring(t), 1)
	accessors := map[string]func(){
		"element":   func() { c.Elements.CellID(4) },
		"interface": func() { c.Interfaces.Elements(-1) },
		"boundary":  func() { c.Boundaries.Trace(0, 0) },
		"mortar":    func() { c.Mortars.Trace(0, 0, 0, 0) },
	}
	for name, fn := range accessors {
		t.Run(name, func(t *testing.T) {
			defer func() {
				err, ok := recover().(error)
				require.True(t, ok, "expected an error panic")
				assert.ErrorIs(t, err, ErrIndexRange)
			}()
			fn()
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tr := ring(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"degree", Config{PolynomialDegree: 0}},
		{"empty tag", Config{PolynomialDegree: 1, BoundaryTags: map[int]string{0: ""}}},
		{"no transport", Config{PolynomialDegree: 1, NumPartitions: 2}},
		{"rank", Config{PolynomialDegree: 1, NumPartitions: 2, Rank: 2}},
		{"serial rank", Config{PolynomialDegree: 1, Rank: 1}},
		{"timeout", Config{PolynomialDegree: 1, ExchangeTimeout: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tr, advection, tt.cfg)
			assert.Error(t, err)
		})
	}
	_, err := New(tr, nil, Config{PolynomialDegree: 1})
	assert.Error(t, err)
}
