package containers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/DGAdapt/partitions"
	"github.com/notargets/DGAdapt/tree"
)

// distributed rebuilds one Containers per tree, partition r using trees[r],
// concurrently through a shared channel transport
func distributed(t *testing.T, trees []*tree.Tree, N int, strategy partitions.PartitionStrategy) ([]*Containers, []error) {
	t.Helper()
	hub := partitions.NewChannelTransport(len(trees), 4)
	cs := make([]*Containers, len(trees))
	for r, tr := range trees {
		c, err := New(tr, advection, Config{
			PolynomialDegree: N,
			NumPartitions:    len(trees),
			Rank:             r,
			Strategy:         strategy,
			ExchangeTimeout:  2 * time.Second,
			Transport:        hub.Endpoint(r),
		})
		require.NoError(t, err)
		cs[r] = c
	}
	errs := make([]error, len(trees))
	var g errgroup.Group
	for r := range cs {
		g.Go(func() error {
			errs[r] = cs[r].Reinitialize(context.Background(), trees[r])
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return cs, errs
}

func exchange(t *testing.T, cs []*Containers) {
	t.Helper()
	for _, c := range cs {
		c.ProlongToDistributed()
		c.PackDistributed()
	}
	g, ctx := errgroup.WithContext(context.Background())
	for _, c := range cs {
		g.Go(func() error { return c.Exchange(ctx) })
	}
	require.NoError(t, g.Wait())
	for _, c := range cs {
		c.UnpackDistributed()
	}
}

func TestDistributed_Ring(t *testing.T) {
	tr := ring(t)
	cs, errs := distributed(t, []*tree.Tree{tr, tr}, 1, partitions.BlockPartition)
	for r, c := range cs {
		require.NoError(t, errs[r])
		assert.Equal(t, Counts{Elements: 2, Interfaces: 1, DistributedInterfaces: 2}, c.Counts(), "rank %d", r)
		assert.Equal(t, []int{1 - r}, c.Cache.NeighborRanks)
		assert.Len(t, c.Cache.NeighborInterfaces[0], 2)
		assert.Len(t, c.Cache.SendBuffers[0], 2)
		require.NoError(t, c.Layout.ValidateLayout())
	}
	leaves := tr.LeafCells()
	assert.Equal(t, leaves[:2], cs[0].Elements.CellIDs)
	assert.Equal(t, leaves[2:], cs[1].Elements.CellIDs)

	// Global order: (1,2) then the periodic (3,0)
	di := cs[0].DistributedInterfaces
	assert.Equal(t, []int{1, 0}, di.LocalElements)
	assert.Equal(t, []int{0, 1}, di.LocalSides)
	assert.Equal(t, []int{leaves[2], leaves[3]}, di.RemoteCells)
	assert.Equal(t, []int{1, 1}, di.RemoteRanks)

	for _, c := range cs {
		c.Elements.Fill(func(x [3]float64, u []float64) { u[0] = x[0] })
	}
	exchange(t, cs)

	assert.Equal(t, []float64{0}, di.Trace(0, 0, 0))
	assert.Equal(t, []float64{0}, di.Trace(0, 1, 0))
	assert.Equal(t, []float64{2}, di.Trace(1, 0, 0))
	assert.Equal(t, []float64{-2}, di.Trace(1, 1, 0))
	assert.Equal(t, []float64{-2}, cs[1].DistributedInterfaces.Trace(1, 1, 0))
}

func TestDistributed_Mortars(t *testing.T) {
	tr := square(t)
	cs, errs := distributed(t, []*tree.Tree{tr, tr}, 2, partitions.BlockPartition)
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Quadrant 0 grandchildren on rank 0, the coarse quadrants on rank 1
	assert.Equal(t, Counts{Elements: 4, Interfaces: 4, Boundaries: 4, DistributedMortars: 2}, cs[0].Counts())
	assert.Equal(t, Counts{Elements: 3, Interfaces: 2, Boundaries: 6, DistributedMortars: 2}, cs[1].Counts())

	dm := cs[1].DistributedMortars
	assert.Equal(t, [][]int{{tree.None, tree.None, 0}, {tree.None, tree.None, 1}}, dm.MemberElements)
	assert.Equal(t, [][]int{{0}, {0}}, dm.RemoteRanks)
	assert.Equal(t, [][]int{{0, 0, 1}, {0, 0, 1}}, dm.MemberOwners)
	assert.Equal(t, cs[0].DistributedMortars.SmallCells, dm.SmallCells)

	for _, c := range cs {
		c.Elements.Fill(func(x [3]float64, u []float64) { u[0] = x[0] + 2*x[1] + 5 })
	}
	exchange(t, cs)
	assert.Equal(t, cs[0].DistributedMortars.Data, cs[1].DistributedMortars.Data)
	// Large member: lower x face of quadrant 1, y ascending
	assert.InDeltaSlice(t, []float64{3, 4, 5}, dm.Trace(0, 2, 0), 1e-13)
}

func TestDistributed_CountMismatch(t *testing.T) {
	uniform := ring(t)
	refined := ring(t)
	_, err := refined.Refine([]int{refined.LeafCells()[0]})
	require.NoError(t, err)

	_, errs := distributed(t, []*tree.Tree{uniform, refined}, 1, partitions.BlockPartition)
	for r, err := range errs {
		require.Error(t, err, "rank %d", r)
		assert.ErrorIs(t, err, partitions.ErrDistributedConsistency)
		var ce *partitions.ConsistencyError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, r, ce.Rank)
	}
}

func TestDistributed_Timeout(t *testing.T) {
	tr := ring(t)
	hub := partitions.NewChannelTransport(2, 1)
	c, err := New(tr, advection, Config{
		PolynomialDegree: 1,
		NumPartitions:    2,
		ExchangeTimeout:  20 * time.Millisecond,
		Transport:        hub.Endpoint(0),
	})
	require.NoError(t, err)

	err = c.Reinitialize(context.Background(), tr)
	require.Error(t, err)
	assert.ErrorIs(t, err, partitions.ErrDistributedConsistency)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Counts().Elements)
}

func TestDistributed_LevelJumpFromCoarseSide(t *testing.T) {
	tr := line(t)
	leaves := tr.LeafCells()
	children, err := tr.Refine([]int{leaves[1]})
	require.NoError(t, err)
	_, err = tr.Refine([]int{children[0]})
	require.NoError(t, err)

	// Round robin keeps the deepest lower cell off rank 0, so only the
	// coarse neighbor's view of the refined face sees the jump
	hub := partitions.NewChannelTransport(2, 1)
	c, err := New(tr, advection, Config{
		PolynomialDegree: 1,
		NumPartitions:    2,
		Strategy:         partitions.RoundRobin,
		Transport:        hub.Endpoint(0),
	})
	require.NoError(t, err)

	err = c.Reinitialize(context.Background(), tr)
	require.Error(t, err)
	var te *TopologyError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonLevelJump, te.Reason)
	assert.Equal(t, leaves[0], te.Cell)
	assert.Equal(t, 1, te.Face)
	assert.Equal(t, 2, te.Level)
	assert.Equal(t, 4, te.NeighborLevel)
}
