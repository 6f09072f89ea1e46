package partitions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNewDistributedCache(t *testing.T) {
	// Interfaces shared with 2, 0, 2; mortar 0 spans partitions 0 and 3
	dc, err := NewDistributedCache(1, []int{2, 0, 2}, [][]int{{0, 3, 0}}, 4, 12)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 3}, dc.NeighborRanks)
	assert.Equal(t, [][]int{{1}, {0, 2}, nil}, dc.NeighborInterfaces)
	assert.Equal(t, [][]int{{0}, nil, {0}}, dc.NeighborMortars)
	assert.Equal(t, 16, dc.BufferSize(0))
	assert.Equal(t, 8, dc.BufferSize(1))
	assert.Equal(t, 12, dc.BufferSize(2))
	assert.Len(t, dc.SendBuffers[1], 8)
	assert.Len(t, dc.RecvBuffers[2], 12)
	assert.Equal(t, 1, dc.NeighborIndex(2))
	assert.Equal(t, -1, dc.NeighborIndex(1))

	send, _ := dc.InterfaceSlot(2, 2)
	send[0] = 7
	assert.Equal(t, 7.0, dc.SendBuffers[1][4])

	send, recv := dc.MortarSlot(0, 0)
	assert.Len(t, send, 12)
	send[0] = 3
	assert.Equal(t, 3.0, dc.SendBuffers[0][4])
	dc.RecvBuffers[0][15] = 5
	assert.Equal(t, 5.0, recv[11])

	assert.Panics(t, func() { dc.MortarSlot(0, 2) })
}

func TestNewDistributedCache_Invalid(t *testing.T) {
	_, err := NewDistributedCache(0, []int{0}, nil, 1, 1)
	assert.Error(t, err)
	_, err = NewDistributedCache(0, nil, [][]int{{}}, 1, 1)
	assert.Error(t, err)
}

func TestAgreeCounts_Symmetric(t *testing.T) {
	hub := NewChannelTransport(2, 4)
	caches := make([]*DistributedCache, 2)
	var err error
	caches[0], err = NewDistributedCache(0, []int{1, 1}, nil, 2, 6)
	require.NoError(t, err)
	caches[1], err = NewDistributedCache(1, []int{0, 0}, nil, 2, 6)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var g errgroup.Group
	for r := range caches {
		g.Go(func() error { return caches[r].AgreeCounts(ctx, hub.Endpoint(r)) })
	}
	require.NoError(t, g.Wait())
}

func TestAgreeCounts_Mismatch(t *testing.T) {
	hub := NewChannelTransport(2, 4)
	c0, err := NewDistributedCache(0, []int{1, 1}, nil, 2, 6)
	require.NoError(t, err)
	c1, err := NewDistributedCache(1, []int{0}, [][]int{{0}}, 2, 6)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errs := make([]error, 2)
	var g errgroup.Group
	g.Go(func() error { errs[0] = c0.AgreeCounts(ctx, hub.Endpoint(0)); return nil })
	g.Go(func() error { errs[1] = c1.AgreeCounts(ctx, hub.Endpoint(1)); return nil })
	require.NoError(t, g.Wait())

	for r, err := range errs {
		require.Error(t, err, "rank %d", r)
		assert.True(t, errors.Is(err, ErrDistributedConsistency), "rank %d", r)
		var ce *ConsistencyError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, r, ce.Rank)
		assert.Equal(t, 1-r, ce.Remote)
	}
	var ce *ConsistencyError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, "interface", ce.Kind)
	assert.Equal(t, 2, ce.Local)
	assert.Equal(t, 1, ce.RemoteCount)
}

func TestAgreeCounts_Timeout(t *testing.T) {
	hub := NewChannelTransport(2, 1)
	dc, err := NewDistributedCache(0, []int{1}, nil, 1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = dc.AgreeCounts(ctx, hub.Endpoint(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDistributedConsistency)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExchange(t *testing.T) {
	hub := NewChannelTransport(2, 2)
	c0, err := NewDistributedCache(0, []int{1}, nil, 3, 0)
	require.NoError(t, err)
	c1, err := NewDistributedCache(1, []int{0}, nil, 3, 0)
	require.NoError(t, err)
	copy(c0.SendBuffers[0], []float64{1, 2, 3})
	copy(c1.SendBuffers[0], []float64{4, 5, 6})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var g errgroup.Group
	g.Go(func() error { return c0.Exchange(ctx, hub.Endpoint(0)) })
	g.Go(func() error { return c1.Exchange(ctx, hub.Endpoint(1)) })
	require.NoError(t, g.Wait())

	assert.Equal(t, []float64{4, 5, 6}, c0.RecvBuffers[0])
	assert.Equal(t, []float64{1, 2, 3}, c1.RecvBuffers[0])
}

func TestChannelTransport(t *testing.T) {
	hub := NewChannelTransport(2, 2)
	ctx := context.Background()
	a, b := hub.Endpoint(0), hub.Endpoint(1)

	msg := []float64{1, 2}
	require.NoError(t, a.Send(ctx, 1, 9, msg))
	msg[0] = 99 // the transport owns a copy

	got := make([]float64, 2)
	require.NoError(t, b.Recv(ctx, 0, 9, got))
	assert.Equal(t, []float64{1, 2}, got)

	assert.Error(t, a.Send(ctx, 5, 9, msg))
	require.NoError(t, a.Send(ctx, 1, 9, msg))
	assert.ErrorContains(t, b.Recv(ctx, 0, 9, make([]float64, 3)), "length")
}
