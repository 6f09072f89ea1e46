package partitions

import (
	"context"
	"fmt"
	"sync"
)

// Message tags used by the distributed cache
const (
	TagCounts   = 1
	TagFaceData = 2
)

// Transport is the point-to-point primitive between partitions. Send may
// return before the receiver posts its Recv. Recv fills data completely or
// fails.
type Transport interface {
	Send(ctx context.Context, to, tag int, data []float64) error
	Recv(ctx context.Context, from, tag int, data []float64) error
}

type route struct {
	from, to, tag int
}

// ChannelTransport connects partitions living in one process through
// buffered channels, one queue per (from, to, tag) route. Messages on a
// route are delivered in send order.
type ChannelTransport struct {
	NumPartitions int

	mu     sync.Mutex
	depth  int
	queues map[route]chan []float64
}

// NewChannelTransport creates a hub for n partitions. depth bounds the
// number of undelivered messages per route before Send blocks.
func NewChannelTransport(n, depth int) *ChannelTransport {
	if depth < 1 {
		depth = 1
	}
	return &ChannelTransport{
		NumPartitions: n,
		depth:         depth,
		queues:        make(map[route]chan []float64),
	}
}

// Endpoint returns the Transport seen by partition rank
func (ct *ChannelTransport) Endpoint(rank int) Transport {
	return &channelEndpoint{hub: ct, rank: rank}
}

func (ct *ChannelTransport) queue(r route) chan []float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	q, ok := ct.queues[r]
	if !ok {
		q = make(chan []float64, ct.depth)
		ct.queues[r] = q
	}
	return q
}

func (ct *ChannelTransport) checkRank(rank int) error {
	if rank < 0 || rank >= ct.NumPartitions {
		return fmt.Errorf("partition %d outside [0,%d)", rank, ct.NumPartitions)
	}
	return nil
}

type channelEndpoint struct {
	hub  *ChannelTransport
	rank int
}

func (ep *channelEndpoint) Send(ctx context.Context, to, tag int, data []float64) error {
	if err := ep.hub.checkRank(to); err != nil {
		return fmt.Errorf("send from %d: %w", ep.rank, err)
	}
	msg := append([]float64(nil), data...)
	select {
	case ep.hub.queue(route{from: ep.rank, to: to, tag: tag}) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ep *channelEndpoint) Recv(ctx context.Context, from, tag int, data []float64) error {
	if err := ep.hub.checkRank(from); err != nil {
		return fmt.Errorf("recv on %d: %w", ep.rank, err)
	}
	select {
	case msg := <-ep.hub.queue(route{from: from, to: ep.rank, tag: tag}):
		if len(msg) != len(data) {
			return fmt.Errorf("recv on %d from %d tag %d: message length %d, expected %d",
				ep.rank, from, tag, len(msg), len(data))
		}
		copy(data, msg)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
