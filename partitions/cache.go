package partitions

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// DistributedCache stages face data exchanged with neighboring partitions.
// Per neighbor, the buffer holds the shared interfaces followed by the
// shared mortars, both in the global order the surfaces were classified in,
// which is identical on the two partitions of every pair:
//
//	[iface 0 | iface 1 | ... | mortar 0 | mortar 1 | ...]
//
// Interface slots hold InterfaceDataSize values, mortar slots
// MortarDataSize values.
type DistributedCache struct {
	Rank int

	// Sorted ranks this partition shares at least one surface with
	NeighborRanks []int

	// Distributed surface ids shared with each neighbor, in classification order
	NeighborInterfaces [][]int
	NeighborMortars    [][]int

	SendBuffers [][]float64
	RecvBuffers [][]float64

	InterfaceDataSize int
	MortarDataSize    int

	neighborIndex map[int]int
	ifaceSlot     []int // distributed interface id -> slot within its neighbor
	mortarSlots   []map[int]int
}

// NewDistributedCache builds the cache from the remote partition of each
// distributed interface and the remote partitions of each distributed
// mortar
func NewDistributedCache(rank int, interfaceRemotes []int, mortarRemotes [][]int,
	interfaceDataSize, mortarDataSize int) (*DistributedCache, error) {

	dc := &DistributedCache{
		Rank:              rank,
		InterfaceDataSize: interfaceDataSize,
		MortarDataSize:    mortarDataSize,
		neighborIndex:     make(map[int]int),
		ifaceSlot:         make([]int, len(interfaceRemotes)),
		mortarSlots:       make([]map[int]int, len(mortarRemotes)),
	}

	seen := make(map[int]bool)
	for i, r := range interfaceRemotes {
		if r == rank || r < 0 {
			return nil, fmt.Errorf("distributed interface %d: invalid remote partition %d on rank %d",
				i, r, rank)
		}
		seen[r] = true
	}
	for m, remotes := range mortarRemotes {
		if len(remotes) == 0 {
			return nil, fmt.Errorf("distributed mortar %d has no remote partition", m)
		}
		for _, r := range remotes {
			if r == rank || r < 0 {
				return nil, fmt.Errorf("distributed mortar %d: invalid remote partition %d on rank %d",
					m, r, rank)
			}
			seen[r] = true
		}
	}
	for r := range seen {
		dc.NeighborRanks = append(dc.NeighborRanks, r)
	}
	sort.Ints(dc.NeighborRanks)
	for n, r := range dc.NeighborRanks {
		dc.neighborIndex[r] = n
	}

	nn := len(dc.NeighborRanks)
	dc.NeighborInterfaces = make([][]int, nn)
	dc.NeighborMortars = make([][]int, nn)
	for i, r := range interfaceRemotes {
		n := dc.neighborIndex[r]
		dc.ifaceSlot[i] = len(dc.NeighborInterfaces[n])
		dc.NeighborInterfaces[n] = append(dc.NeighborInterfaces[n], i)
	}
	for m, remotes := range mortarRemotes {
		dc.mortarSlots[m] = make(map[int]int, len(remotes))
		for _, r := range remotes {
			n := dc.neighborIndex[r]
			if _, dup := dc.mortarSlots[m][r]; dup {
				continue
			}
			dc.mortarSlots[m][r] = len(dc.NeighborMortars[n])
			dc.NeighborMortars[n] = append(dc.NeighborMortars[n], m)
		}
	}

	dc.SendBuffers = make([][]float64, nn)
	dc.RecvBuffers = make([][]float64, nn)
	for n := range dc.NeighborRanks {
		size := dc.BufferSize(n)
		dc.SendBuffers[n] = make([]float64, size)
		dc.RecvBuffers[n] = make([]float64, size)
	}
	return dc, nil
}

// NumNeighbors returns the number of neighboring partitions
func (dc *DistributedCache) NumNeighbors() int { return len(dc.NeighborRanks) }

// NeighborIndex returns the position of rank in NeighborRanks, -1 if absent
func (dc *DistributedCache) NeighborIndex(rank int) int {
	if n, ok := dc.neighborIndex[rank]; ok {
		return n
	}
	return -1
}

// BufferSize returns the staging size for neighbor position n
func (dc *DistributedCache) BufferSize(n int) int {
	return len(dc.NeighborInterfaces[n])*dc.InterfaceDataSize +
		len(dc.NeighborMortars[n])*dc.MortarDataSize
}

// InterfaceSlot returns the send and receive slots of distributed
// interface i in the buffers of its neighbor
func (dc *DistributedCache) InterfaceSlot(i, remote int) (send, recv []float64) {
	n := dc.neighborIndex[remote]
	off := dc.ifaceSlot[i] * dc.InterfaceDataSize
	end := off + dc.InterfaceDataSize
	return dc.SendBuffers[n][off:end], dc.RecvBuffers[n][off:end]
}

// MortarSlot returns the send and receive slots of distributed mortar m in
// the buffers of neighbor remote
func (dc *DistributedCache) MortarSlot(m, remote int) (send, recv []float64) {
	n := dc.neighborIndex[remote]
	slot, ok := dc.mortarSlots[m][remote]
	if !ok {
		panic(fmt.Sprintf("distributed mortar %d is not shared with partition %d", m, remote))
	}
	off := len(dc.NeighborInterfaces[n])*dc.InterfaceDataSize + slot*dc.MortarDataSize
	end := off + dc.MortarDataSize
	return dc.SendBuffers[n][off:end], dc.RecvBuffers[n][off:end]
}

// AgreeCounts is the blocking rendezvous: every neighbor must report the
// same number of shared interfaces and mortars as this partition counted.
// All sends are posted before any receive.
func (dc *DistributedCache) AgreeCounts(ctx context.Context, tr Transport) error {
	for n, r := range dc.NeighborRanks {
		msg := []float64{
			float64(len(dc.NeighborInterfaces[n])),
			float64(len(dc.NeighborMortars[n])),
		}
		if err := tr.Send(ctx, r, TagCounts, msg); err != nil {
			return dc.transportError(r, "interface", err)
		}
	}
	var errs []error
	got := make([]float64, 2)
	for n, r := range dc.NeighborRanks {
		if err := tr.Recv(ctx, r, TagCounts, got); err != nil {
			return dc.transportError(r, "interface", err)
		}
		if local, remote := len(dc.NeighborInterfaces[n]), int(got[0]); local != remote {
			errs = append(errs, &ConsistencyError{Rank: dc.Rank, Remote: r,
				Kind: "interface", Local: local, RemoteCount: remote})
		}
		if local, remote := len(dc.NeighborMortars[n]), int(got[1]); local != remote {
			errs = append(errs, &ConsistencyError{Rank: dc.Rank, Remote: r,
				Kind: "mortar", Local: local, RemoteCount: remote})
		}
	}
	return errors.Join(errs...)
}

// Exchange sends every staging buffer to its neighbor and receives the
// neighbor's buffer in return
func (dc *DistributedCache) Exchange(ctx context.Context, tr Transport) error {
	for n, r := range dc.NeighborRanks {
		if err := tr.Send(ctx, r, TagFaceData, dc.SendBuffers[n]); err != nil {
			return dc.transportError(r, "exchange", err)
		}
	}
	for n, r := range dc.NeighborRanks {
		if err := tr.Recv(ctx, r, TagFaceData, dc.RecvBuffers[n]); err != nil {
			return dc.transportError(r, "exchange", err)
		}
	}
	return nil
}

func (dc *DistributedCache) transportError(remote int, kind string, err error) error {
	return &ConsistencyError{Rank: dc.Rank, Remote: remote, Kind: kind, Err: err}
}
