package partitions

import (
	"fmt"
	"math"
)

// Partition is the set of leaf elements owned by one rank. Elements hold
// positions in the global leaf sequence, Cells the matching tree cell ids;
// both are ascending in leaf order.
type Partition struct {
	// Unique identifier for this partition, also its transport rank
	ID int

	// Element membership
	Elements    []int // Global leaf positions in this partition
	Cells       []int // Tree cell ids, parallel to Elements
	NumElements int   // Actual number of active elements
	MaxElements int   // Padded size, equal to KpartMax for every partition
}

// PartitionLayout manages the decomposition of a leaf sequence
type PartitionLayout struct {
	// All partitions in the mesh
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int // Sum of all actual elements across partitions
	NumPartitions int // Total number of partitions

	// Leaf to partition mapping
	EToP []int // Length TotalElements: leaf position k belongs to partition EToP[k]

	cellOwner map[int]int
}

// GetPartition returns the partition owning leaf position k, -1 outside
// the sequence
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// Owner returns the partition owning a tree leaf cell, -1 when the cell is
// not part of the layout
func (pl *PartitionLayout) Owner(cellID int) int {
	if p, ok := pl.cellOwner[cellID]; ok {
		return p
	}
	return -1
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout has %d partitions, expected %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	// Verify KpartMax
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		if len(p.Elements) != p.NumElements || len(p.Cells) != p.NumElements {
			return fmt.Errorf("partition %d: %d elements, %d cells, NumElements %d",
				p.ID, len(p.Elements), len(p.Cells), p.NumElements)
		}
		for i, pos := range p.Elements {
			if pl.GetPartition(pos) != p.ID {
				return fmt.Errorf("partition %d: element %d mapped to partition %d",
					p.ID, pos, pl.GetPartition(pos))
			}
			if i > 0 && pos <= p.Elements[i-1] {
				return fmt.Errorf("partition %d: elements out of leaf order at %d", p.ID, i)
			}
		}
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements || len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, EToP %d, expected %d",
			total, len(pl.EToP), pl.TotalElements)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		MaxElements:   0,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		if p.NumElements < stats.MinElements {
			stats.MinElements = p.NumElements
		}
		if p.NumElements > stats.MaxElements {
			stats.MaxElements = p.NumElements
		}
	}

	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}
