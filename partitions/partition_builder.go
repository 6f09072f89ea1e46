package partitions

import (
	"fmt"
	"math"
	"strings"
)

// PartitionStrategy defines how leaves are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive leaves along the space-filling order
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration name to a strategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin", "round-robin":
		return RoundRobin, nil
	default:
		return 0, fmt.Errorf("unknown partition strategy %q", name)
	}
}

// UnmarshalText lets configuration files name the strategy
func (s *PartitionStrategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s PartitionStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PartitionBuilder assigns an ordered leaf sequence to partitions
type PartitionBuilder struct {
	NumPartitions int
	Strategy      PartitionStrategy
}

// BuildPartitions creates a partition layout for the leaf cell ids, given in
// global leaf order
func (pb *PartitionBuilder) BuildPartitions(leaves []int) (*PartitionLayout, error) {
	if pb.NumPartitions < 1 {
		return nil, fmt.Errorf("number of partitions %d must be at least 1", pb.NumPartitions)
	}
	numPartitions := pb.NumPartitions

	// Partition the elements
	eToP, err := pb.partitionElements(len(leaves), numPartitions)
	if err != nil {
		return nil, err
	}

	// Create partition structures
	partitions := createPartitions(eToP, leaves, numPartitions)

	kpartMax := calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	owner := make(map[int]int, len(leaves))
	for k, cell := range leaves {
		owner[cell] = eToP[k]
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: len(leaves),
		NumPartitions: numPartitions,
		EToP:          eToP,
		cellOwner:     owner,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// partitionElements assigns leaf positions to partitions
func (pb *PartitionBuilder) partitionElements(numElements, numPartitions int) ([]int, error) {
	eToP := make([]int, numElements)

	switch pb.Strategy {
	case BlockPartition:
		elementsPerPartition := int(math.Ceil(float64(numElements) / float64(numPartitions)))
		if elementsPerPartition < 1 {
			elementsPerPartition = 1
		}
		for i := 0; i < numElements; i++ {
			eToP[i] = i / elementsPerPartition
			if eToP[i] >= numPartitions {
				eToP[i] = numPartitions - 1
			}
		}

	case RoundRobin:
		for i := 0; i < numElements; i++ {
			eToP[i] = i % numPartitions
		}

	default:
		return nil, fmt.Errorf("unsupported partition strategy %v", pb.Strategy)
	}

	return eToP, nil
}

// createPartitions builds partition structures from element assignments
func createPartitions(eToP, leaves []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:       i,
			Elements: make([]int, 0),
			Cells:    make([]int, 0),
		}
	}

	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].Cells = append(partitions[part].Cells, leaves[elem])
		partitions[part].NumElements++
	}

	return partitions
}

// calculateKpartMax finds maximum elements across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}
