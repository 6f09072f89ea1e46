package containers

import (
	"errors"
	"fmt"
)

var (
	// ErrTopologyInvariant is wrapped by every reinitialization failure caused
	// by a tree the coupling model cannot represent
	ErrTopologyInvariant = errors.New("topology invariant violation")

	// ErrIndexRange is wrapped by the panic value of out-of-range container
	// access
	ErrIndexRange = errors.New("container index out of range")
)

// Reasons carried by TopologyError
const (
	ReasonLevelJump      = "level jump"
	ReasonClassification = "face classification"
	ReasonUnlinked       = "unlinked neighbor"
)

// TopologyError pinpoints the cell face at which the tree broke the
// one-level-per-face contract
type TopologyError struct {
	Cell          int
	Face          int
	Level         int
	NeighborLevel int
	Reason        string
	Detail        string
}

func (e *TopologyError) Error() string {
	msg := fmt.Sprintf("%s at cell %d face %d (level %d, neighbor level %d)",
		e.Reason, e.Cell, e.Face, e.Level, e.NeighborLevel)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TopologyError) Unwrap() error { return ErrTopologyInvariant }

// IndexRangeError is the panic value of container accessors given an id
// outside [0, Count())
type IndexRangeError struct {
	Container string
	Index     int
	Count     int
}

func (e *IndexRangeError) Error() string {
	return fmt.Sprintf("%s index %d outside [0,%d)", e.Container, e.Index, e.Count)
}

func (e *IndexRangeError) Unwrap() error { return ErrIndexRange }

func checkIndex(container string, i, n int) {
	if i < 0 || i >= n {
		panic(&IndexRangeError{Container: container, Index: i, Count: n})
	}
}
