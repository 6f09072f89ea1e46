package partitions

import (
	"errors"
	"fmt"
)

// ErrDistributedConsistency is wrapped by every failure of the partitions to
// agree on their shared coupling surfaces
var ErrDistributedConsistency = errors.New("distributed consistency violation")

// ConsistencyError reports the pair of partitions that disagreed. Err holds
// the transport failure, typically a context deadline, when the neighbor
// never answered.
type ConsistencyError struct {
	Rank        int
	Remote      int
	Kind        string // "interface", "mortar" or "exchange"
	Local       int
	RemoteCount int
	Err         error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partition %d: %s rendezvous with partition %d failed: %v",
			e.Rank, e.Kind, e.Remote, e.Err)
	}
	return fmt.Sprintf("partition %d: %s count %d disagrees with %d reported by partition %d",
		e.Rank, e.Kind, e.Local, e.RemoteCount, e.Remote)
}

func (e *ConsistencyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDistributedConsistency, e.Err}
	}
	return []error{ErrDistributedConsistency}
}
