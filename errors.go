package pacesim

import (
	"errors"
	"fmt"
)

// ErrBadSenderDesc is returned when a sender description has a non-positive size, count or rate
var ErrBadSenderDesc = errors.New("invalid sender description")

// ErrBadFlowCount is returned by Aggregate when the configured number of flows is not positive
var ErrBadFlowCount = errors.New("total flow count must be positive")

// ErrDuplicateFlow is returned by Aggregate when two records carry the same flow id
var ErrDuplicateFlow = errors.New("duplicate flow record")

// LifecycleMisuseError reports an operation attempted in a sender state that does not allow it
type LifecycleMisuseError struct {
	FlowID int
	Op     string
	State  SenderState
}

func (e *LifecycleMisuseError) Error() string {
	return fmt.Sprintf("flow %d: %s not permitted in state %s", e.FlowID, e.Op, e.State)
}

// DegenerateMeasurementError describes a flow record excluded from the aggregate sums
type DegenerateMeasurementError struct {
	FlowID  int
	RxBytes uint64
	Span    float64
}

func (e *DegenerateMeasurementError) Error() string {
	if e.RxBytes == 0 {
		return fmt.Sprintf("flow %d: no bytes received", e.FlowID)
	}
	return fmt.Sprintf("flow %d: non-positive measurement span %gs", e.FlowID, e.Span)
}

// TransportError wraps a failure of Connection.Send when the sender is configured to abort on it
type TransportError struct {
	FlowID int
	Seq    int
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("flow %d: send of unit %d failed: %v", e.FlowID, e.Seq, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
