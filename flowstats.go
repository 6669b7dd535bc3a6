package pacesim

// flowstats.go turns the raw per-flow counters gathered at the end of a run
// into per-flow throughput, the run's average throughput, and Jain's fairness
// index over the configured number of flows.

import (
	"fmt"
	"io"
	"math"

	"golang.org/x/exp/slices"
)

// FlowRecord holds the measurement of one flow, as reported after the run
type FlowRecord struct {
	FlowID  int     `json:"flowid" yaml:"flowid"`
	RxBytes uint64  `json:"rxbytes" yaml:"rxbytes"`
	FirstTx float64 `json:"firsttx" yaml:"firsttx"` // seconds, first unit transmitted
	LastRx  float64 `json:"lastrx" yaml:"lastrx"`   // seconds, last unit received
}

// Span is the measurement interval of the flow in seconds
func (fr FlowRecord) Span() float64 {
	return fr.LastRx - fr.FirstTx
}

// FlowThroughput is the derived result for one flow.  A flow whose measurement is
// degenerate is listed with Valid false, zero throughput, and the reason in Excluded
type FlowThroughput struct {
	FlowID     int                         `json:"flowid" yaml:"flowid"`
	Class      FlowClass                   `json:"class" yaml:"class"`
	Classified bool                        `json:"classified" yaml:"classified"`
	RxBytes    uint64                      `json:"rxbytes" yaml:"rxbytes"`
	Span       float64                     `json:"span" yaml:"span"`
	Kbps       float64                     `json:"kbps" yaml:"kbps"`
	Valid      bool                        `json:"valid" yaml:"valid"`
	Reason     string                      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Excluded   *DegenerateMeasurementError `json:"-" yaml:"-"`
}

// RunResult is the outcome of aggregating one run
type RunResult struct {
	Flows         []FlowThroughput `json:"flows" yaml:"flows"` // ordered by flow id
	TotalFlows    int              `json:"totalflows" yaml:"totalflows"`
	AvgThroughput float64          `json:"avgthroughput" yaml:"avgthroughput"` // kbps, sum over TotalFlows
	Fairness      float64          `json:"fairness" yaml:"fairness"`
	Valid         int              `json:"valid" yaml:"valid"`       // flows included in the sums
	Excluded      int              `json:"excluded" yaml:"excluded"` // degenerate flows left out of the sums
}

// ThroughputKbps computes rxBytes*8/span/1024.  It returns a DegenerateMeasurementError
// when nothing was received or the span is not positive
func ThroughputKbps(fr FlowRecord) (float64, error) {
	span := fr.Span()
	if fr.RxBytes == 0 || !(span > 0.0) {
		return 0.0, &DegenerateMeasurementError{FlowID: fr.FlowID, RxBytes: fr.RxBytes, Span: span}
	}
	return float64(fr.RxBytes) * 8.0 / span / 1024.0, nil
}

// throughputSums is the fold state over valid flows
type throughputSums struct {
	count int
	sum   float64
	sumSq float64
}

func (ts throughputSums) add(kbps float64) throughputSums {
	return throughputSums{count: ts.count + 1, sum: ts.sum + kbps, sumSq: ts.sumSq + kbps*kbps}
}

// average divides by the configured number of flows, not the number of valid
// ones, so a degenerate flow lowers the average
func (ts throughputSums) average(totalFlows int) float64 {
	return ts.sum / float64(totalFlows)
}

// fairness is Jain's index over totalFlows contenders; 0 when no flow contributed
func (ts throughputSums) fairness(totalFlows int) float64 {
	if ts.count == 0 || !(ts.sumSq > 0.0) {
		return 0.0
	}
	return (ts.sum * ts.sum) / (float64(totalFlows) * ts.sumSq)
}

// JainIndex computes Jain's fairness index of values over n contenders
func JainIndex(values []float64, n int) float64 {
	var ts throughputSums
	for _, v := range values {
		ts = ts.add(v)
	}
	return ts.fairness(n)
}

// Aggregate derives a RunResult from the records of one run.   totalFlowCount is
// the number of flows the scenario creates and is the divisor of both the average
// and the fairness index.   The records are not modified and their order does not
// matter.   table may be nil, in which case flows are reported unclassified
func Aggregate(records []FlowRecord, totalFlowCount int, table ClassTable) (*RunResult, error) {
	if totalFlowCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadFlowCount, totalFlowCount)
	}

	ordered := slices.Clone(records)
	slices.SortFunc(ordered, func(a, b FlowRecord) int { return a.FlowID - b.FlowID })
	for idx := 1; idx < len(ordered); idx++ {
		if ordered[idx].FlowID == ordered[idx-1].FlowID {
			return nil, fmt.Errorf("%w: flow %d", ErrDuplicateFlow, ordered[idx].FlowID)
		}
	}

	rr := &RunResult{Flows: make([]FlowThroughput, 0, len(ordered)), TotalFlows: totalFlowCount}
	var ts throughputSums
	for _, fr := range ordered {
		ft := FlowThroughput{FlowID: fr.FlowID, RxBytes: fr.RxBytes, Span: fr.Span()}
		ft.Class, ft.Classified = table.Lookup(fr.FlowID)

		kbps, err := ThroughputKbps(fr)
		if err != nil {
			ft.Excluded = err.(*DegenerateMeasurementError)
			ft.Reason = err.Error()
			rr.Excluded += 1
		} else {
			ft.Kbps = kbps
			ft.Valid = true
			ts = ts.add(kbps)
		}
		rr.Flows = append(rr.Flows, ft)
	}

	rr.Valid = ts.count
	rr.AvgThroughput = ts.average(totalFlowCount)
	rr.Fairness = ts.fairness(totalFlowCount)
	return rr, nil
}

// Flow returns the result for flowID, if present
func (rr *RunResult) Flow(flowID int) (FlowThroughput, bool) {
	idx, found := slices.BinarySearchFunc(rr.Flows, flowID, func(ft FlowThroughput, id int) int { return ft.FlowID - id })
	if !found {
		return FlowThroughput{}, false
	}
	return rr.Flows[idx], true
}

// Report writes the per-flow listing and the two run metrics.   Excluded flows
// are marked so they cannot be mistaken for flows that achieved zero throughput
func (rr *RunResult) Report(w io.Writer) error {
	for _, ft := range rr.Flows {
		if _, err := fmt.Fprintf(w, "flow %d\n", ft.FlowID); err != nil {
			return err
		}
		if ft.Classified {
			fmt.Fprintf(w, "  direction : %s\n  algorithm : %s\n", ft.Class.Direction, ft.Class.Algorithm)
		}
		if ft.Valid {
			fmt.Fprintf(w, "  throughput: %.3f Kbps\n", ft.Kbps)
		} else {
			fmt.Fprintf(w, "  throughput: EXCLUDED (%s)\n", ft.Reason)
		}
		fmt.Fprintf(w, "  received  : %d bytes\n  time      : %s s\n", ft.RxBytes, formatSpan(ft.Span))
	}
	_, err := fmt.Fprintf(w, "average throughput: %.3f Kbps over %d flows (%d excluded)\nfairness index: %.6f\n",
		rr.AvgThroughput, rr.TotalFlows, rr.Excluded, rr.Fairness)
	return err
}

func formatSpan(span float64) string {
	if math.IsInf(span, 0) || math.IsNaN(span) {
		return "undefined"
	}
	return fmt.Sprintf("%g", span)
}
