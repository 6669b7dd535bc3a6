package pacesim

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// FlowClass labels a flow with the direction it travels and the congestion
// control algorithm of its source
type FlowClass struct {
	Direction string `json:"direction" yaml:"direction"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

// ClassTable maps flow ids to their classification.  It is configuration,
// supplied by whoever knows how the scenario numbers its flows
type ClassTable map[int]FlowClass

// ClassDesc is the serializable form of one ClassTable entry
type ClassDesc struct {
	FlowID    int    `json:"flowid" yaml:"flowid"`
	Direction string `json:"direction" yaml:"direction"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

// Lookup returns the class of flowID, and false if the table does not know it
func (ct ClassTable) Lookup(flowID int) (FlowClass, bool) {
	fc, present := ct[flowID]
	return fc, present
}

// FlowIDs returns the ids in the table in increasing order
func (ct ClassTable) FlowIDs() []int {
	ids := make([]int, 0, len(ct))
	for flowID := range ct {
		ids = append(ids, flowID)
	}
	slices.Sort(ids)
	return ids
}

// Descs flattens the table into a list ordered by flow id
func (ct ClassTable) Descs() []ClassDesc {
	cds := make([]ClassDesc, 0, len(ct))
	for _, flowID := range ct.FlowIDs() {
		fc := ct[flowID]
		cds = append(cds, ClassDesc{FlowID: flowID, Direction: fc.Direction, Algorithm: fc.Algorithm})
	}
	return cds
}

// ClassTableFromDescs builds a table from its serialized entries, rejecting repeated ids
func ClassTableFromDescs(cds []ClassDesc) (ClassTable, error) {
	ct := make(ClassTable)
	for _, cd := range cds {
		if _, present := ct[cd.FlowID]; present {
			return nil, fmt.Errorf("flow %d classified twice", cd.FlowID)
		}
		ct[cd.FlowID] = FlowClass{Direction: cd.Direction, Algorithm: cd.Algorithm}
	}
	return ct, nil
}

// PositionalClassTable numbers flows 1..total and splits them into contiguous
// equal blocks, once by direction and once by algorithm.   With total 6, two
// directions and three algorithms, flows 1-3 and 4-6 share a direction and
// the pairs {1,2}, {3,4}, {5,6} share an algorithm
func PositionalClassTable(total int, directions, algorithms []string) (ClassTable, error) {
	if total <= 0 {
		return nil, ErrBadFlowCount
	}
	if len(directions) == 0 || total%len(directions) != 0 {
		return nil, fmt.Errorf("%d flows cannot be split evenly across %d directions", total, len(directions))
	}
	if len(algorithms) == 0 || total%len(algorithms) != 0 {
		return nil, fmt.Errorf("%d flows cannot be split evenly across %d algorithms", total, len(algorithms))
	}
	perDir := total / len(directions)
	perAlg := total / len(algorithms)

	ct := make(ClassTable, total)
	for idx := 0; idx < total; idx++ {
		ct[idx+1] = FlowClass{Direction: directions[idx/perDir], Algorithm: algorithms[idx/perAlg]}
	}
	return ct, nil
}
