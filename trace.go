package pacesim

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/iti/evt/vrtime"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// SenderTrace saves information about one lifecycle step or emission of a sender,
// for post-run analysis
type SenderTrace struct {
	Time      float64 `json:"time" yaml:"time"`   // virtual time in seconds
	Ticks     int64   `json:"ticks" yaml:"ticks"` // ticks variable of time
	FlowID    int     `json:"flowid" yaml:"flowid"`
	Op        string  `json:"op" yaml:"op"` // "start", "emit", "stop", "suppressed"
	SentCount int     `json:"sentcount" yaml:"sentcount"`
}

// TraceManager gathers sender traces for an experiment.   By testing the InUse
// flag callers can embed trace calls everywhere and inhibit the gathering when
// it is not wanted
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// trace records, indexed by flow id
	Traces map[int][]SenderTrace `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.Traces = make(map[int][]SenderTrace)
	return tm
}

// Active tells the caller whether the trace manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddSenderTrace creates a record of a sender event and stores it
func AddSenderTrace(tm *TraceManager, secs float64, flowID int, op string, sentCount int) {
	if !tm.InUse {
		return
	}
	vrt := vrtime.SecondsToTime(secs)
	str := SenderTrace{Time: vrt.Seconds(), Ticks: vrt.Ticks(), FlowID: flowID, Op: op, SentCount: sentCount}
	tm.Traces[flowID] = append(tm.Traces[flowID], str)
}

// FlowIDs lists, in increasing order, the flows that have traces
func (tm *TraceManager) FlowIDs() []int {
	ids := make([]int, 0, len(tm.Traces))
	for flowID := range tm.Traces {
		ids = append(ids, flowID)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of traces of flow flowID whose op is op
func (tm *TraceManager) Count(flowID int, op string) int {
	cnt := 0
	for _, str := range tm.Traces[flowID] {
		if str.Op == op {
			cnt += 1
		}
	}
	return cnt
}

// WriteToFile stores the TraceManager to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) error {
	if !tm.InUse {
		return nil
	}
	return writeDesc(filename, tm)
}

// writeDesc serializes v to filename as yaml or json, chosen by the extension
func writeDesc(filename string, v any) error {
	var bytes []byte
	var err error

	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		bytes, err = yaml.Marshal(v)
	case ".json", ".JSON":
		bytes, err = json.MarshalIndent(v, "", "\t")
	default:
		return fmt.Errorf("%s: unrecognized extension, want .yaml, .yml or .json", filename)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0o644)
}
