package pacesim

// desc.go holds the serializable description of an experiment: the flows,
// their pacing parameters, the payload sizes to sweep, and the testbed the
// flows cross.

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPayloadSizes are the payload sizes, in bytes, swept when a scenario names none
var DefaultPayloadSizes = []int{40, 44, 48, 52, 60, 552, 576, 628, 1420, 1500}

// LinkDesc describes a point-to-point link of the testbed
type LinkDesc struct {
	A         string  `json:"a" yaml:"a"`
	B         string  `json:"b" yaml:"b"`
	Bandwidth string  `json:"bandwidth" yaml:"bandwidth"` // e.g. "10Mbps"
	Latency   float64 `json:"latency" yaml:"latency"`     // seconds
}

// RouteDesc names the end nodes of the traffic classified with Direction
type RouteDesc struct {
	Direction string `json:"direction" yaml:"direction"`
	Src       string `json:"src" yaml:"src"`
	Dst       string `json:"dst" yaml:"dst"`
}

// ScenarioDesc holds everything needed to run one sweep
type ScenarioDesc struct {
	Name string `json:"name" yaml:"name"`

	// number of flows the scenario creates; divisor of the average and of the fairness index
	TotalFlows int `json:"totalflows" yaml:"totalflows"`

	PayloadSizes []int    `json:"payloadsizes" yaml:"payloadsizes"`
	TargetCount  int      `json:"targetcount" yaml:"targetcount"`
	TargetRate   string   `json:"targetrate" yaml:"targetrate"` // e.g. "100Mbps"
	Sink         Endpoint `json:"sink" yaml:"sink"`

	StartTime float64 `json:"starttime" yaml:"starttime"` // senders start
	StopTime  float64 `json:"stoptime" yaml:"stoptime"`   // senders stop
	SimStop   float64 `json:"simstop" yaml:"simstop"`     // clock halts

	// flow classification.  Explicit Classes take precedence; otherwise the
	// positional rule over Directions and Algorithms is applied
	Classes    []ClassDesc `json:"classes,omitempty" yaml:"classes,omitempty"`
	Directions []string    `json:"directions,omitempty" yaml:"directions,omitempty"`
	Algorithms []string    `json:"algorithms,omitempty" yaml:"algorithms,omitempty"`

	Links      []LinkDesc  `json:"links" yaml:"links"`
	Routes     []RouteDesc `json:"routes" yaml:"routes"`
	QueueLimit int         `json:"queuelimit" yaml:"queuelimit"` // bytes, 0 for unlimited
	LossRate   float64     `json:"lossrate" yaml:"lossrate"`
	Seed       string      `json:"seed" yaml:"seed"` // name of the random stream
}

// DefaultScenarioDesc returns the wired dumbbell: a 100Mbps access link on each
// side of a 10Mbps, 50ms bottleneck with a 6250 byte drop-tail queue, three
// algorithms in each direction, 100 units per sender at 100Mbps
func DefaultScenarioDesc() *ScenarioDesc {
	return &ScenarioDesc{
		Name:         "wired",
		TotalFlows:   6,
		PayloadSizes: DefaultPayloadSizes,
		TargetCount:  100,
		TargetRate:   "100Mbps",
		Sink:         Endpoint{Addr: "10.1.3.2", Port: 8080},
		StartTime:    1.0,
		StopTime:     10.0,
		SimStop:      15.0,
		Directions:   []string{"n2->n3", "n3->n2"},
		Algorithms:   []string{"Westwood", "Veno", "Vegas"},
		Links: []LinkDesc{
			{A: "n2", B: "r1", Bandwidth: "100Mbps", Latency: 0.020},
			{A: "r1", B: "r2", Bandwidth: "10Mbps", Latency: 0.050},
			{A: "r2", B: "n3", Bandwidth: "100Mbps", Latency: 0.020},
		},
		Routes: []RouteDesc{
			{Direction: "n2->n3", Src: "n2", Dst: "n3"},
			{Direction: "n3->n2", Src: "n3", Dst: "n2"},
		},
		QueueLimit: 6250,
		Seed:       "wired",
	}
}

// ClassTable returns the flow classification the scenario configures
func (sd *ScenarioDesc) ClassTable() (ClassTable, error) {
	if len(sd.Classes) > 0 {
		return ClassTableFromDescs(sd.Classes)
	}
	return PositionalClassTable(sd.TotalFlows, sd.Directions, sd.Algorithms)
}

// Sizes returns the payload sizes to sweep
func (sd *ScenarioDesc) Sizes() []int {
	if len(sd.PayloadSizes) == 0 {
		return DefaultPayloadSizes
	}
	return sd.PayloadSizes
}

// Validate checks the scalar parameters of the description
func (sd *ScenarioDesc) Validate() error {
	if sd.TotalFlows <= 0 {
		return fmt.Errorf("scenario %s: %w", sd.Name, ErrBadFlowCount)
	}
	if sd.TargetCount <= 0 {
		return fmt.Errorf("scenario %s: target count must be positive", sd.Name)
	}
	if _, err := ParseDataRate(sd.TargetRate); err != nil {
		return fmt.Errorf("scenario %s: %w", sd.Name, err)
	}
	if sd.StopTime < sd.StartTime {
		return fmt.Errorf("scenario %s: stop time %g precedes start time %g", sd.Name, sd.StopTime, sd.StartTime)
	}
	if !(sd.SimStop > sd.StartTime) {
		return fmt.Errorf("scenario %s: simulation stops at %g, before senders start at %g", sd.Name, sd.SimStop, sd.StartTime)
	}
	if sd.LossRate < 0.0 || sd.LossRate >= 1.0 {
		return fmt.Errorf("scenario %s: loss rate %g outside [0,1)", sd.Name, sd.LossRate)
	}
	for _, size := range sd.Sizes() {
		if size <= 0 {
			return fmt.Errorf("scenario %s: payload size %d", sd.Name, size)
		}
	}
	return nil
}

// WriteToFile stores the ScenarioDesc to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (sd *ScenarioDesc) WriteToFile(filename string) error {
	return writeDesc(filename, sd)
}

// ReadScenarioDesc deserializes a byte slice holding a representation of a ScenarioDesc.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.
func ReadScenarioDesc(filename string, useYAML bool, dict []byte) (*ScenarioDesc, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := ScenarioDesc{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &example, nil
}

// rateUnits are the data rate suffixes accepted by ParseDataRate, tried in order
var rateUnits = []struct {
	suffix string
	mult   float64
}{
	{"Gbps", 1e9}, {"Mbps", 1e6}, {"Kbps", 1e3}, {"kbps", 1e3}, {"bps", 1},
	{"GB/s", 8e9}, {"MB/s", 8e6}, {"KB/s", 8e3}, {"kB/s", 8e3}, {"B/s", 8},
}

// ParseDataRate converts a rate such as "100Mbps" or "1.5MB/s" into bits per second.
// A bare number is taken as bits per second
func ParseDataRate(rate string) (float64, error) {
	str := strings.TrimSpace(rate)
	mult := 1.0
	for _, unit := range rateUnits {
		if strings.HasSuffix(str, unit.suffix) {
			str = strings.TrimSpace(strings.TrimSuffix(str, unit.suffix))
			mult = unit.mult
			break
		}
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil || !(value > 0.0) {
		return 0.0, fmt.Errorf("invalid data rate %q", rate)
	}
	return value * mult, nil
}
