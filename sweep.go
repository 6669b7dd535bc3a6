package pacesim

// sweep.go assembles runs from a ScenarioDesc: one PacedSender per classified
// flow, each carried over the link of its direction's route, the clock run to
// the scenario's stop time, and the FlowMonitor's records aggregated.   A sweep
// repeats this for each payload size.

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RunOptions carries the collaborators of a run that are not part of its description
type RunOptions struct {
	Logger *zap.Logger
	Trace  *TraceManager
}

func (ro RunOptions) logger() *zap.Logger {
	if ro.Logger == nil {
		return zap.NewNop()
	}
	return ro.Logger
}

// RunOutput is everything one run produces
type RunOutput struct {
	PayloadSize int          `json:"payloadsize" yaml:"payloadsize"`
	Result      *RunResult   `json:"result" yaml:"result"`
	Records     []FlowRecord `json:"records" yaml:"records"`
	Sent        map[int]int  `json:"sent" yaml:"sent"`   // units submitted, by flow
	Drops       map[int]int  `json:"drops" yaml:"drops"` // units lost in the network, by flow
}

// RunScenario runs the scenario once with every sender using payloadSize
func RunScenario(sd *ScenarioDesc, payloadSize int, opts RunOptions) (*RunOutput, error) {
	if err := sd.Validate(); err != nil {
		return nil, err
	}
	table, err := sd.ClassTable()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sd.Name, err)
	}
	rate, _ := ParseDataRate(sd.TargetRate)
	logger := opts.logger().With(zap.String("scenario", sd.Name), zap.Int("payload", payloadSize))

	topo, err := BuildTopology(sd.Links)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sd.Name, err)
	}

	sched := CreateEvtScheduler(nil)
	mon := CreateFlowMonitor()

	// one link per direction
	lnkByDir := make(map[string]*Link)
	for _, rd := range sd.Routes {
		pp, err := topo.Route(rd.Src, rd.Dst)
		if err != nil {
			return nil, fmt.Errorf("scenario %s, direction %s: %w", sd.Name, rd.Direction, err)
		}
		lp := LinkParams{Name: rd.Direction, Path: pp, QueueLimit: sd.QueueLimit, LossRate: sd.LossRate, Seed: sd.Seed + "/" + rd.Direction}
		lnk, err := CreateLink(lp, sched, mon, logger)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sd.Name, err)
		}
		lnkByDir[rd.Direction] = lnk
	}

	senders := make([]*PacedSender, 0, len(table))
	for _, flowID := range table.FlowIDs() {
		fc := table[flowID]
		lnk, present := lnkByDir[fc.Direction]
		if !present {
			return nil, fmt.Errorf("scenario %s: flow %d has direction %q with no route", sd.Name, flowID, fc.Direction)
		}
		desc := SenderDesc{FlowID: flowID, PayloadSize: payloadSize, TargetCount: sd.TargetCount, TargetRate: rate, Dst: sd.Sink}
		snd, err := CreatePacedSender(desc, CreateSimConn(flowID, lnk), sched,
			WithLogger(logger.With(zap.String("algorithm", fc.Algorithm))), WithTrace(opts.Trace))
		if err != nil {
			return nil, err
		}
		senders = append(senders, snd)

		sched.ScheduleAfter(sd.StartTime, func() {
			if err := snd.Start(); err != nil {
				logger.Warn("sender failed to start", zap.Int("flow", snd.Desc().FlowID), zap.Error(err))
			}
		})
		sched.ScheduleAfter(sd.StopTime, func() {
			snd.Stop()
		})
	}

	sched.Run(sd.SimStop)

	// the clock may halt before the scheduled stops
	for _, snd := range senders {
		snd.Stop()
	}

	out := &RunOutput{PayloadSize: payloadSize, Records: mon.Records(), Sent: make(map[int]int), Drops: make(map[int]int)}
	for _, snd := range senders {
		flowID := snd.Desc().FlowID
		out.Sent[flowID] = snd.SentCount()
		out.Drops[flowID] = mon.Drops(flowID)
	}

	out.Result, err = Aggregate(out.Records, sd.TotalFlows, table)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sd.Name, err)
	}
	for _, ft := range out.Result.Flows {
		if !ft.Valid {
			logger.Warn("flow excluded from run metrics", zap.Int("flow", ft.FlowID), zap.Error(ft.Excluded))
		}
	}
	logger.Info("run complete",
		zap.Float64("avgKbps", out.Result.AvgThroughput),
		zap.Float64("fairness", out.Result.Fairness),
		zap.Int("excluded", out.Result.Excluded))
	return out, nil
}

// SweepSummary condenses the run metrics across the payload sizes of a sweep
type SweepSummary struct {
	MeanThroughput float64 `json:"meanthroughput" yaml:"meanthroughput"`
	StdThroughput  float64 `json:"stdthroughput" yaml:"stdthroughput"`
	MeanFairness   float64 `json:"meanfairness" yaml:"meanfairness"`
	StdFairness    float64 `json:"stdfairness" yaml:"stdfairness"`
	BestPayload    int     `json:"bestpayload" yaml:"bestpayload"` // payload size with the highest average throughput
}

// SweepResult holds one RunOutput per payload size, in sweep order
type SweepResult struct {
	Scenario string       `json:"scenario" yaml:"scenario"`
	Runs     []*RunOutput `json:"runs" yaml:"runs"`
	Summary  SweepSummary `json:"summary" yaml:"summary"`
}

// Sweep runs the scenario for every payload size it names
func Sweep(sd *ScenarioDesc, opts RunOptions) (*SweepResult, error) {
	sr := &SweepResult{Scenario: sd.Name}
	for _, size := range sd.Sizes() {
		out, err := RunScenario(sd, size, opts)
		if err != nil {
			return nil, err
		}
		sr.Runs = append(sr.Runs, out)
	}
	sr.Summary = summarize(sr.Runs)
	return sr, nil
}

func summarize(runs []*RunOutput) SweepSummary {
	var ss SweepSummary
	if len(runs) == 0 {
		return ss
	}
	thrpt := make([]float64, len(runs))
	fair := make([]float64, len(runs))
	for idx, out := range runs {
		thrpt[idx] = out.Result.AvgThroughput
		fair[idx] = out.Result.Fairness
	}
	ss.MeanThroughput, ss.StdThroughput = stat.MeanStdDev(thrpt, nil)
	ss.MeanFairness, ss.StdFairness = stat.MeanStdDev(fair, nil)
	if len(runs) == 1 {
		ss.StdThroughput, ss.StdFairness = 0.0, 0.0
	}
	ss.BestPayload = runs[floats.MaxIdx(thrpt)].PayloadSize
	return ss
}

// WriteToFile stores the SweepResult as yaml or json, by the extension of filename
func (sr *SweepResult) WriteToFile(filename string) error {
	return writeDesc(filename, sr)
}
