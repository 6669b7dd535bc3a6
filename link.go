package pacesim

// link.go holds a minimal stand-in for the network a run's traffic crosses:
// a FIFO link that serializes units at the route's bottleneck bandwidth,
// drops units that overflow its queue or lose a random draw, and delivers
// the rest after the route's propagation delay.   A FlowMonitor watches
// every unit and produces the FlowRecords of the run.

import (
	"errors"
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// ErrNotConnected is returned by SimConn.Send before Connect or after Close
var ErrNotConnected = errors.New("connection not established")

// FlowMonitor accumulates per-flow measurements
type FlowMonitor struct {
	stats map[int]*FlowRecord
	seen  map[int]bool // flows that have transmitted at least one unit
	drops map[int]int
}

// CreateFlowMonitor is a constructor
func CreateFlowMonitor() *FlowMonitor {
	return &FlowMonitor{stats: make(map[int]*FlowRecord), seen: make(map[int]bool), drops: make(map[int]int)}
}

func (fm *FlowMonitor) record(flowID int) *FlowRecord {
	fr, present := fm.stats[flowID]
	if !present {
		fr = &FlowRecord{FlowID: flowID}
		fm.stats[flowID] = fr
	}
	return fr
}

// NoteTx records the transmission of a unit of flowID at time now
func (fm *FlowMonitor) NoteTx(flowID int, now float64) {
	fr := fm.record(flowID)
	if !fm.seen[flowID] {
		fr.FirstTx = now
		fm.seen[flowID] = true
	}
}

// NoteRx records the arrival of bytes of flowID at time now
func (fm *FlowMonitor) NoteRx(flowID int, bytes int, now float64) {
	fr := fm.record(flowID)
	fr.RxBytes += uint64(bytes)
	fr.LastRx = now
}

// NoteDrop records a unit of flowID lost in the network
func (fm *FlowMonitor) NoteDrop(flowID int) {
	fm.record(flowID)
	fm.drops[flowID] += 1
}

// Drops returns the number of units of flowID lost in the network
func (fm *FlowMonitor) Drops(flowID int) int {
	return fm.drops[flowID]
}

// Records returns a copy of the per-flow measurements, ordered by flow id
func (fm *FlowMonitor) Records() []FlowRecord {
	frs := make([]FlowRecord, 0, len(fm.stats))
	for _, fr := range fm.stats {
		frs = append(frs, *fr)
	}
	slices.SortFunc(frs, func(a, b FlowRecord) int { return a.FlowID - b.FlowID })
	return frs
}

// Link is a FIFO queue in front of a transmitter, shared by every flow routed across it
type Link struct {
	name       string
	bndwdth    float64 // bits per second
	latency    float64 // seconds, propagation from the transmitter to the sink
	queueLimit int     // bytes waiting for the transmitter, 0 for unlimited
	lossRate   float64

	busyUntil float64 // time the transmitter finishes the last accepted unit
	sched     Scheduler
	mon       *FlowMonitor
	rngstrm   *rngstream.RngStream
	logger    *zap.Logger
}

// LinkParams configures a Link: the route it stands for, its queue and its loss
type LinkParams struct {
	Name       string
	Path       PathParams
	QueueLimit int
	LossRate   float64
	Seed       string
}

// CreateLink is a constructor
func CreateLink(lp LinkParams, sched Scheduler, mon *FlowMonitor, logger *zap.Logger) (*Link, error) {
	if !(lp.Path.Bandwidth > 0.0) || math.IsInf(lp.Path.Bandwidth, 1) {
		return nil, fmt.Errorf("link %s: bandwidth %g", lp.Name, lp.Path.Bandwidth)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	lnk := &Link{
		name:       lp.Name,
		bndwdth:    lp.Path.Bandwidth,
		latency:    lp.Path.Latency,
		queueLimit: lp.QueueLimit,
		lossRate:   lp.LossRate,
		sched:      sched,
		mon:        mon,
		logger:     logger.With(zap.String("link", lp.Name)),
	}
	if lp.LossRate > 0.0 {
		seed := lp.Seed
		if seed == "" {
			seed = lp.Name
		}
		lnk.rngstrm = rngstream.New(seed)
	}
	return lnk, nil
}

// serviceTime is the time the transmitter needs for a unit of bytes
func (lnk *Link) serviceTime(bytes int) float64 {
	return float64(bytes) * 8 / lnk.bndwdth
}

// backlog is the number of bytes accepted but not yet transmitted at time now
func (lnk *Link) backlog(now float64) int {
	if lnk.busyUntil <= now {
		return 0
	}
	return int(math.Ceil((lnk.busyUntil - now) * lnk.bndwdth / 8))
}

// transmit accepts a unit of flowID into the link, or drops it.  It reports whether the unit was accepted
func (lnk *Link) transmit(flowID int, bytes int) bool {
	now := lnk.sched.Now()
	lnk.mon.NoteTx(flowID, now)

	if lnk.queueLimit > 0 && lnk.backlog(now)+bytes > lnk.queueLimit {
		lnk.mon.NoteDrop(flowID)
		lnk.logger.Debug("queue overflow", zap.Int("flow", flowID), zap.Float64("time", now))
		return false
	}
	departs := math.Max(now, lnk.busyUntil) + lnk.serviceTime(bytes)
	lnk.busyUntil = departs

	// a lost unit still occupies the transmitter
	if lnk.rngstrm != nil && lnk.rngstrm.RandU01() < lnk.lossRate {
		lnk.mon.NoteDrop(flowID)
		return true
	}
	lnk.sched.ScheduleAfter(departs+lnk.latency-now, func() {
		lnk.mon.NoteRx(flowID, bytes, lnk.sched.Now())
	})
	return true
}

// SimConn is a Connection carrying one flow over a Link
type SimConn struct {
	flowID    int
	lnk       *Link
	bound     bool
	connected bool
	dst       Endpoint
}

// CreateSimConn is a constructor
func CreateSimConn(flowID int, lnk *Link) *SimConn {
	return &SimConn{flowID: flowID, lnk: lnk}
}

// Bind implements Connection
func (sc *SimConn) Bind() error {
	sc.bound = true
	return nil
}

// Connect implements Connection
func (sc *SimConn) Connect(dst Endpoint) error {
	if !sc.bound {
		return fmt.Errorf("flow %d: connect before bind", sc.flowID)
	}
	sc.dst = dst
	sc.connected = true
	return nil
}

// Send implements Connection.  A unit dropped at the queue is not an error
// of the connection; the sender learns nothing about it
func (sc *SimConn) Send(payload []byte) error {
	if !sc.connected {
		return ErrNotConnected
	}
	sc.lnk.transmit(sc.flowID, len(payload))
	return nil
}

// Close implements Connection
func (sc *SimConn) Close() error {
	sc.connected = false
	return nil
}
