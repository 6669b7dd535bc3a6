package pacesim

// sender.go holds the PacedSender, an application that pushes fixed-size
// payloads into a connection at the rate implied by its payload size and
// a target bit rate.   Each emission schedules the next one, so a sender
// needs no external poller and a stopped sender leaves no timer behind.

import (
	"fmt"

	"go.uber.org/zap"
)

// Endpoint is a transport address and port
type Endpoint struct {
	Addr string `json:"addr" yaml:"addr"`
	Port int    `json:"port" yaml:"port"`
}

func (ep Endpoint) String() string {
	return fmt.Sprintf("%s:%d", ep.Addr, ep.Port)
}

// Connection is the connection-oriented transport handle a sender owns while active.
// Send is non-blocking: it accepts or queues the payload and returns.
type Connection interface {
	Bind() error
	Connect(dst Endpoint) error
	Send(payload []byte) error
	Close() error
}

// SendErrPolicy selects what a sender does when Connection.Send fails
type SendErrPolicy int

const (
	// ContinueOnSendErr counts the failed unit as sent and keeps pacing
	ContinueOnSendErr SendErrPolicy = iota

	// AbortOnSendErr stops the sender and records a TransportError
	AbortOnSendErr
)

// SenderState is the lifecycle state of a PacedSender
type SenderState int

const (
	SenderIdle SenderState = iota
	SenderActive
	SenderStopped
)

var senderStateToStr = map[SenderState]string{SenderIdle: "idle", SenderActive: "active", SenderStopped: "stopped"}

func (st SenderState) String() string {
	str, present := senderStateToStr[st]
	if !present {
		return fmt.Sprintf("state(%d)", int(st))
	}
	return str
}

// SenderDesc holds the configuration of one PacedSender
type SenderDesc struct {
	FlowID      int           `json:"flowid" yaml:"flowid"`
	PayloadSize int           `json:"payloadsize" yaml:"payloadsize"` // bytes per unit
	TargetCount int           `json:"targetcount" yaml:"targetcount"` // units to emit before self-terminating
	TargetRate  float64       `json:"targetrate" yaml:"targetrate"`   // bits per second
	Dst         Endpoint      `json:"dst" yaml:"dst"`
	OnSendErr   SendErrPolicy `json:"onsenderr" yaml:"onsenderr"`
}

// Validate checks that size, count and rate are all positive
func (sd SenderDesc) Validate() error {
	if sd.PayloadSize <= 0 {
		return fmt.Errorf("%w: payload size %d", ErrBadSenderDesc, sd.PayloadSize)
	}
	if sd.TargetCount <= 0 {
		return fmt.Errorf("%w: target count %d", ErrBadSenderDesc, sd.TargetCount)
	}
	if !(sd.TargetRate > 0.0) {
		return fmt.Errorf("%w: target rate %g", ErrBadSenderDesc, sd.TargetRate)
	}
	return nil
}

// PacingInterval is the delay, in seconds, between emissions of payloadSize
// bytes at targetRate bits per second
func PacingInterval(payloadSize int, targetRate float64) float64 {
	return float64(payloadSize) * 8 / targetRate
}

// PacedSender emits desc.TargetCount payloads through conn, one every
// PacingInterval seconds, starting at the moment Start is called
type PacedSender struct {
	desc    SenderDesc
	conn    Connection
	sched   Scheduler
	payload []byte

	state      SenderState
	sentCount  int
	pending    Token // the single scheduled emission, or NoToken
	suppressed int   // emissions that fired after the sender left the active state
	err        error

	logger *zap.Logger
	trace  *TraceManager
}

// SenderOption customizes a PacedSender at construction
type SenderOption func(*PacedSender)

// WithLogger routes the sender's diagnostics to logger
func WithLogger(logger *zap.Logger) SenderOption {
	return func(ps *PacedSender) {
		if logger != nil {
			ps.logger = logger
		}
	}
}

// WithTrace records the sender's lifecycle and emissions in tm
func WithTrace(tm *TraceManager) SenderOption {
	return func(ps *PacedSender) {
		ps.trace = tm
	}
}

// CreatePacedSender is a constructor.  The sender starts out idle
func CreatePacedSender(desc SenderDesc, conn Connection, sched Scheduler, opts ...SenderOption) (*PacedSender, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if conn == nil || sched == nil {
		return nil, fmt.Errorf("%w: connection and scheduler are required", ErrBadSenderDesc)
	}
	ps := &PacedSender{
		desc:    desc,
		conn:    conn,
		sched:   sched,
		payload: make([]byte, desc.PayloadSize),
		state:   SenderIdle,
		pending: NoToken,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ps)
	}
	ps.logger = ps.logger.With(zap.Int("flow", desc.FlowID))
	return ps, nil
}

// Desc returns the sender's configuration
func (ps *PacedSender) Desc() SenderDesc {
	return ps.desc
}

// State returns the lifecycle state
func (ps *PacedSender) State() SenderState {
	return ps.state
}

// SentCount is the number of units submitted to the connection since Start
func (ps *PacedSender) SentCount() int {
	return ps.sentCount
}

// HasPending reports whether an emission is scheduled
func (ps *PacedSender) HasPending() bool {
	return ps.pending.Valid()
}

// Suppressed counts scheduled emissions that were dropped because the sender was no longer active
func (ps *PacedSender) Suppressed() int {
	return ps.suppressed
}

// Err returns the TransportError that aborted the sender, if any
func (ps *PacedSender) Err() error {
	return ps.err
}

// Start binds and connects the connection and emits the first unit immediately
func (ps *PacedSender) Start() error {
	if ps.state != SenderIdle {
		return &LifecycleMisuseError{FlowID: ps.desc.FlowID, Op: "start", State: ps.state}
	}
	if err := ps.conn.Bind(); err != nil {
		return fmt.Errorf("flow %d: bind: %w", ps.desc.FlowID, err)
	}
	if err := ps.conn.Connect(ps.desc.Dst); err != nil {
		return fmt.Errorf("flow %d: connect to %s: %w", ps.desc.FlowID, ps.desc.Dst, err)
	}

	ps.state = SenderActive
	ps.sentCount = 0
	ps.traceOp("start")
	ps.logger.Debug("sender started",
		zap.Stringer("dst", ps.desc.Dst),
		zap.Int("payload", ps.desc.PayloadSize),
		zap.Float64("interval", PacingInterval(ps.desc.PayloadSize, ps.desc.TargetRate)))

	return ps.emit()
}

// emitEvent is the scheduled callback.  The pending token has been consumed by the
// time it runs; if the sender has left the active state the call does nothing.
func (ps *PacedSender) emitEvent() {
	ps.pending = NoToken
	if ps.state != SenderActive {
		ps.suppressed += 1
		ps.traceOp("suppressed")
		return
	}
	ps.emit()
}

// emit submits one payload and, while fewer than TargetCount units have gone out,
// schedules the next emission
func (ps *PacedSender) emit() error {
	if ps.state != SenderActive {
		return &LifecycleMisuseError{FlowID: ps.desc.FlowID, Op: "emit", State: ps.state}
	}

	sendErr := ps.conn.Send(ps.payload)
	ps.sentCount += 1
	ps.traceOp("emit")

	if sendErr != nil {
		if ps.desc.OnSendErr == AbortOnSendErr {
			ps.err = &TransportError{FlowID: ps.desc.FlowID, Seq: ps.sentCount, Err: sendErr}
			ps.logger.Warn("send failed, stopping sender", zap.Int("seq", ps.sentCount), zap.Error(sendErr))
			ps.Stop()
			return ps.err
		}
		ps.logger.Debug("send failed", zap.Int("seq", ps.sentCount), zap.Error(sendErr))
	}

	if ps.sentCount < ps.desc.TargetCount {
		ps.pending = ps.sched.ScheduleAfter(PacingInterval(ps.desc.PayloadSize, ps.desc.TargetRate), ps.emitEvent)
	} else {
		ps.logger.Debug("target count reached", zap.Int("sent", ps.sentCount))
	}
	return nil
}

// Stop cancels any pending emission and closes the connection.  Once Stop
// returns no further unit is sent.  Stopping a stopped sender does nothing
func (ps *PacedSender) Stop() error {
	if ps.state == SenderStopped {
		return nil
	}
	wasActive := ps.state == SenderActive
	ps.state = SenderStopped

	if ps.pending.Valid() {
		ps.sched.Cancel(ps.pending)
		ps.pending = NoToken
	}
	if !wasActive {
		return nil
	}

	ps.traceOp("stop")
	ps.logger.Debug("sender stopped", zap.Int("sent", ps.sentCount))
	if err := ps.conn.Close(); err != nil {
		return fmt.Errorf("flow %d: close: %w", ps.desc.FlowID, err)
	}
	return nil
}

func (ps *PacedSender) traceOp(op string) {
	if ps.trace == nil || !ps.trace.Active() {
		return
	}
	AddSenderTrace(ps.trace, ps.sched.Now(), ps.desc.FlowID, op, ps.sentCount)
}
