package pacesim

// scheduler.go holds the one-shot delayed callback abstraction the
// senders and the testbed link run on, and its implementation over
// the evtm event manager.  Callbacks execute one at a time in virtual
// time order; a callback is never concurrent with any other.

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// Token identifies a scheduled callback so that it can be cancelled.
// The zero Token refers to no callback.
type Token struct {
	id  int
	set bool
}

// Valid reports whether the token refers to a scheduled callback
func (tkn Token) Valid() bool {
	return tkn.set
}

// NoToken is the sentinel for 'nothing pending'
var NoToken = Token{}

// Scheduler is the capability a PacedSender consumes to re-arm itself.
type Scheduler interface {
	// ScheduleAfter arranges for fn to be called delay seconds of virtual time from now
	ScheduleAfter(delay float64, fn func()) Token

	// Cancel suppresses a callback that has not yet fired.  It returns
	// false if the callback already ran, was already cancelled, or tkn is not valid
	Cancel(tkn Token) bool

	// Now is the current virtual time, in seconds
	Now() float64
}

// EvtScheduler implements Scheduler on an evtm.EventManager
type EvtScheduler struct {
	evtMgr *evtm.EventManager

	// pending holds the ids of events scheduled through this scheduler that
	// have neither fired nor been cancelled
	pending map[int]bool
}

// CreateEvtScheduler is a constructor.  If evtMgr is nil a new event manager is created
func CreateEvtScheduler(evtMgr *evtm.EventManager) *EvtScheduler {
	if evtMgr == nil {
		evtMgr = evtm.New()
	}
	es := new(EvtScheduler)
	es.evtMgr = evtMgr
	es.pending = make(map[int]bool)
	return es
}

// EventManager exposes the underlying event manager, e.g. to share it with other models
func (es *EvtScheduler) EventManager() *evtm.EventManager {
	return es.evtMgr
}

// scheduledCall carries a callback through the event list
type scheduledCall struct {
	es *EvtScheduler
	fn func()
	id int
}

// fireCallback is the evtm event handler for every callback scheduled by an EvtScheduler
func fireCallback(evtMgr *evtm.EventManager, context any, data any) any {
	call := context.(*scheduledCall)

	if !call.es.pending[call.id] {
		return nil
	}
	delete(call.es.pending, call.id)
	call.fn()
	return nil
}

// ScheduleAfter implements Scheduler
func (es *EvtScheduler) ScheduleAfter(delay float64, fn func()) Token {
	if delay < 0.0 {
		delay = 0.0
	}
	call := &scheduledCall{es: es, fn: fn}
	id, _ := es.evtMgr.Schedule(call, nil, fireCallback, vrtime.SecondsToTime(delay))
	call.id = id
	es.pending[id] = true
	return Token{id: id, set: true}
}

// Cancel implements Scheduler
func (es *EvtScheduler) Cancel(tkn Token) bool {
	if !tkn.set || !es.pending[tkn.id] {
		return false
	}
	// the event stays in the manager's list and is dropped by fireCallback on delivery
	delete(es.pending, tkn.id)
	return true
}

// Now implements Scheduler
func (es *EvtScheduler) Now() float64 {
	return es.evtMgr.CurrentSeconds()
}

// Pending is the number of callbacks scheduled through es that have not yet fired
func (es *EvtScheduler) Pending() int {
	return len(es.pending)
}

// Run executes events until the event list empties or virtual time passes limit seconds
func (es *EvtScheduler) Run(limit float64) {
	es.evtMgr.Run(limit)
}
