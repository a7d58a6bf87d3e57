// Package sched provides the discrete-event scheduler that drives beacon
// generation and frame delivery in simulation time.
package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/cam-beaconing/timectrl"
)

// EventScheduler schedules callbacks to run at specific simulation times
// based on a SimClock implementation.
//
// The simulation loop advances time through the time controller and calls
// RunDue after each advance. Callbacks run one at a time on the goroutine
// calling RunDue, so code driven only by the scheduler needs no locking of
// its own.
type EventScheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque event ID that can be used to cancel the event.
	Schedule(at time.Time, f func()) (id string)

	// ScheduleAfter registers f to run d after Now().
	ScheduleAfter(d time.Duration, f func()) (id string)

	// Cancel cancels a previously scheduled event. It reports whether a
	// pending event was cancelled; unknown or already-run IDs return false.
	Cancel(id string) bool

	// Now returns the current simulation time.
	Now() time.Time

	// RunDue executes all events whose scheduled time is <= Now(), including
	// events scheduled by callbacks while RunDue is running.
	RunDue()

	// Pending returns the number of scheduled, not yet run, not cancelled events.
	Pending() int
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// eventQueue is a time-ordered queue of events. Events with equal times keep
// their insertion order. It is not safe for concurrent use on its own.
type eventQueue struct {
	prefix  string
	counter uint64
	events  []*scheduledEvent // earliest first
	index   map[string]*scheduledEvent
}

func newEventQueue(prefix string) eventQueue {
	return eventQueue{prefix: prefix, index: make(map[string]*scheduledEvent)}
}

func (q *eventQueue) push(at time.Time, f func()) string {
	q.counter++
	ev := &scheduledEvent{
		id:   fmt.Sprintf("%s-%d", q.prefix, q.counter),
		when: at,
		f:    f,
	}

	idx := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].when.After(at)
	})
	q.events = append(q.events, nil)
	copy(q.events[idx+1:], q.events[idx:])
	q.events[idx] = ev

	q.index[ev.id] = ev
	return ev.id
}

func (q *eventQueue) cancel(id string) bool {
	ev, ok := q.index[id]
	if !ok {
		return false
	}
	// Removal from the slice is lazy; popDue skips cancelled events.
	ev.cancelled = true
	delete(q.index, id)
	return true
}

// popDue removes and returns the earliest non-cancelled event due at now.
func (q *eventQueue) popDue(now time.Time) *scheduledEvent {
	for len(q.events) > 0 {
		ev := q.events[0]
		if ev.cancelled {
			q.events = q.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		q.events = q.events[1:]
		delete(q.index, ev.id)
		return ev
	}
	return nil
}

func (q *eventQueue) pending() int {
	return len(q.index)
}

// eventScheduler is the EventScheduler used in normal runs; time comes from
// the SimClock it was built with.
type eventScheduler struct {
	clock timectrl.SimClock

	mu    sync.Mutex
	queue eventQueue
}

// NewEventScheduler creates a new event scheduler backed by the given SimClock,
// usually the TimeController of the run.
func NewEventScheduler(clock timectrl.SimClock) EventScheduler {
	return &eventScheduler{
		clock: clock,
		queue: newEventQueue("ev"),
	}
}

func (s *eventScheduler) Schedule(at time.Time, f func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.push(at, f)
}

func (s *eventScheduler) ScheduleAfter(d time.Duration, f func()) string {
	return s.Schedule(s.clock.Now().Add(d), f)
}

func (s *eventScheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.cancel(id)
}

func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.pending()
}

func (s *eventScheduler) RunDue() {
	for {
		now := s.clock.Now()
		s.mu.Lock()
		ev := s.queue.popDue(now)
		s.mu.Unlock()
		if ev == nil {
			return
		}
		// Run outside the lock so callbacks can schedule and cancel.
		if ev.f != nil {
			ev.f()
		}
	}
}
