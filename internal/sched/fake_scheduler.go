package sched

import (
	"sync"
	"time"
)

// FakeEventScheduler is an EventScheduler that keeps its own notion of
// simulation time. Tests call AdvanceTo or Advance to move time forward and
// run due events deterministically.
type FakeEventScheduler struct {
	mu    sync.Mutex
	now   time.Time
	queue eventQueue

	cancels int
}

// NewFakeEventScheduler creates a new fake event scheduler starting at the given time.
func NewFakeEventScheduler(start time.Time) *FakeEventScheduler {
	return &FakeEventScheduler{
		now:   start,
		queue: newEventQueue("fake-ev"),
	}
}

// Now returns the current fake simulation time.
func (s *FakeEventScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule registers a callback to run at the specified simulation time.
func (s *FakeEventScheduler) Schedule(at time.Time, f func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.push(at, f)
}

// ScheduleAfter registers a callback to run d after the current fake time.
func (s *FakeEventScheduler) ScheduleAfter(d time.Duration, f func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.push(s.now.Add(d), f)
}

// Cancel cancels a pending event.
func (s *FakeEventScheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.queue.cancel(id)
	if ok {
		s.cancels++
	}
	return ok
}

// Cancellations returns how many Cancel calls hit a pending event.
func (s *FakeEventScheduler) Cancellations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// Pending returns the number of outstanding events.
func (s *FakeEventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.pending()
}

// NextAt returns the time of the earliest outstanding event.
func (s *FakeEventScheduler) NextAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

// RunDue executes all events whose scheduled time is <= now.
func (s *FakeEventScheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.queue.popDue(s.now)
		s.mu.Unlock()
		if ev == nil {
			return
		}
		if ev.f != nil {
			ev.f()
		}
	}
}

// AdvanceTo sets the fake simulation time to t and executes all due events.
// Time is kept monotonic: earlier times are ignored.
//
// Events are run in time order with Now() reporting each event's own time
// while it runs, so callbacks that reschedule relative to Now() see the time
// they were due rather than t.
func (s *FakeEventScheduler) AdvanceTo(t time.Time) {
	for {
		s.mu.Lock()
		if t.Before(s.now) {
			s.mu.Unlock()
			return
		}
		next, ok := s.nextLocked()
		if !ok || next.After(t) {
			s.now = t
			s.mu.Unlock()
			s.RunDue()
			return
		}
		if next.After(s.now) {
			s.now = next
		}
		s.mu.Unlock()
		s.RunDue()
	}
}

// Advance moves fake time forward by d. See AdvanceTo.
func (s *FakeEventScheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.Now().Add(d))
}

func (s *FakeEventScheduler) nextLocked() (time.Time, bool) {
	for _, ev := range s.queue.events {
		if !ev.cancelled {
			return ev.when, true
		}
	}
	return time.Time{}, false
}
