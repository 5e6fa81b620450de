package sched

import (
	"reflect"
	"sync"
	"time"
)

// Callback is a deferred invocation. Callbacks run synchronously inside
// Flush, on the goroutine that called it.
type Callback func(arg any)

// maxFiresPerKey bounds how often the same (callback, argument) pair may
// fire within a single Flush call. A callback that perpetually re-arms
// itself at or before the current time gets one extra pass, then waits for
// the next Flush.
const maxFiresPerKey = 2

// timerKey identifies a pending timer for replace/cancel purposes.
//
// Identity is the callback's code pointer plus the argument value, so a
// given function re-armed for the same argument replaces its earlier
// registration. The argument must be comparable (the daemons pass item
// pointers). Closures created from the same literal share a code pointer;
// distinguish instances through the argument, not through captures.
type timerKey struct {
	fn  uintptr
	arg any
}

// timer is one pending deferred invocation.
type timer struct {
	due time.Time
	fn  Callback
	arg any
	key timerKey
	seq uint64
}

// Scheduler is a min-ordered set of deferred callbacks keyed by absolute
// fire time.
//
// It does not run its own goroutine: the owning event loop calls Flush
// periodically and uses WaitTime as its poll timeout, so bus I/O and timers
// are serviced by a single blocking wait. All methods are safe for
// concurrent use; callbacks may schedule and cancel freely.
type Scheduler struct {
	mu     sync.Mutex
	timers []*timer
	seq    uint64

	// now is replaceable for tests.
	now func() time.Time
}

// New creates an empty scheduler using the wall clock.
func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// SetClock replaces the scheduler's time source. Intended for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Schedule registers fn(arg) to run once after delay.
//
// Scheduling the same (callback, argument) pair again before it fires
// cancels the previous occurrence: at most one firing is ever pending per
// pair. A nil callback is a programming error and panics.
func (s *Scheduler) Schedule(delay time.Duration, fn Callback, arg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(s.now().Add(delay), fn, arg)
}

// ScheduleAt registers fn(arg) to run once at the absolute time at, with
// the same replace semantics as Schedule.
func (s *Scheduler) ScheduleAt(at time.Time, fn Callback, arg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(at, fn, arg)
}

// Repeat registers fn(arg) to run once after interval. There is no
// built-in recurring timer: periodic behaviour is the callback's own
// responsibility, by re-arming itself when it runs.
func (s *Scheduler) Repeat(interval time.Duration, fn Callback, arg any) {
	s.Schedule(interval, fn, arg)
}

// insert adds a timer, replacing any pending timer with the same key.
// Caller holds s.mu.
func (s *Scheduler) insert(due time.Time, fn Callback, arg any) {
	if fn == nil {
		panic("sched: nil callback")
	}
	key := timerKey{fn: reflect.ValueOf(fn).Pointer(), arg: arg}
	s.removeKey(key)

	s.seq++
	t := &timer{due: due, fn: fn, arg: arg, key: key, seq: s.seq}

	// Insert in (due, seq) order; equal due times keep FIFO order.
	idx := len(s.timers)
	for i, p := range s.timers {
		if due.Before(p.due) {
			idx = i
			break
		}
	}
	s.timers = append(s.timers, nil)
	copy(s.timers[idx+1:], s.timers[idx:])
	s.timers[idx] = t
}

// Cancel removes the pending timer for (callback, argument). It is
// idempotent: cancelling a pair that is not pending is a no-op.
func (s *Scheduler) Cancel(fn Callback, arg any) {
	if fn == nil {
		return
	}
	key := timerKey{fn: reflect.ValueOf(fn).Pointer(), arg: arg}
	s.mu.Lock()
	s.removeKey(key)
	s.mu.Unlock()
}

// removeKey unlinks the timer with the given key, if any.
// Caller holds s.mu.
func (s *Scheduler) removeKey(key timerKey) {
	for i, t := range s.timers {
		if t.key == key {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}

// Flush runs every callback whose due time has passed, in non-decreasing
// due order with FIFO tie-breaking.
//
// Mutations made by running callbacks are visible to the same Flush call:
// a timer scheduled during the pass fires before Flush returns if it is
// already due, bounded at two firings per (callback, argument) pair so a
// self-rescheduling callback cannot spin the loop.
func (s *Scheduler) Flush() {
	var fired map[timerKey]int

	for {
		s.mu.Lock()
		if len(s.timers) == 0 {
			s.mu.Unlock()
			return
		}
		head := s.timers[0]
		if head.due.After(s.now()) {
			s.mu.Unlock()
			return
		}
		if fired[head.key] >= maxFiresPerKey {
			// Leave it for the next Flush; everything behind it is due
			// no earlier, so stop the pass here.
			s.mu.Unlock()
			return
		}
		s.timers = s.timers[1:]
		s.mu.Unlock()

		if fired == nil {
			fired = make(map[timerKey]int)
		}
		fired[head.key]++
		head.fn(head.arg)
	}
}

// TimeToNext returns the duration until the earliest pending due time.
// The boolean is false when no timers are pending. An overdue timer
// yields a zero duration, never a negative one.
func (s *Scheduler) TimeToNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.timers) == 0 {
		return 0, false
	}
	d := s.timers[0].due.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// WaitTime returns the poll timeout for the host event loop: the time to
// the next deadline capped at max, or max itself when nothing is pending.
func (s *Scheduler) WaitTime(max time.Duration) time.Duration {
	d, ok := s.TimeToNext()
	if !ok || d > max {
		return max
	}
	return d
}

// Pending returns the number of pending timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
