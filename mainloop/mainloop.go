// Package mainloop provides the cooperative scheduler flows run under: a
// single-goroutine loop driving timers, idle tasks and cross-goroutine
// posts. Every callback runs on the goroutine that called Run, which is
// the thread-confinement contract the flow runtime relies on.
package mainloop

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/metric"
)

// TimerID identifies an armed timer.
type TimerID uint64

// IdlerID identifies a pending idle task.
type IdlerID uint64

type timer struct {
	id       TimerID
	deadline time.Time
	period   time.Duration
	cb       func() bool
	removed  bool
}

type idler struct {
	id      IdlerID
	cb      func() bool
	removed bool
}

// Loop is a main loop instance. All callbacks run on the goroutine
// executing Run; the registration methods and Post are safe to call from
// any goroutine.
type Loop struct {
	mu      sync.Mutex
	running bool
	quit    bool
	posted  []func()
	timers  []*timer
	idlers  []*idler
	nextID  uint64

	wake chan struct{}

	metrics *metric.Metrics
	log     *slog.Logger
}

// New creates a loop. It does not start running until Run is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		log:  slog.Default().With("component", "MainLoop"),
	}
}

// SetMetrics installs the runtime metrics the loop reports its load into.
// Must be called before Run.
func (l *Loop) SetMetrics(m *metric.Metrics) { l.metrics = m }

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// TimeoutAdd arms a timer that fires after d. The callback returning true
// rearms the timer for another period; returning false disarms it.
func (l *Loop) TimeoutAdd(d time.Duration, cb func() bool) TimerID {
	l.mu.Lock()
	l.nextID++
	t := &timer{
		id:       TimerID(l.nextID),
		deadline: time.Now().Add(d),
		period:   d,
		cb:       cb,
	}
	l.timers = append(l.timers, t)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.TimersActive.Inc()
	}
	l.signal()
	return t.id
}

// TimeoutDel disarms a timer. Reports whether the timer was still armed.
func (l *Loop) TimeoutDel(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.timers {
		if t.id == id && !t.removed {
			t.removed = true
			if l.metrics != nil {
				l.metrics.TimersActive.Dec()
			}
			return true
		}
	}
	return false
}

// IdleAdd schedules a task to run when no timer is due. The callback
// returning true keeps it scheduled; returning false drops it.
func (l *Loop) IdleAdd(cb func() bool) IdlerID {
	l.mu.Lock()
	l.nextID++
	i := &idler{id: IdlerID(l.nextID), cb: cb}
	l.idlers = append(l.idlers, i)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.IdlersActive.Inc()
	}
	l.signal()
	return i.id
}

// IdleDel drops a pending idle task. Reports whether it was still pending.
func (l *Loop) IdleDel(id IdlerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range l.idlers {
		if i.id == id && !i.removed {
			i.removed = true
			if l.metrics != nil {
				l.metrics.IdlersActive.Dec()
			}
			return true
		}
	}
	return false
}

// Post schedules fn to run on the loop goroutine. This is the only safe
// way for other goroutines to touch flow state.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.signal()
}

// Quit makes Run return after the current iteration.
func (l *Loop) Quit() {
	l.mu.Lock()
	l.quit = true
	l.mu.Unlock()
	l.signal()
}

// Run drives the loop until Quit. Calling Run on a loop that is already
// running is an error.
func (l *Loop) Run() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyExists, "MainLoop", "Run",
			"loop already running")
	}
	l.running = true
	l.quit = false
	l.mu.Unlock()

	for {
		if l.iterate() {
			break
		}
	}

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	return nil
}

// iterate runs one dispatch round and reports whether the loop should
// stop. It blocks while there is nothing to do.
func (l *Loop) iterate() bool {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return true
	}
	posted := l.posted
	l.posted = nil

	now := time.Now()
	var due []*timer
	for _, t := range l.timers {
		if !t.removed && !t.deadline.After(now) {
			due = append(due, t)
		}
	}

	var idle []*idler
	for _, i := range l.idlers {
		if !i.removed {
			idle = append(idle, i)
		}
	}
	l.mu.Unlock()

	for _, fn := range posted {
		fn()
	}

	for _, t := range due {
		if t.removed {
			continue
		}
		if t.cb() {
			t.deadline = t.deadline.Add(t.period)
			continue
		}
		l.mu.Lock()
		t.removed = true
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.TimersActive.Dec()
		}
	}

	for _, i := range idle {
		if i.removed {
			continue
		}
		if i.cb() {
			continue
		}
		l.mu.Lock()
		i.removed = true
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.IdlersActive.Dec()
		}
	}

	l.collect()

	return l.wait()
}

// collect drops removed entries so the slices do not grow without bound.
func (l *Loop) collect() {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.timers[:0]
	for _, t := range l.timers {
		if !t.removed {
			live = append(live, t)
		}
	}
	l.timers = live

	liveIdlers := l.idlers[:0]
	for _, i := range l.idlers {
		if !i.removed {
			liveIdlers = append(liveIdlers, i)
		}
	}
	l.idlers = liveIdlers
}

// wait blocks until the next timer deadline or an external wakeup, and
// reports whether the loop should stop. With idle tasks pending it does
// not block at all.
func (l *Loop) wait() bool {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return true
	}
	if len(l.posted) > 0 || len(l.idlers) > 0 {
		l.mu.Unlock()
		return false
	}

	var wakeAt *time.Time
	for _, t := range l.timers {
		if wakeAt == nil || t.deadline.Before(*wakeAt) {
			deadline := t.deadline
			wakeAt = &deadline
		}
	}
	l.mu.Unlock()

	if wakeAt == nil {
		<-l.wake
		return false
	}

	d := time.Until(*wakeAt)
	if d <= 0 {
		return false
	}
	wakeup := time.NewTimer(d)
	defer wakeup.Stop()
	select {
	case <-l.wake:
	case <-wakeup.C:
	}
	return false
}
