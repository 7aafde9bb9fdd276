// Package eventloop is the cooperative, single-threaded scheduler the grid runs
// on. The host drives it by calling RunFrame once per rendered frame; nothing in
// here starts goroutines.
package eventloop

import (
	"sort"
	"time"

	"k8s.io/utils/clock"
)

// Scheduler is the part of the loop that streaming code depends on.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) *Timer
	OnNextFrame(fn func())
}

// Timer is a pending AfterFunc callback.
type Timer struct {
	loop *Loop
	due  time.Time
	seq  uint64
	fn   func()
	done bool
}

// Stop cancels the timer. It returns false if the timer already fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.done {
		return false
	}
	t.done = true
	t.loop.remove(t)
	return true
}

// Due returns when the timer fires.
func (t *Timer) Due() time.Time { return t.due }

type frameHook struct {
	id int
	fn func(dt time.Duration)
}

// Loop owns deferred timers, per-frame hooks and frame-completed callbacks.
type Loop struct {
	clock     clock.PassiveClock
	timers    []*Timer // ordered by (due, seq)
	seq       uint64
	nextFrame []func()
	hooks     []frameHook
	hookSeq   int
	lastFrame time.Time
	frames    uint64
}

var _ Scheduler = (*Loop)(nil)

// New creates a loop reading time from c. A nil clock uses the wall clock.
func New(c clock.PassiveClock) *Loop {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Loop{clock: c}
}

// Now returns the loop's current time.
func (l *Loop) Now() time.Time { return l.clock.Now() }

// AfterFunc schedules fn to run on the first frame at or after now+d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	l.seq++
	t := &Timer{loop: l, due: l.clock.Now().Add(d), seq: l.seq, fn: fn}
	i := sort.Search(len(l.timers), func(i int) bool {
		o := l.timers[i]
		return o.due.After(t.due) || (o.due.Equal(t.due) && o.seq > t.seq)
	})
	l.timers = append(l.timers, nil)
	copy(l.timers[i+1:], l.timers[i:])
	l.timers[i] = t
	return t
}

func (l *Loop) remove(t *Timer) {
	for i, o := range l.timers {
		if o == t {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return
		}
	}
}

// OnNextFrame queues fn to run when the next frame completes.
func (l *Loop) OnNextFrame(fn func()) {
	l.nextFrame = append(l.nextFrame, fn)
}

// OnFrame registers fn to run every frame with the time since the previous
// frame. The returned function unregisters it.
func (l *Loop) OnFrame(fn func(dt time.Duration)) (cancel func()) {
	l.hookSeq++
	id := l.hookSeq
	l.hooks = append(l.hooks, frameHook{id: id, fn: fn})
	return func() {
		for i, h := range l.hooks {
			if h.id == id {
				l.hooks = append(l.hooks[:i], l.hooks[i+1:]...)
				return
			}
		}
	}
}

// PendingTimers returns the number of timers that have not fired or been stopped.
func (l *Loop) PendingTimers() int { return len(l.timers) }

// Frames returns how many frames have completed.
func (l *Loop) Frames() uint64 { return l.frames }

// RunDue fires every timer that is due. Timers scheduled while firing wait for
// the next call.
func (l *Loop) RunDue() int {
	now := l.clock.Now()
	limit := l.seq
	fired := 0
	for {
		i := -1
		for j, t := range l.timers {
			if t.due.After(now) {
				break
			}
			if t.seq <= limit {
				i = j
				break
			}
		}
		if i < 0 {
			return fired
		}
		t := l.timers[i]
		l.timers = append(l.timers[:i], l.timers[i+1:]...)
		t.done = true
		t.fn()
		fired++
	}
}

// RunFrame is called by the host after a frame has been presented. It fires due
// timers, runs per-frame hooks, then the callbacks queued for frame completion
// before this call.
func (l *Loop) RunFrame() {
	l.RunDue()

	now := l.clock.Now()
	var dt time.Duration
	if !l.lastFrame.IsZero() {
		dt = now.Sub(l.lastFrame)
	}
	l.lastFrame = now

	hooks := append([]frameHook(nil), l.hooks...)
	for _, h := range hooks {
		h.fn(dt)
	}

	done := l.nextFrame
	l.nextFrame = nil
	for _, fn := range done {
		fn()
	}
	l.frames++
}
