/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package grabthemic

import (
	"time"
)

// Scheduler calls tick every d until the returned cancel func is called.
// Ticks must be delivered on the goroutine that owns the Controller.
// cancel must be safe to call more than once.
type Scheduler interface {
	Every(d time.Duration, tick func()) (cancel func())
}

// Timer counts down from a fixed value, one step per tick.
//
// Every Start bumps the generation; ticks scheduled by an earlier
// generation, or arriving after Stop, are dropped.
type Timer struct {
	name     string
	duration int
	interval time.Duration
	sched    Scheduler

	onChange func(value int)
	onExpire func()

	value   int
	gen     uint64
	running bool
	cancel  func()
}

func newTimer(name string, duration int, interval time.Duration, sched Scheduler, onChange func(int), onExpire func()) *Timer {
	return &Timer{
		name:     name,
		duration: duration,
		interval: interval,
		sched:    sched,
		onChange: onChange,
		onExpire: onExpire,
		value:    duration,
	}
}

// Start resets the timer to its full duration and begins ticking,
// canceling any run already in progress.
func (t *Timer) Start() {
	t.Stop()

	t.gen++
	gen := t.gen

	t.value = t.duration
	t.running = true
	t.cancel = t.sched.Every(t.interval, func() {
		t.tick(gen)
	})
}

// Stop cancels the timer. The current value is kept.
func (t *Timer) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.running = false
}

func (t *Timer) tick(gen uint64) {
	if !t.running || gen != t.gen {
		return
	}

	if t.value > 0 {
		t.value--
	}

	if t.value > 0 {
		if t.onChange != nil {
			t.onChange(t.value)
		}
		return
	}

	t.Stop()
	if t.onExpire != nil {
		t.onExpire()
	}
}

func (t *Timer) Value() int {
	return t.value
}

func (t *Timer) Running() bool {
	return t.running
}

func (t *Timer) Name() string {
	return t.name
}
