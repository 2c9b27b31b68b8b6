// Package timing owns the simulated time of a circus. A Clock advances in
// fixed steps and drives every registered dependent on each advance.
package timing

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sarchlab/circus/sim/hooking"
)

// ErrInvalidStep is returned when a clock is configured with a step that is
// not a positive whole number of seconds.
var ErrInvalidStep = errors.New("clock step must be a positive whole number of seconds")

// HookPosBeforeIncrement is triggered before the clock time moves.
var HookPosBeforeIncrement = &hooking.HookPos{Name: "BeforeIncrement"}

// HookPosAfterIncrement is triggered after the clock time moved and all the
// dependents were incremented.
var HookPosAfterIncrement = &hooking.HookPos{Name: "AfterIncrement"}

// An Incrementer is advanced by one step every time the clock it is
// registered with advances.
type Incrementer interface {
	Increment()
}

// TimeTeller can be used to get the current simulated time.
type TimeTeller interface {
	Now() time.Time
	StepDuration() time.Duration
}

// A Clock is the central object managing the evolution of simulated time.
//
// Dependents must not register new dependents while they are being
// incremented.
type Clock struct {
	hooking.HookableBase

	name string

	timeLock sync.RWMutex
	now      time.Time
	step     time.Duration

	dependents []Incrementer

	rngLock sync.Mutex
	src     *rand.PCG
	rng     *rand.Rand
}

// Name returns the name of the clock.
func (c *Clock) Name() string {
	return c.name
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.timeLock.RLock()
	t := c.now
	c.timeLock.RUnlock()

	return t
}

func (c *Clock) writeNow(t time.Time) {
	c.timeLock.Lock()
	c.now = t
	c.timeLock.Unlock()
}

// StepDuration returns the fixed amount of simulated time of one tick.
func (c *Clock) StepDuration() time.Duration {
	return c.step
}

// TicksPerDay returns how many ticks make one day.
func (c *Clock) TicksPerDay() float64 {
	return float64(24*time.Hour) / float64(c.step)
}

// TicksPerWeek returns how many ticks make one week.
func (c *Clock) TicksPerWeek() float64 {
	return c.TicksPerDay() * 7
}

// Register appends a dependent. Dependents are incremented in registration
// order. Registering the same dependent twice makes it increment twice.
func (c *Clock) Register(dependent Incrementer) {
	if dependent == nil {
		panic("cannot register a nil dependent")
	}

	c.dependents = append(c.dependents, dependent)
}

// Dependents returns the registered dependents in registration order.
func (c *Clock) Dependents() []Incrementer {
	out := make([]Incrementer, len(c.dependents))
	copy(out, c.dependents)

	return out
}

// Increment moves the clock forward by exactly one step and then increments
// every dependent.
func (c *Clock) Increment() {
	hookCtx := hooking.HookCtx{
		Domain: c,
		Pos:    HookPosBeforeIncrement,
		Item:   c.Now(),
	}
	c.InvokeHook(hookCtx)

	next := c.Now().Add(c.step)
	c.writeNow(next)

	for _, d := range c.dependents {
		d.Increment()
	}

	hookCtx.Pos = HookPosAfterIncrement
	hookCtx.Item = next
	c.InvokeHook(hookCtx)
}

// Timestamp returns count random instants within the current tick, that is in
// [Now(), Now()+StepDuration()). Each instant is Now() plus a uniformly drawn
// whole number of seconds. The clock time is not changed.
func (c *Clock) Timestamp(count int) []time.Time {
	if count <= 0 {
		return nil
	}

	now := c.Now()
	stepSec := int64(c.step / time.Second)
	out := make([]time.Time, count)

	c.rngLock.Lock()
	for i := range out {
		offset := c.rng.Int64N(stepSec)
		out[i] = now.Add(time.Duration(offset) * time.Second)
	}
	c.rngLock.Unlock()

	return out
}
