package timing

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Builder can help building clocks.
type Builder struct {
	start time.Time
	step  time.Duration
	seed  uint64
}

// MakeBuilder returns a builder with a one-second step starting at the zero
// time.
func MakeBuilder() Builder {
	return Builder{
		step: time.Second,
	}
}

// WithStart sets the instant the clock starts at.
func (b Builder) WithStart(t time.Time) Builder {
	b.start = t
	return b
}

// WithStep sets the duration of one tick.
func (b Builder) WithStep(step time.Duration) Builder {
	b.step = step
	return b
}

// WithSeed sets the seed of the random stream used for sub-step timestamps.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// Build creates a clock.
func (b Builder) Build(name string) (*Clock, error) {
	if b.step < time.Second || b.step%time.Second != 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidStep, b.step)
	}

	src := rand.NewPCG(b.seed, b.seed^0x9e3779b97f4a7c15)

	c := &Clock{
		name: name,
		now:  b.start,
		step: b.step,
		src:  src,
		rng:  rand.New(src),
	}

	return c, nil
}
