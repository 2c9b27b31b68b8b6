package activity

import (
	"errors"
	"math/rand/v2"
)

// Builder can help building generators.
type Builder struct {
	clock   Clock
	profile Profile
	seed    uint64
}

// MakeBuilder creates a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithClock sets the clock that the generator follows.
func (b Builder) WithClock(c Clock) Builder {
	b.clock = c
	return b
}

// WithProfile sets the activity profile.
func (b Builder) WithProfile(p Profile) Builder {
	b.profile = p
	return b
}

// WithSeed sets the seed of the stream the waiting times are drawn from.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// Build creates a generator aligned with the current time of the clock and
// registers it with the clock.
func (b Builder) Build(name string) (*Generator, error) {
	if b.clock == nil {
		return nil, errors.New("activity generator requires a clock")
	}

	if b.profile.NumPhases() == 0 {
		return nil, errors.New("activity generator requires a profile")
	}

	step := b.clock.StepDuration()

	weights, phases, err := resample(b.profile, step)
	if err != nil {
		return nil, err
	}

	cdf, err := normalize(weights)
	if err != nil {
		return nil, err
	}

	src := rand.NewPCG(b.seed, b.seed^0xda3e39cb94b95bdb)
	now := b.clock.Now()

	g := &Generator{
		name:    name,
		profile: b.profile,
		step:    step,
		src:     src,
		rng:     rand.New(src),
		cdf:     cdf,
		phase:   phases,
		origin:  b.profile.LatestCycleStart(now),
	}

	for g.origin.Before(now) {
		g.rotate()
	}

	b.clock.Register(g)

	return g, nil
}
