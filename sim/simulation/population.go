package simulation

import (
	"errors"
	"fmt"

	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/stateful"
)

// A Population is a group of actors that share one generator. Each actor
// keeps a countdown to its next action and draws a new one at the tick after
// it acted.
type Population struct {
	gen    *activity.Generator
	levels []float64

	// timers holds the ticks left before each actor acts. A negative value
	// marks an actor that has to draw its next wait.
	timers []int
}

// NewPopulation draws the first waiting time of every actor. levels holds the
// activity level of each actor, passed to the generator as its observation.
func NewPopulation(
	gen *activity.Generator,
	levels []float64,
) (*Population, error) {
	if gen == nil {
		return nil, errors.New("population needs a generator")
	}

	p := &Population{
		gen:    gen,
		levels: append([]float64(nil), levels...),
		timers: make([]int, len(levels)),
	}

	for i := range p.timers {
		p.timers[i] = -1
	}

	if err := p.redraw(); err != nil {
		return nil, err
	}

	return p, nil
}

// Name returns the name of the population, derived from its generator.
func (p *Population) Name() string {
	return p.gen.Name() + ".Actors"
}

// Generator returns the generator that the actors draw from.
func (p *Population) Generator() *activity.Generator {
	return p.gen
}

// Size returns the number of actors.
func (p *Population) Size() int {
	return len(p.timers)
}

// Timers returns a copy of the ticks left before each actor acts.
func (p *Population) Timers() []int {
	return append([]int(nil), p.timers...)
}

// Due returns the actors that act at the current tick. Actors that acted at
// the previous tick draw their next wait first, and all others count down.
// Due must be called exactly once per tick, before the clock advances.
func (p *Population) Due() ([]int, error) {
	if err := p.redraw(); err != nil {
		return nil, err
	}

	due := []int{}

	for i, t := range p.timers {
		if t == 0 {
			due = append(due, i)
			p.timers[i] = -1

			continue
		}

		p.timers[i]--
	}

	return due, nil
}

func (p *Population) redraw() error {
	var idle []int
	for i, t := range p.timers {
		if t < 0 {
			idle = append(idle, i)
		}
	}

	if len(idle) == 0 {
		return nil
	}

	obs := make([]float64, len(idle))
	for j, i := range idle {
		obs[j] = p.levels[i]
	}

	waits, err := p.gen.GenerateFor(idle, obs)
	if err != nil {
		return err
	}

	for j, i := range idle {
		p.timers[i] = waits[j]
	}

	return nil
}

type populationState struct {
	Levels []float64 `json:"levels"`
	Timers []int     `json:"timers"`
}

// State returns the activity levels and the countdowns of all actors.
func (p *Population) State() stateful.State {
	return &populationState{
		Levels: append([]float64(nil), p.levels...),
		Timers: append([]int(nil), p.timers...),
	}
}

// SetState restores a state taken by State from a population of the same
// size.
func (p *Population) SetState(state stateful.State) error {
	s, ok := state.(*populationState)
	if !ok {
		return fmt.Errorf("%s: unexpected state type %T", p.Name(), state)
	}

	if len(s.Levels) != len(p.timers) || len(s.Timers) != len(p.timers) {
		return fmt.Errorf("%s: saved population has %d actors, want %d",
			p.Name(), len(s.Timers), len(p.timers))
	}

	copy(p.levels, s.Levels)
	copy(p.timers, s.Timers)

	return nil
}
