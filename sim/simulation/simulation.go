// Package simulation puts a clock, its activity generators and the optional
// recorder together and drives them tick by tick.
package simulation

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sarchlab/circus/datarecording"
	"github.com/sarchlab/circus/sim/activity"
	"github.com/sarchlab/circus/sim/id"
	"github.com/sarchlab/circus/sim/stateful"
	"github.com/sarchlab/circus/sim/timing"
)

// A Simulation provides the service requires to run a circus.
type Simulation struct {
	id    string
	clock *timing.Clock

	generators     map[string]*activity.Generator
	generatorOrder []string
	populations    []*Population

	recorder       datarecording.DataRecorder
	sampleRecorder *datarecording.SampleRecorder

	// stepLock serializes ticks and samples. It is also held while paused.
	stepLock     sync.Mutex
	isPaused     bool
	isPausedLock sync.Mutex
}

// NewSimulation creates a new simulation driven by clock.
func NewSimulation(clock *timing.Clock) *Simulation {
	return &Simulation{
		id:         id.Generate(),
		clock:      clock,
		generators: make(map[string]*activity.Generator),
	}
}

// ID returns the ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Clock returns the clock of the simulation.
func (s *Simulation) Clock() *timing.Clock {
	return s.clock
}

// AddGenerator builds a generator that follows the simulation clock.
// Generator names must be unique.
func (s *Simulation) AddGenerator(
	name string,
	profile activity.Profile,
	seed uint64,
) (*activity.Generator, error) {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	if _, ok := s.generators[name]; ok || name == s.clock.Name() {
		panic("generator " + name + " already registered")
	}

	g, err := activity.MakeBuilder().
		WithClock(s.clock).
		WithProfile(profile).
		WithSeed(seed).
		Build(name)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}

	if s.sampleRecorder != nil {
		g.AcceptHook(s.sampleRecorder)
	}

	s.generators[name] = g
	s.generatorOrder = append(s.generatorOrder, name)

	return g, nil
}

// Generator returns the generator with the given name, or nil.
func (s *Simulation) Generator(name string) *activity.Generator {
	return s.generators[name]
}

// Generators returns all generators in the order they were added.
func (s *Simulation) Generators() []*activity.Generator {
	out := make([]*activity.Generator, 0, len(s.generatorOrder))
	for _, name := range s.generatorOrder {
		out = append(out, s.generators[name])
	}

	return out
}

// AddPopulation creates a population of actors that draw from the named
// generator, one actor per activity level. Populations are saved and loaded
// together with the clock and the generators.
func (s *Simulation) AddPopulation(
	generator string,
	levels []float64,
) (*Population, error) {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	g, ok := s.generators[generator]
	if !ok {
		return nil, fmt.Errorf("no generator named %s", generator)
	}

	name := g.Name() + ".Actors"
	for _, h := range s.stateHolders() {
		if h.Name() == name {
			panic("population " + name + " already registered")
		}
	}

	p, err := NewPopulation(g, levels)
	if err != nil {
		return nil, fmt.Errorf("population of %s: %w", generator, err)
	}

	s.populations = append(s.populations, p)

	return p, nil
}

// Populations returns all populations in the order they were added.
func (s *Simulation) Populations() []*Population {
	return append([]*Population(nil), s.populations...)
}

// AttachRecorder records every tick of the clock and every sample of the
// current and future generators into r.
func (s *Simulation) AttachRecorder(r datarecording.DataRecorder) {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	if s.recorder != nil {
		panic("a recorder is already attached")
	}

	s.recorder = r
	s.sampleRecorder = datarecording.NewSampleRecorder(r)
	s.clock.AcceptHook(datarecording.NewTickRecorder(r))

	for _, name := range s.generatorOrder {
		s.generators[name].AcceptHook(s.sampleRecorder)
	}
}

// Recorder returns the attached recorder, or nil.
func (s *Simulation) Recorder() datarecording.DataRecorder {
	return s.recorder
}

// Step advances the clock n times.
func (s *Simulation) Step(n int) {
	for i := 0; i < n; i++ {
		s.stepLock.Lock()
		s.clock.Increment()
		s.stepLock.Unlock()
	}
}

// Sample draws waiting times from the named generator.
func (s *Simulation) Sample(name string, observations []float64) ([]int, error) {
	g, ok := s.generators[name]
	if !ok {
		return nil, fmt.Errorf("no generator named %s", name)
	}

	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	return g.Generate(observations)
}

// Run calls body at the current time and then advances the clock, ticks
// times. It stops at the first error returned by body.
func (s *Simulation) Run(ticks int, body func(now time.Time) error) error {
	for i := 0; i < ticks; i++ {
		s.stepLock.Lock()

		err := body(s.clock.Now())
		if err != nil {
			s.stepLock.Unlock()
			return err
		}

		s.clock.Increment()
		s.stepLock.Unlock()
	}

	return nil
}

// Pause blocks Run, Step and Sample until Continue is called.
func (s *Simulation) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.stepLock.Lock()
	s.isPaused = true
}

// Continue releases a paused simulation.
func (s *Simulation) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.stepLock.Unlock()
	s.isPaused = false
}

// IsPaused tells if the simulation is paused.
func (s *Simulation) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}

func (s *Simulation) stateHolders() []stateful.StateHolder {
	holders := []stateful.StateHolder{s.clock}
	for _, g := range s.Generators() {
		holders = append(holders, g)
	}

	for _, p := range s.populations {
		holders = append(holders, p)
	}

	return holders
}

// Save writes a checkpoint of the clock, of all generators and of all
// populations.
func (s *Simulation) Save(filename string) error {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	states := make(map[string]stateful.State)
	for _, h := range s.stateHolders() {
		states[h.Name()] = h.State()
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	codec := stateful.JSONCodec{}

	err = codec.Encode(file, states)
	if err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// Load restores a checkpoint written by Save into a simulation that has the
// same clock, generators and populations.
func (s *Simulation) Load(filename string) error {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	holders := s.stateHolders()
	states := make(map[string]stateful.State)

	for _, h := range holders {
		states[h.Name()] = h.State()
	}

	codec := stateful.JSONCodec{}

	err = codec.Decode(file, states)
	if err != nil {
		return err
	}

	for _, h := range holders {
		err = h.SetState(states[h.Name()])
		if err != nil {
			return err
		}
	}

	return nil
}
