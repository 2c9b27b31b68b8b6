package activity

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/circus/sim/hooking"
	"github.com/sarchlab/circus/sim/timing"
)

// ErrInvalidObservation is returned when an activity level is not a finite
// positive number.
var ErrInvalidObservation = errors.New("activity levels must be finite and positive")

// HookPosAfterGenerate is triggered after a batch of waiting times is drawn.
// The hook item is a Sample.
var HookPosAfterGenerate = &hooking.HookPos{Name: "AfterGenerate"}

// Clock is what a generator needs from the clock it follows.
type Clock interface {
	timing.TimeTeller
	Register(dependent timing.Incrementer)
}

// A Row is one line of the cumulative table.
type Row struct {
	// Cumulative is the probability that the next action happens within the
	// ticks 0 to k from now, where k is the index of the row.
	Cumulative float64

	// Phase is the index of the profile phase the tick starts in.
	Phase int
}

// A Sample is one batch of waiting times together with what produced it.
// The slices are owned by the sample.
type Sample struct {
	Time time.Time

	// Actors holds the number of the actor each entry belongs to.
	Actors       []int
	Observations []float64
	Draws        []float64
	WaitTicks    []int
}

// A Generator keeps a cumulative activity table aligned with a clock and
// draws waiting times from it.
//
// The table is a ring. Logical row k lives at index (head+k) mod n and its
// value is cdf[index]-base. Moving to the next tick only moves head and base,
// so the cost of a tick does not depend on the cycle length. The last
// logical row is always exactly 1.
type Generator struct {
	hooking.HookableBase

	name    string
	profile Profile
	step    time.Duration

	lock   sync.Mutex
	src    *rand.PCG
	rng    *rand.Rand
	cdf    []float64
	phase  []int
	head   int
	base   float64
	origin time.Time
}

// Name returns the name of the generator.
func (g *Generator) Name() string {
	return g.name
}

// Profile returns the profile the generator follows.
func (g *Generator) Profile() Profile {
	return g.profile
}

// CycleLength returns the number of ticks in one cycle.
func (g *Generator) CycleLength() int {
	return len(g.cdf)
}

// Origin returns the instant of the tick that row 0 represents.
func (g *Generator) Origin() time.Time {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.origin
}

// Table returns a copy of the logical cumulative table, starting from the
// current tick.
func (g *Generator) Table() []Row {
	g.lock.Lock()
	defer g.lock.Unlock()

	n := len(g.cdf)
	rows := make([]Row, n)

	for k := range rows {
		rows[k] = Row{
			Cumulative: g.cumulativeAt(k),
			Phase:      g.phase[(g.head+k)%n],
		}
	}

	return rows
}

func (g *Generator) cumulativeAt(k int) float64 {
	n := len(g.cdf)
	if k == n-1 {
		return 1
	}

	v := g.cdf[(g.head+k)%n] - g.base

	return math.Min(math.Max(v, 0), 1)
}

// Increment moves the table forward by one tick. It is called by the clock.
func (g *Generator) Increment() {
	g.lock.Lock()
	g.rotate()
	g.lock.Unlock()
}

// rotate rebases the table so that the current tick carries no mass, then
// moves the current tick to the end of the cycle with a cumulative value of
// exactly 1.
func (g *Generator) rotate() {
	n := len(g.cdf)

	g.base = g.cdf[g.head]
	g.cdf[g.head] = g.base + 1
	g.head = (g.head + 1) % n
	g.origin = g.origin.Add(g.step)

	if g.head == 0 {
		for i := range g.cdf {
			g.cdf[i] -= g.base
		}
		g.base = 0
	}
}

// Generate draws one waiting time, in ticks, for each actor. observations
// holds the activity level of each actor; the higher the level, the shorter
// the wait. A wait equal to CycleLength means that the actor does not act
// within the current cycle. Actors are numbered by their position in
// observations.
func (g *Generator) Generate(observations []float64) ([]int, error) {
	return g.GenerateFor(nil, observations)
}

// GenerateFor is Generate for a subset of actors. actors[i] is the number of
// the actor that observations[i] belongs to; a nil actors numbers them by
// position.
func (g *Generator) GenerateFor(
	actors []int,
	observations []float64,
) ([]int, error) {
	if actors != nil && len(actors) != len(observations) {
		return nil, fmt.Errorf("%d actors for %d observations",
			len(actors), len(observations))
	}

	for i, o := range observations {
		if !(o > 0) || math.IsInf(o, 1) {
			return nil, fmt.Errorf(
				"%w: observation %d is %v", ErrInvalidObservation, i, o)
		}
	}

	g.lock.Lock()

	draws := make([]float64, len(observations))
	waits := make([]int, len(observations))

	for i, o := range observations {
		draws[i] = g.rng.Float64()
		waits[i] = g.waitTicks(draws[i] / o)
	}

	now := g.origin
	g.lock.Unlock()

	if g.NumHooks() > 0 {
		g.InvokeHook(hooking.HookCtx{
			Domain: g,
			Pos:    HookPosAfterGenerate,
			Item:   g.sample(now, actors, observations, draws, waits),
		})
	}

	return waits, nil
}

func (g *Generator) sample(
	now time.Time,
	actors []int,
	observations []float64,
	draws []float64,
	waits []int,
) Sample {
	s := Sample{
		Time:         now,
		Actors:       make([]int, len(observations)),
		Observations: append([]float64(nil), observations...),
		Draws:        draws,
		WaitTicks:    append([]int(nil), waits...),
	}

	for i := range s.Actors {
		s.Actors[i] = i
		if actors != nil {
			s.Actors[i] = actors[i]
		}
	}

	return s
}

// waitTicks returns the smallest k such that row k reaches p, or the cycle
// length if no row does.
func (g *Generator) waitTicks(p float64) int {
	return sort.Search(len(g.cdf), func(k int) bool {
		return g.cumulativeAt(k) >= p
	})
}

// resample spreads the profile over clock ticks. Each tick gets the weight
// of the phases it overlaps, in proportion to the overlap. When the clock
// step divides the phase step this is a plain forward fill. The cycle holds
// floor(cycle/step) ticks and the mass of a trailing partial tick is added
// to the last whole tick, so no phase is ever dropped.
func resample(p Profile, step time.Duration) ([]float64, []int, error) {
	cycle := p.CycleDuration()
	n := int(cycle / step)

	if n == 0 {
		return nil, nil, fmt.Errorf(
			"%w: cycle of %s is shorter than one clock step of %s",
			ErrInvalidProfile, cycle, step)
	}

	weights := make([]float64, n)
	phases := make([]int, n)

	for j := 0; j < n; j++ {
		from := time.Duration(j) * step
		to := from + step

		if j == n-1 {
			to = cycle
		}

		first := int(from / p.phaseStep)
		phases[j] = first

		for k := first; k < len(p.weights); k++ {
			lo := time.Duration(k) * p.phaseStep
			hi := lo + p.phaseStep

			if lo >= to {
				break
			}

			overlap := min(hi, to) - max(lo, from)
			weights[j] += p.weights[k] * (float64(overlap) / float64(step))
		}
	}

	return weights, phases, nil
}

// normalize turns weights into a cumulative distribution ending at 1.
func normalize(weights []float64) ([]float64, error) {
	total := 0.0
	for _, w := range weights {
		total += w
	}

	if total == 0 {
		return nil, ErrZeroWeights
	}

	cdf := make([]float64, len(weights))
	running := 0.0

	for i, w := range weights {
		running += w
		cdf[i] = running / total
	}

	cdf[len(cdf)-1] = 1

	return cdf, nil
}
