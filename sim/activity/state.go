package activity

import (
	"fmt"
	"time"

	"github.com/sarchlab/circus/sim/stateful"
)

type generatorState struct {
	Origin time.Time `json:"origin"`
	Head   int       `json:"head"`
	Base   float64   `json:"base"`
	CDF    []float64 `json:"cdf"`
	Phase  []int     `json:"phase"`
	RNG    []byte    `json:"rng"`
}

// State returns a snapshot of the table and of the random stream.
func (g *Generator) State() stateful.State {
	g.lock.Lock()
	defer g.lock.Unlock()

	rng, err := g.src.MarshalBinary()
	if err != nil {
		panic(err)
	}

	s := &generatorState{
		Origin: g.origin,
		Head:   g.head,
		Base:   g.base,
		CDF:    make([]float64, len(g.cdf)),
		Phase:  make([]int, len(g.phase)),
		RNG:    rng,
	}
	copy(s.CDF, g.cdf)
	copy(s.Phase, g.phase)

	return s
}

// SetState restores a snapshot taken by State on a generator built from the
// same profile and clock step.
func (g *Generator) SetState(state stateful.State) error {
	s, ok := state.(*generatorState)
	if !ok {
		return fmt.Errorf("%s: unexpected state type %T", g.name, state)
	}

	if len(s.CDF) != len(g.cdf) || len(s.Phase) != len(g.phase) {
		return fmt.Errorf("%s: saved cycle has %d ticks, want %d",
			g.name, len(s.CDF), len(g.cdf))
	}

	if s.Head < 0 || s.Head >= len(g.cdf) {
		return fmt.Errorf("%s: saved head %d out of range", g.name, s.Head)
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	err := g.src.UnmarshalBinary(s.RNG)
	if err != nil {
		return fmt.Errorf("%s: %w", g.name, err)
	}

	copy(g.cdf, s.CDF)
	copy(g.phase, s.Phase)
	g.head = s.Head
	g.base = s.Base
	g.origin = s.Origin

	return nil
}
