package timing

import (
	"fmt"
	"time"

	"github.com/sarchlab/circus/sim/stateful"
)

type clockState struct {
	Now time.Time `json:"now"`
	RNG []byte    `json:"rng"`
}

// State returns a snapshot of the clock time and of its random stream.
func (c *Clock) State() stateful.State {
	c.rngLock.Lock()
	rng, err := c.src.MarshalBinary()
	c.rngLock.Unlock()

	if err != nil {
		panic(err)
	}

	return &clockState{
		Now: c.Now(),
		RNG: rng,
	}
}

// SetState restores a snapshot taken by State. Dependents are not moved; they
// are expected to restore their own state.
func (c *Clock) SetState(state stateful.State) error {
	s, ok := state.(*clockState)
	if !ok {
		return fmt.Errorf("%s: unexpected state type %T", c.name, state)
	}

	c.rngLock.Lock()
	err := c.src.UnmarshalBinary(s.RNG)
	c.rngLock.Unlock()

	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	c.writeNow(s.Now)

	return nil
}
