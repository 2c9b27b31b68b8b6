// Package activity turns repeating activity patterns into waiting times.
//
// A Profile describes how active actors are along a cycle (for example one
// weight per hour of the day). A Generator binds a Profile to a clock and
// draws, for each actor, the number of ticks until its next action.
package activity

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidProfile is returned when a profile cannot describe a cycle.
	ErrInvalidProfile = errors.New("invalid activity profile")

	// ErrZeroWeights is returned when the weights of a profile sum to zero,
	// which leaves nothing to normalize.
	ErrZeroWeights = fmt.Errorf("%w: weights sum to zero", ErrInvalidProfile)

	// ErrInvalidStepToken is returned for a duration token that cannot be
	// parsed.
	ErrInvalidStepToken = errors.New("invalid step token")
)

// A Profile is the immutable description of a repeating activity pattern.
// Phase i of the cycle starts at Anchor + i*PhaseStep (modulo the cycle) and
// has weight Weights[i].
type Profile struct {
	weights   []float64
	stepToken string
	phaseStep time.Duration
	anchor    time.Time
}

// NewProfile creates a profile. stepToken is the duration of one phase, such
// as "15min", "1h" or "1D".
func NewProfile(
	weights []float64,
	stepToken string,
	anchor time.Time,
) (Profile, error) {
	step, err := ParseStep(stepToken)
	if err != nil {
		return Profile{}, err
	}

	if len(weights) == 0 {
		return Profile{}, fmt.Errorf("%w: no weights", ErrInvalidProfile)
	}

	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return Profile{}, fmt.Errorf(
				"%w: weight %d is %v", ErrInvalidProfile, i, w)
		}
	}

	p := Profile{
		weights:   make([]float64, len(weights)),
		stepToken: stepToken,
		phaseStep: step,
		anchor:    anchor,
	}
	copy(p.weights, weights)

	return p, nil
}

// Weights returns a copy of the per-phase weights.
func (p Profile) Weights() []float64 {
	out := make([]float64, len(p.weights))
	copy(out, p.weights)

	return out
}

// NumPhases returns the number of phases in one cycle.
func (p Profile) NumPhases() int {
	return len(p.weights)
}

// StepToken returns the phase duration as it was given.
func (p Profile) StepToken() string {
	return p.stepToken
}

// PhaseStep returns the duration of one phase.
func (p Profile) PhaseStep() time.Duration {
	return p.phaseStep
}

// Anchor returns the instant at which phase 0 starts.
func (p Profile) Anchor() time.Time {
	return p.anchor
}

// CycleDuration returns the duration of one full cycle.
func (p Profile) CycleDuration() time.Duration {
	return time.Duration(len(p.weights)) * p.phaseStep
}

// PhaseAt returns the index of the phase that contains t.
func (p Profile) PhaseAt(t time.Time) int {
	offset := floorMod(t.Sub(p.anchor), p.CycleDuration())
	return int(offset / p.phaseStep)
}

// WeightAt returns the weight of the phase that contains t.
func (p Profile) WeightAt(t time.Time) float64 {
	return p.weights[p.PhaseAt(t)]
}

// LatestCycleStart returns the latest instant at or before t at which a
// cycle starts.
func (p Profile) LatestCycleStart(t time.Time) time.Time {
	return t.Add(-floorMod(t.Sub(p.anchor), p.CycleDuration()))
}

// Equal tells if two profiles have the same weights in the same order, the
// same step token and the same anchor instant.
func (p Profile) Equal(other Profile) bool {
	if p.stepToken != other.stepToken || !p.anchor.Equal(other.anchor) {
		return false
	}

	if len(p.weights) != len(other.weights) {
		return false
	}

	for i := range p.weights {
		if p.weights[i] != other.weights[i] {
			return false
		}
	}

	return true
}

func floorMod(d, m time.Duration) time.Duration {
	r := d % m
	if r < 0 {
		r += m
	}

	return r
}

var stepTokenPattern = regexp.MustCompile(`^\s*(\d*)\s*([A-Za-z]+)\s*$`)

var stepUnits = map[string]time.Duration{
	"s":   time.Second,
	"S":   time.Second,
	"sec": time.Second,
	"min": time.Minute,
	"T":   time.Minute,
	"h":   time.Hour,
	"H":   time.Hour,
	"d":   24 * time.Hour,
	"D":   24 * time.Hour,
	"w":   7 * 24 * time.Hour,
	"W":   7 * 24 * time.Hour,
}

// ParseStep parses a phase duration token. It accepts offset-style tokens
// made of an optional count and a unit ("15min", "1h", "D", "2W") as well as
// anything time.ParseDuration understands ("1h30m").
func ParseStep(token string) (time.Duration, error) {
	if m := stepTokenPattern.FindStringSubmatch(token); m != nil {
		if unit, ok := stepUnits[m[2]]; ok {
			count := int64(1)
			if m[1] != "" {
				n, err := strconv.ParseInt(m[1], 10, 64)
				if err != nil {
					return 0, fmt.Errorf("%w: %q", ErrInvalidStepToken, token)
				}
				count = n
			}

			if count > math.MaxInt64/int64(unit) {
				return 0, fmt.Errorf("%w: %q is too long", ErrInvalidStepToken, token)
			}

			return checkStep(token, time.Duration(count)*unit)
		}
	}

	d, err := time.ParseDuration(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStepToken, token)
	}

	return checkStep(token, d)
}

func checkStep(token string, d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidStepToken, token)
	}

	return d, nil
}
