// Package agent holds the exploration schedule and the epsilon-greedy policy
// that picks relative actions from a value function.
package agent

import (
	"golang.org/x/exp/rand"

	"snakeai/internal/env"
	"snakeai/internal/nn"
)

const (
	// DecaySteps is the global step at which epsilon stops decaying
	DecaySteps = 1000
	// MinEpsilon is the exploration floor
	MinEpsilon = 0.05
)

// ValueFunction maps a state to one value per relative action
type ValueFunction interface {
	Evaluate(state []float64) []float64
	Update(states [][]float64, actions []int, targets []float64) (float64, error)
	Save() ([]byte, error)
	Load(blob []byte) error
}

// Epsilon returns the exploration rate for a global step: linear from 1 down
// to MinEpsilon over DecaySteps, then constant
func Epsilon(step int) float64 {
	if step >= DecaySteps {
		return MinEpsilon
	}
	if step < 0 {
		step = 0
	}
	return 1 - (1-MinEpsilon)*float64(step)/DecaySteps
}

// SelectAction returns a uniformly random action with probability eps and
// the greedy action otherwise. A zero eps never draws from rng.
func SelectAction(vf ValueFunction, state []float64, eps float64, rng *rand.Rand) env.Action {
	if eps > 0 && rng.Float64() < eps {
		return env.Actions[rng.Intn(env.NumActions)]
	}
	return Greedy(vf, state)
}

// Greedy returns the highest-valued action, lowest index on ties
func Greedy(vf ValueFunction, state []float64) env.Action {
	return env.Action(nn.Argmax(vf.Evaluate(state)))
}
