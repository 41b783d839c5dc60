package train

import (
	"snakeai/internal/agent"
	"snakeai/internal/env"
)

// Runner plays a loaded value function greedily, one tick per call. It
// never explores and never learns.
type Runner struct {
	world    *env.World
	vf       agent.ValueFunction
	maxTicks int
	state    []float64
	replay   *env.Replay
}

// NewRunner wraps a world and a value function; maxTicks <= 0 means no cap
func NewRunner(world *env.World, vf agent.ValueFunction, maxTicks int) *Runner {
	return &Runner{
		world:    world,
		vf:       vf,
		maxTicks: maxTicks,
		state:    world.State(),
	}
}

// Record makes the runner append every action it takes to r
func (r *Runner) Record(replay *env.Replay) { r.replay = replay }

// World returns the world being played
func (r *Runner) World() *env.World { return r.world }

// Reset starts a new episode
func (r *Runner) Reset() {
	r.state = r.world.Reset()
}

// Tick takes one greedy action and reports whether the episode is over.
// Reaching the tick cap ends the episode with env.DeathTimeout.
func (r *Runner) Tick() (env.Action, bool, error) {
	if !r.world.Active() {
		return 0, true, env.ErrTerminated
	}
	if r.maxTicks > 0 && r.world.Tick() >= r.maxTicks {
		r.world.Kill(env.DeathTimeout)
		return 0, true, nil
	}

	action := agent.Greedy(r.vf, r.state)
	next, _, done, err := r.world.Step(action)
	if err != nil {
		return action, false, err
	}
	if r.replay != nil {
		r.replay.Record(action)
	}
	r.state = next
	return action, done, nil
}

// Play ticks until the episode ends and returns its stats
func (r *Runner) Play(seed uint64) (env.EpisodeStats, error) {
	for {
		_, done, err := r.Tick()
		if err != nil {
			r.world.Kill(env.DeathError)
			return r.world.Stats(seed), err
		}
		if done {
			return r.world.Stats(seed), nil
		}
	}
}
