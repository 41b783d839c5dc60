// Package train runs Q-learning episodes on the snake world: epsilon-greedy
// acting, replay storage and one TD update per tick once enough transitions
// are stored.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"snakeai/internal/agent"
	"snakeai/internal/config"
	"snakeai/internal/env"
	"snakeai/internal/logging"
	"snakeai/internal/memory"
	"snakeai/internal/nn"
)

// Trainer owns the world, the replay buffer and the value function for one
// run. It is not safe for concurrent use.
type Trainer struct {
	cfg config.Config
	log *slog.Logger
	rng *rand.Rand

	world  *env.World
	buffer *memory.Buffer
	vf     agent.ValueFunction
	target agent.ValueFunction // nil when bootstrapping on vf

	step    int // global step, never reset
	episode int
	learns  int
}

// New builds a trainer with a freshly initialised network. All randomness
// in the run comes from one source seeded with cfg.Seed.
func New(cfg config.Config, log *slog.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	vf, err := NewNetwork(cfg, rng)
	if err != nil {
		return nil, err
	}
	var target agent.ValueFunction
	if cfg.Train.TargetNetwork {
		if target, err = NewNetwork(cfg, nil); err != nil {
			return nil, err
		}
	}
	return NewWithValueFunction(cfg, vf, target, rng, log)
}

// NewNetwork builds the MLP described by cfg. A nil rng gives zero weights,
// suitable only as a Load target.
func NewNetwork(cfg config.Config, rng *rand.Rand) (*nn.MLP, error) {
	h1, h2 := cfg.Hidden()
	return nn.NewMLP(cfg.ObsDim(), h1, h2, env.NumActions, cfg.Train.LearningRate, rng)
}

// NewWithValueFunction builds a trainer around an existing value function.
// target may be nil; otherwise it is synced from vf now and every
// TargetSyncEvery learning steps.
func NewWithValueFunction(cfg config.Config, vf, target agent.ValueFunction, rng *rand.Rand, log *slog.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}
	world, err := env.NewWorld(cfg.World(), rng)
	if err != nil {
		return nil, err
	}
	buffer, err := memory.NewBuffer(cfg.Train.ReplayCapacity, rng)
	if err != nil {
		return nil, err
	}
	t := &Trainer{
		cfg:    cfg,
		log:    log,
		rng:    rng,
		world:  world,
		buffer: buffer,
		vf:     vf,
		target: target,
	}
	if target != nil {
		if err := t.syncTarget(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ValueFunction returns the network being trained
func (t *Trainer) ValueFunction() agent.ValueFunction { return t.vf }

// GlobalStep returns the number of ticks taken across all episodes
func (t *Trainer) GlobalStep() int { return t.step }

// Episodes returns the number of finished episodes
func (t *Trainer) Episodes() int { return t.episode }

// Buffer returns the replay buffer
func (t *Trainer) Buffer() *memory.Buffer { return t.buffer }

// World returns the training world
func (t *Trainer) World() *env.World { return t.world }

// TDTarget returns reward for a terminal transition and
// reward + gamma * max(next) otherwise
func TDTarget(reward float64, terminal bool, next []float64, gamma float64) float64 {
	if terminal {
		return reward
	}
	return reward + gamma*floats.Max(next)
}

// Learn samples a batch and takes one gradient step on it. It reports false
// without touching anything when the buffer holds fewer than batch_size
// transitions.
func (t *Trainer) Learn() (float64, bool, error) {
	n := t.cfg.Train.BatchSize
	if t.buffer.Len() < n {
		return 0, false, nil
	}
	batch, err := t.buffer.Sample(n)
	if errors.Is(err, memory.ErrInsufficientData) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	bootstrap := t.vf
	if t.target != nil {
		bootstrap = t.target
	}

	states := make([][]float64, n)
	actions := make([]int, n)
	targets := make([]float64, n)
	for i, tr := range batch {
		states[i] = tr.State
		actions[i] = int(tr.Action)
		var next []float64
		if !tr.Terminal {
			next = bootstrap.Evaluate(tr.NextState)
		}
		targets[i] = TDTarget(tr.Reward, tr.Terminal, next, t.cfg.Train.DiscountFactor)
	}

	loss, err := t.vf.Update(states, actions, targets)
	if err != nil {
		return 0, false, fmt.Errorf("update: %w", err)
	}
	t.learns++
	if t.target != nil && t.learns%t.cfg.Train.TargetSyncEvery == 0 {
		if err := t.syncTarget(); err != nil {
			return loss, true, err
		}
	}
	return loss, true, nil
}

// syncTarget copies the online parameters into the target network
func (t *Trainer) syncTarget() error {
	blob, err := t.vf.Save()
	if err != nil {
		return fmt.Errorf("sync target: %w", err)
	}
	if err := t.target.Load(blob); err != nil {
		return fmt.Errorf("sync target: %w", err)
	}
	return nil
}

// greedy reports whether the next episode runs without exploration. Episode
// indices are 0-based and episode 0 always explores.
func (t *Trainer) greedy() bool {
	return t.episode > 0 && t.episode%t.cfg.Train.GreedyEvery == 0
}

// RunEpisode plays one episode, storing every transition and learning after
// every tick. A failing tick ends the episode with env.DeathError; the
// returned stats are valid either way.
func (t *Trainer) RunEpisode(ctx context.Context) (env.EpisodeStats, error) {
	greedy := t.greedy()
	state := t.world.Reset()
	firstEps := -1.0

	var lossSum float64
	var updates int
	var tickErr error

	for t.world.Active() && t.world.Tick() < t.cfg.Env.MaxTicksPerEpisode {
		if err := ctx.Err(); err != nil {
			t.world.Kill(env.DeathError)
			tickErr = err
			break
		}

		eps := 0.0
		if !greedy {
			eps = agent.Epsilon(t.step)
		}
		if firstEps < 0 {
			firstEps = eps
		}
		action := agent.SelectAction(t.vf, state, eps, t.rng)

		next, reward, done, err := t.world.Step(action)
		if err != nil {
			t.world.Kill(env.DeathError)
			tickErr = fmt.Errorf("tick %d: %w", t.world.Tick(), err)
			break
		}
		t.buffer.Push(memory.Transition{
			State:     state,
			Action:    action,
			Reward:    reward,
			NextState: next,
			Terminal:  done,
		})

		loss, learned, err := t.Learn()
		t.step++
		if err != nil {
			t.world.Kill(env.DeathError)
			tickErr = fmt.Errorf("learn at tick %d: %w", t.world.Tick(), err)
			break
		}
		if learned {
			lossSum += loss
			updates++
		}
		state = next
	}
	if t.world.Active() {
		t.world.Kill(env.DeathTimeout)
	}

	stats := t.world.Stats(0)
	stats.Episode = t.episode
	stats.Epsilon = max(firstEps, 0)
	stats.Updates = updates
	if updates > 0 {
		stats.Loss = lossSum / float64(updates)
	}
	t.episode++

	if tickErr != nil {
		t.log.Warn("episode aborted", "episode", stats.Episode, "ticks", stats.Ticks, "err", tickErr)
		return stats, tickErr
	}
	t.log.Info("episode done",
		"episode", stats.Episode,
		"ticks", stats.Ticks,
		"reward", stats.Reward,
		"fruits", stats.Fruits,
		"death", stats.Death.String(),
		"epsilon", stats.Epsilon,
		"loss", stats.Loss,
		"greedy", greedy,
	)
	return stats, nil
}

// Run plays the configured number of episodes. A failed episode is logged
// and the run moves on; hook errors and cancellation stop the run.
func (t *Trainer) Run(ctx context.Context, hook func(env.EpisodeStats) error) error {
	for i := 0; i < t.cfg.Train.NumEpisodes; i++ {
		// a failed episode is already logged; the next one starts fresh
		stats, _ := t.RunEpisode(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if hook != nil {
			if err := hook(stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewRunner builds an inference runner on a fresh world that shares the
// trainer's value function
func (t *Trainer) NewRunner(rng *rand.Rand) (*Runner, error) {
	world, err := env.NewWorld(t.cfg.World(), rng)
	if err != nil {
		return nil, err
	}
	return NewRunner(world, t.vf, t.cfg.Env.MaxTicksPerEpisode), nil
}
