package eval

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"

	"snakeai/internal/agent"
	"snakeai/internal/config"
	"snakeai/internal/env"
	"snakeai/internal/train"
)

// Evaluator plays greedy episodes of a saved value function on fixed seeds
type Evaluator struct {
	cfg     config.Config
	workers int
}

// NewEvaluator creates a new evaluator
func NewEvaluator(cfg config.Config) *Evaluator {
	workers := cfg.Eval.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{cfg: cfg, workers: workers}
}

// runner builds a world seeded with seed and a private copy of the network
func (e *Evaluator) runner(blob []byte, seed uint64) (*train.Runner, error) {
	world, err := env.NewWorld(e.cfg.World(), rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	vf, err := train.NewNetwork(e.cfg, nil)
	if err != nil {
		return nil, err
	}
	if err := vf.Load(blob); err != nil {
		return nil, err
	}
	return train.NewRunner(world, vf, e.cfg.Env.MaxTicksPerEpisode), nil
}

// EvaluateSeed plays one greedy episode with the parameters in blob
func (e *Evaluator) EvaluateSeed(blob []byte, seed uint64) (env.EpisodeStats, error) {
	r, err := e.runner(blob, seed)
	if err != nil {
		return env.EpisodeStats{}, err
	}
	return r.Play(seed)
}

// EvaluateSeeds plays one episode per seed on a bounded worker pool and
// returns the stats in seed order
func (e *Evaluator) EvaluateSeeds(blob []byte, seeds []uint64) ([]env.EpisodeStats, error) {
	episodes := make([]env.EpisodeStats, len(seeds))
	errs := make([]error, len(seeds))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for i, seed := range seeds {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, seed uint64) {
			defer wg.Done()
			defer func() { <-sem }()
			episodes[i], errs[i] = e.EvaluateSeed(blob, seed)
		}(i, seed)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", seeds[i], err)
		}
	}
	return episodes, nil
}

// ConsecutiveSeeds returns n seeds counting up from base
func ConsecutiveSeeds(base uint64, n int) []uint64 {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = base + uint64(i)
	}
	return seeds
}

// EvaluateMultiSeed plays the network in blob on numSeeds consecutive seeds
// from baseSeed and returns the per-seed stats with their aggregate
func (e *Evaluator) EvaluateMultiSeed(blob []byte, baseSeed uint64, numSeeds int) ([]env.EpisodeStats, env.AggregatedStats, error) {
	if numSeeds < 1 {
		return nil, env.AggregatedStats{}, fmt.Errorf("eval: need at least one seed, got %d", numSeeds)
	}
	episodes, err := e.EvaluateSeeds(blob, ConsecutiveSeeds(baseSeed, numSeeds))
	if err != nil {
		return nil, env.AggregatedStats{}, err
	}
	return episodes, env.Aggregate(episodes), nil
}

// RunBenchmark evaluates vf on the fixed benchmark seed suite
func (e *Evaluator) RunBenchmark(vf agent.ValueFunction) (env.AggregatedStats, error) {
	blob, err := vf.Save()
	if err != nil {
		return env.AggregatedStats{}, err
	}
	episodes, err := e.EvaluateSeeds(blob, e.cfg.Eval.BenchmarkSeeds)
	if err != nil {
		return env.AggregatedStats{}, err
	}
	return env.Aggregate(episodes), nil
}

// Score ranks benchmark results: mean reward minus lambda times its spread
func (e *Evaluator) Score(agg env.AggregatedStats) float64 {
	return agg.RobustnessScore(e.cfg.Eval.RobustnessLambda)
}

// EvaluateWithReplay runs an episode and records actions for replay
func (e *Evaluator) EvaluateWithReplay(blob []byte, seed uint64) (*env.Replay, env.EpisodeStats, error) {
	r, err := e.runner(blob, seed)
	if err != nil {
		return nil, env.EpisodeStats{}, err
	}
	replay := env.NewReplay(seed, e.cfg.World())
	r.Record(replay)

	stats, err := r.Play(seed)
	if err != nil {
		return nil, stats, err
	}
	replay.SetFinalStats(stats)
	return replay, stats, nil
}
