package train

import (
	"context"
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"snakeai/internal/config"
	"snakeai/internal/env"
	"snakeai/internal/memory"
	"snakeai/internal/nn"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Env.BoardWidth, cfg.Env.BoardHeight = 8, 8
	y := 4
	cfg.Env.StartY = &y
	cfg.Env.MaxTicksPerEpisode = 40
	cfg.NN.HiddenWidth = 16
	cfg.Train.NumEpisodes = 3
	cfg.Train.ReplayCapacity = 64
	return cfg
}

// recordingVF returns fixed values and remembers every update batch
type recordingVF struct {
	values    []float64
	targets   [][]float64
	updateErr error
}

func (r *recordingVF) Evaluate([]float64) []float64 { return append([]float64(nil), r.values...) }

func (r *recordingVF) Update(_ [][]float64, _ []int, targets []float64) (float64, error) {
	if r.updateErr != nil {
		return 0, r.updateErr
	}
	r.targets = append(r.targets, append([]float64(nil), targets...))
	return 0.5, nil
}

func (r *recordingVF) Save() ([]byte, error) { return nil, nil }
func (r *recordingVF) Load([]byte) error     { return nil }

func newRecordingTrainer(t *testing.T, cfg config.Config, vf *recordingVF) *Trainer {
	t.Helper()
	tr, err := NewWithValueFunction(cfg, vf, nil, rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("NewWithValueFunction: %v", err)
	}
	return tr
}

func TestTDTarget(t *testing.T) {
	next := []float64{0.5, 3, -1}
	if got := TDTarget(-1, true, next, 0.8); got != -1 {
		t.Fatalf("terminal target=%v want=-1", got)
	}
	if got := TDTarget(-1, true, nil, 0.3); got != -1 {
		t.Fatalf("terminal target ignores next values, got %v", got)
	}
	if got := TDTarget(0.1, false, next, 0.8); math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("target=%v want=2.5", got)
	}
}

func TestLearnNoopBelowBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.Train.BatchSize = 4
	vf := &recordingVF{values: []float64{0, 0, 0}}
	tr := newRecordingTrainer(t, cfg, vf)

	for i := 0; i < 3; i++ {
		tr.Buffer().Push(memory.Transition{State: make([]float64, 4), NextState: make([]float64, 4)})
		_, learned, err := tr.Learn()
		if err != nil || learned {
			t.Fatalf("Learn with %d transitions: learned=%v err=%v", i+1, learned, err)
		}
	}
	if len(vf.targets) != 0 {
		t.Fatalf("value function updated below batch size")
	}

	tr.Buffer().Push(memory.Transition{State: make([]float64, 4), NextState: make([]float64, 4)})
	loss, learned, err := tr.Learn()
	if err != nil || !learned || loss != 0.5 {
		t.Fatalf("Learn at batch size: loss=%v learned=%v err=%v", loss, learned, err)
	}
}

func TestLearnTargets(t *testing.T) {
	cfg := testConfig()
	cfg.Train.BatchSize = 1
	vf := &recordingVF{values: []float64{1, 2, 3}}

	tr := newRecordingTrainer(t, cfg, vf)
	tr.Buffer().Push(memory.Transition{State: make([]float64, 4), Reward: -1, NextState: []float64{9, 9, 9, 9}, Terminal: true})
	if _, _, err := tr.Learn(); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if got := vf.targets[0][0]; got != -1 {
		t.Fatalf("terminal target=%v want=-1", got)
	}

	tr = newRecordingTrainer(t, cfg, vf)
	tr.Buffer().Push(memory.Transition{State: make([]float64, 4), Reward: 0.1, NextState: make([]float64, 4)})
	if _, _, err := tr.Learn(); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	want := 0.1 + cfg.Train.DiscountFactor*3
	if got := vf.targets[1][0]; math.Abs(got-want) > 1e-12 {
		t.Fatalf("target=%v want=%v", got, want)
	}
}

func TestGlobalStepNeverResets(t *testing.T) {
	tr, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var ticks int
	var episodes []env.EpisodeStats
	err = tr.Run(context.Background(), func(s env.EpisodeStats) error {
		ticks += s.Ticks
		episodes = append(episodes, s)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(episodes) != 3 || tr.Episodes() != 3 {
		t.Fatalf("episodes=%d want=3", len(episodes))
	}
	if tr.GlobalStep() != ticks {
		t.Fatalf("global step=%d want=%d", tr.GlobalStep(), ticks)
	}
	for i, s := range episodes {
		if s.Episode != i {
			t.Errorf("episode index=%d want=%d", s.Episode, i)
		}
		if s.Ticks < 1 || s.Ticks > 40 {
			t.Errorf("episode %d ticks=%d", i, s.Ticks)
		}
		if s.Ticks == 40 && s.Death != env.DeathTimeout {
			t.Errorf("episode %d hit the cap with death=%s", i, s.Death)
		}
		if s.Death == env.DeathNone || s.Death == env.DeathError {
			t.Errorf("episode %d death=%s", i, s.Death)
		}
	}
	if episodes[0].Epsilon != 1 {
		t.Errorf("first episode epsilon=%v want=1", episodes[0].Epsilon)
	}
	if episodes[1].Epsilon >= 1 {
		t.Errorf("second episode epsilon=%v should have decayed", episodes[1].Epsilon)
	}
}

func TestGreedyEpisodeSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Train.GreedyEvery = 2
	cfg.Train.NumEpisodes = 5
	tr, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var eps []float64
	if err := tr.Run(context.Background(), func(s env.EpisodeStats) error {
		eps = append(eps, s.Epsilon)
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, e := range eps {
		greedy := i == 2 || i == 4
		if greedy && e != 0 {
			t.Errorf("episode %d epsilon=%v want 0", i, e)
		}
		if !greedy && e == 0 {
			t.Errorf("episode %d epsilon=0 want exploration", i)
		}
	}
}

func TestFailedTickAbortsEpisodeOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Train.BatchSize = 1
	boom := errors.New("boom")
	tr := newRecordingTrainer(t, cfg, &recordingVF{values: []float64{0, 0, 0}, updateErr: boom})

	stats, err := tr.RunEpisode(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("RunEpisode err=%v want boom", err)
	}
	if stats.Death != env.DeathError || stats.Ticks != 1 {
		t.Fatalf("stats=%+v want one tick ending in error", stats)
	}

	var seen int
	if err := tr.Run(context.Background(), func(s env.EpisodeStats) error {
		seen++
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != cfg.Train.NumEpisodes {
		t.Fatalf("hook saw %d episodes want %d", seen, cfg.Train.NumEpisodes)
	}
	if tr.GlobalStep() != 1+cfg.Train.NumEpisodes {
		t.Fatalf("global step=%d want=%d", tr.GlobalStep(), 1+cfg.Train.NumEpisodes)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tr, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err=%v want context.Canceled", err)
	}
	if tr.GlobalStep() != 0 {
		t.Fatalf("cancelled run took %d steps", tr.GlobalStep())
	}
}

func TestTargetNetworkSync(t *testing.T) {
	cfg := testConfig()
	cfg.Train.BatchSize = 2
	cfg.Train.TargetNetwork = true
	cfg.Train.TargetSyncEvery = 2
	cfg.Train.LearningRate = 1e-2
	tr, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sample := []float64{0.3, 1, 0, 0}
	same := func() bool {
		a, b := tr.vf.Evaluate(sample), tr.target.Evaluate(sample)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if !same() {
		t.Fatalf("target not synced at construction")
	}

	for i := 0; i < 2; i++ {
		tr.Buffer().Push(memory.Transition{State: []float64{0.1, 0, 1, 0}, Action: env.ActionRight, Reward: 1, NextState: sample})
	}
	if _, learned, err := tr.Learn(); err != nil || !learned {
		t.Fatalf("Learn: learned=%v err=%v", learned, err)
	}
	if same() {
		t.Fatalf("target followed the online network before the sync interval")
	}
	if _, _, err := tr.Learn(); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if !same() {
		t.Fatalf("target not synced after %d learning steps", cfg.Train.TargetSyncEvery)
	}
}

func TestRunnerPlaysGreedily(t *testing.T) {
	cfg := testConfig()
	vf, err := NewNetwork(cfg, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	play := func() env.EpisodeStats {
		world, err := env.NewWorld(cfg.World(), rand.New(rand.NewSource(21)))
		if err != nil {
			t.Fatalf("NewWorld: %v", err)
		}
		stats, err := NewRunner(world, vf, cfg.Env.MaxTicksPerEpisode).Play(21)
		if err != nil {
			t.Fatalf("Play: %v", err)
		}
		return stats
	}
	a, b := play(), play()
	if a != b {
		t.Fatalf("greedy play not reproducible: %+v vs %+v", a, b)
	}
	if a.Ticks > cfg.Env.MaxTicksPerEpisode || a.Death == env.DeathNone {
		t.Fatalf("stats=%+v", a)
	}
}

func TestRunnerAfterEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Env.MaxTicksPerEpisode = 3
	tr, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, err := tr.NewRunner(rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if _, err := r.Play(2); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, done, err := r.Tick(); !done || !errors.Is(err, env.ErrTerminated) {
		t.Fatalf("Tick after end: done=%v err=%v", done, err)
	}
	r.Reset()
	if !r.World().Active() || r.World().Tick() != 0 {
		t.Fatalf("Reset did not start a new episode")
	}
}

func TestSaveLoadThroughTrainer(t *testing.T) {
	tr, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	blob, err := tr.ValueFunction().Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := NewNetwork(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	if err := restored.Load(blob); err != nil {
		t.Fatalf("Load: %v", err)
	}
	state := tr.World().State()
	a, b := tr.ValueFunction().Evaluate(state), restored.Evaluate(state)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("restored value %d: %v != %v", i, b[i], a[i])
		}
	}

	other := testConfig()
	other.NN.HiddenWidth = 8
	wrong, _ := NewNetwork(other, nil)
	if err := wrong.Load(blob); !errors.Is(err, nn.ErrIncompatibleArchitecture) {
		t.Fatalf("Load into smaller net err=%v", err)
	}
}

func TestTrainingReproducibleFromSeed(t *testing.T) {
	for _, obs := range []string{env.ObsEgo, env.ObsFlat} {
		t.Run(obs, func(t *testing.T) {
			cfg := testConfig()
			cfg.Env.Obs = obs
			cfg.Train.NumEpisodes = 5
			cfg.Seed = 7

			run := func() ([]env.EpisodeStats, *Trainer) {
				tr, err := New(cfg, nil)
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				var stats []env.EpisodeStats
				if err := tr.Run(context.Background(), func(s env.EpisodeStats) error {
					stats = append(stats, s)
					return nil
				}); err != nil {
					t.Fatalf("Run: %v", err)
				}
				return stats, tr
			}
			a, trA := run()
			b, trB := run()

			if len(a) != cfg.Train.NumEpisodes || len(b) != len(a) {
				t.Fatalf("episodes=%d,%d want %d", len(a), len(b), cfg.Train.NumEpisodes)
			}
			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("episode %d differs:\n%+v\n%+v", i, a[i], b[i])
				}
			}
			if trA.GlobalStep() != trB.GlobalStep() {
				t.Fatalf("global step %d != %d", trA.GlobalStep(), trB.GlobalStep())
			}

			state := trA.World().State()
			if len(state) != cfg.ObsDim() {
				t.Fatalf("state len=%d want %d", len(state), cfg.ObsDim())
			}
			qa, qb := trA.ValueFunction().Evaluate(state), trB.ValueFunction().Evaluate(state)
			for i := range qa {
				if qa[i] != qb[i] {
					t.Fatalf("Q[%d]: %v != %v", i, qa[i], qb[i])
				}
			}
		})
	}
}
