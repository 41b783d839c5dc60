package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snakeai/internal/env"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	w := cfg.World()
	if w.Width != 20 || w.Height != 15 || w.StartLength != 2 {
		t.Fatalf("world=%+v", w)
	}
	if w.Start != (env.Point{X: 0, Y: 7}) || w.Heading != env.HeadingRight {
		t.Fatalf("start=%v heading=%s", w.Start, w.Heading)
	}
	tr := cfg.Train
	if tr.NumEpisodes != 100 || tr.BatchSize != 4 || tr.DiscountFactor != 0.8 || tr.LearningRate != 1e-3 || tr.ReplayCapacity != 1000 {
		t.Fatalf("train=%+v", tr)
	}
	if tr.TargetNetwork {
		t.Fatalf("target network should be off by default")
	}
	if h1, h2 := cfg.Hidden(); h1 != 128 || h2 != 128 {
		t.Fatalf("hidden=%d,%d want 128,128", h1, h2)
	}
	if cfg.ObsDim() != 4 {
		t.Fatalf("ObsDim=%d want=4", cfg.ObsDim())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
seed: 42
env:
  board_width: 8
  board_height: 6
  start_y: 0
  heading: up
  obs: flat
nn:
  hidden_width: 32
  hidden_layers: 1
train:
  batch_size: 16
  discount_factor: 0.95
  replay_capacity: 64
  target_network: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 42 || cfg.Train.BatchSize != 16 || cfg.Train.DiscountFactor != 0.95 || !cfg.Train.TargetNetwork {
		t.Fatalf("cfg=%+v", cfg)
	}
	w := cfg.World()
	if w.Start != (env.Point{X: 0, Y: 0}) || w.Heading != env.HeadingUp || w.Obs != env.ObsFlat {
		t.Fatalf("world=%+v", w)
	}
	if cfg.ObsDim() != 48 {
		t.Fatalf("ObsDim=%d want=48", cfg.ObsDim())
	}
	if h1, h2 := cfg.Hidden(); h1 != 32 || h2 != 0 {
		t.Fatalf("hidden=%d,%d want 32,0", h1, h2)
	}
	if cfg.Train.NumEpisodes != 100 {
		t.Fatalf("unset num_episodes=%d want default 100", cfg.Train.NumEpisodes)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"discount above one", "train:\n  discount_factor: 1.5\n", "discount_factor"},
		{"negative discount", "train:\n  discount_factor: -0.1\n", "discount_factor"},
		{"replay smaller than batch", "train:\n  batch_size: 64\n  replay_capacity: 8\n", "replay_capacity"},
		{"start off board", "env:\n  board_width: 4\n  start_x: 4\n", "start position"},
		{"unknown obs", "env:\n  obs: pixels\n", "obs"},
		{"unknown heading", "env:\n  heading: north\n", "heading"},
		{"three hidden layers", "nn:\n  hidden_layers: 3\n", "hidden_layers"},
		{"bad yaml", "train: [", "parse"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err=%v want mention of %q", err, c.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
