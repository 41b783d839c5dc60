package env

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/rand"
)

// Replay stores a deterministic action trace for playback
type Replay struct {
	Seed       uint64       `json:"seed"`
	Actions    []Action     `json:"actions"`
	FinalStats EpisodeStats `json:"final_stats"`
	Config     ReplayConfig `json:"config"`
}

// ReplayConfig stores environment config for replay
type ReplayConfig struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	StartLength int     `json:"start_length"`
	StartX      int     `json:"start_x"`
	StartY      int     `json:"start_y"`
	Heading     Heading `json:"heading"`
	Obs         string  `json:"obs"`
}

// NewReplay creates a new replay recorder for a world whose food source was
// seeded with seed
func NewReplay(seed uint64, cfg WorldConfig) *Replay {
	return &Replay{
		Seed:    seed,
		Actions: make([]Action, 0, 256),
		Config: ReplayConfig{
			Width:       cfg.Width,
			Height:      cfg.Height,
			StartLength: cfg.StartLength,
			StartX:      cfg.Start.X,
			StartY:      cfg.Start.Y,
			Heading:     cfg.Heading,
			Obs:         cfg.Obs,
		},
	}
}

// WorldConfig rebuilds the world layout the replay was recorded with
func (c ReplayConfig) WorldConfig() WorldConfig {
	return WorldConfig{
		Width:       c.Width,
		Height:      c.Height,
		StartLength: c.StartLength,
		Start:       Point{X: c.StartX, Y: c.StartY},
		Heading:     c.Heading,
		Obs:         c.Obs,
	}
}

// Record adds an action to the replay
func (r *Replay) Record(action Action) {
	r.Actions = append(r.Actions, action)
}

// SetFinalStats sets the final episode statistics
func (r *Replay) SetFinalStats(stats EpisodeStats) {
	r.FinalStats = stats
}

// Save writes the replay to a file
func (r *Replay) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadReplay loads a replay from a file
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Replay
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Playback recreates the world from the replay
func (r *Replay) Playback() (*World, error) {
	return NewWorld(r.Config.WorldConfig(), rand.New(rand.NewSource(r.Seed)))
}

// PlaybackStep runs the replay up to step n
func (r *Replay) PlaybackStep(w *World, step int) error {
	if step > len(r.Actions) {
		step = len(r.Actions)
	}
	for i := 0; i < step && w.Active(); i++ {
		if _, _, _, err := w.Step(r.Actions[i]); err != nil {
			return fmt.Errorf("replay step %d: %w", i, err)
		}
	}
	return nil
}
