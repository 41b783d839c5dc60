package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"snakeai/internal/env"
)

// Config is the root configuration structure. It is read once and passed by
// value; nothing mutates it after Load.
type Config struct {
	Seed    uint64      `yaml:"seed"`
	Env     EnvConfig   `yaml:"env"`
	NN      NNConfig    `yaml:"nn"`
	Train   TrainConfig `yaml:"train"`
	Eval    EvalConfig  `yaml:"eval"`
	Logging LogConfig   `yaml:"logging"`
}

// EnvConfig defines environment parameters
type EnvConfig struct {
	BoardWidth         int    `yaml:"board_width"`
	BoardHeight        int    `yaml:"board_height"`
	InitialSnakeLength int    `yaml:"initial_snake_length"`
	MaxTicksPerEpisode int    `yaml:"max_ticks_per_episode"`
	StartX             int    `yaml:"start_x"`
	StartY             *int   `yaml:"start_y"` // nil means height/2
	Heading            string `yaml:"heading"` // up|right|down|left
	Obs                string `yaml:"obs"`     // ego|flat
}

// NNConfig defines the value network architecture
type NNConfig struct {
	HiddenWidth  int `yaml:"hidden_width"`
	HiddenLayers int `yaml:"hidden_layers"` // 1 or 2
}

// TrainConfig defines the learning loop
type TrainConfig struct {
	NumEpisodes     int     `yaml:"num_episodes"`
	BatchSize       int     `yaml:"batch_size"`
	DiscountFactor  float64 `yaml:"discount_factor"`
	LearningRate    float64 `yaml:"learning_rate"`
	ReplayCapacity  int     `yaml:"replay_capacity"`
	TargetNetwork   bool    `yaml:"target_network"`
	TargetSyncEvery int     `yaml:"target_sync_every"`
	GreedyEvery     int     `yaml:"greedy_every"`
}

// EvalConfig defines evaluation parameters
type EvalConfig struct {
	RobustnessLambda float64  `yaml:"robustness_lambda"`
	BenchmarkEvery   int      `yaml:"benchmark_every"`
	BenchmarkSeeds   []uint64 `yaml:"benchmark_seeds"`
	Workers          int      `yaml:"workers"`
}

// LogConfig defines logging parameters
type LogConfig struct {
	Level           string `yaml:"level"`  // debug|info|warn|error
	Format          string `yaml:"format"` // text|json
	CSVPath         string `yaml:"csv_path"`
	JSONPath        string `yaml:"json_path"`
	ParquetPath     string `yaml:"parquet_path"` // empty disables the export
	CheckpointDir   string `yaml:"checkpoint_dir"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
	ReplayDir       string `yaml:"replay_dir"`
}

// Default returns a configuration with every field at its default
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads a YAML config file, fills defaults and validates the result
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Seed == 0 {
		cfg.Seed = 1337
	}
	if cfg.Env.BoardWidth == 0 {
		cfg.Env.BoardWidth = 20
	}
	if cfg.Env.BoardHeight == 0 {
		cfg.Env.BoardHeight = 15
	}
	if cfg.Env.InitialSnakeLength == 0 {
		cfg.Env.InitialSnakeLength = 2
	}
	if cfg.Env.MaxTicksPerEpisode == 0 {
		cfg.Env.MaxTicksPerEpisode = 1000
	}
	if cfg.Env.StartY == nil {
		y := cfg.Env.BoardHeight / 2
		cfg.Env.StartY = &y
	}
	if cfg.Env.Heading == "" {
		cfg.Env.Heading = "right"
	}
	if cfg.Env.Obs == "" {
		cfg.Env.Obs = env.ObsEgo
	}
	if cfg.NN.HiddenWidth == 0 {
		cfg.NN.HiddenWidth = 128
	}
	if cfg.NN.HiddenLayers == 0 {
		cfg.NN.HiddenLayers = 2
	}
	if cfg.Train.NumEpisodes == 0 {
		cfg.Train.NumEpisodes = 100
	}
	if cfg.Train.BatchSize == 0 {
		cfg.Train.BatchSize = 4
	}
	if cfg.Train.DiscountFactor == 0 {
		cfg.Train.DiscountFactor = 0.8
	}
	if cfg.Train.LearningRate == 0 {
		cfg.Train.LearningRate = 1e-3
	}
	if cfg.Train.ReplayCapacity == 0 {
		cfg.Train.ReplayCapacity = 1000
	}
	if cfg.Train.TargetSyncEvery == 0 {
		cfg.Train.TargetSyncEvery = 100
	}
	if cfg.Train.GreedyEvery == 0 {
		cfg.Train.GreedyEvery = 25
	}
	if cfg.Eval.RobustnessLambda == 0 {
		cfg.Eval.RobustnessLambda = 0.25
	}
	if cfg.Eval.BenchmarkEvery == 0 {
		cfg.Eval.BenchmarkEvery = 25
	}
	if len(cfg.Eval.BenchmarkSeeds) == 0 {
		cfg.Eval.BenchmarkSeeds = []uint64{2000, 2001, 2002, 2003, 2004, 2005, 2006, 2007, 2008, 2009}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.CSVPath == "" {
		cfg.Logging.CSVPath = "runs/run.csv"
	}
	if cfg.Logging.JSONPath == "" {
		cfg.Logging.JSONPath = "runs/run.jsonl"
	}
	if cfg.Logging.CheckpointDir == "" {
		cfg.Logging.CheckpointDir = "runs/checkpoints"
	}
	if cfg.Logging.CheckpointEvery == 0 {
		cfg.Logging.CheckpointEvery = 25
	}
	if cfg.Logging.ReplayDir == "" {
		cfg.Logging.ReplayDir = "runs/replays"
	}
}

// Validate rejects configurations the trainer cannot run with
func (c Config) Validate() error {
	e := c.Env
	if e.BoardWidth < 1 || e.BoardHeight < 1 || e.BoardWidth*e.BoardHeight < 2 {
		return fmt.Errorf("config: board %dx%d too small", e.BoardWidth, e.BoardHeight)
	}
	if e.InitialSnakeLength < 1 {
		return fmt.Errorf("config: initial_snake_length %d must be positive", e.InitialSnakeLength)
	}
	if e.MaxTicksPerEpisode < 1 {
		return fmt.Errorf("config: max_ticks_per_episode %d must be positive", e.MaxTicksPerEpisode)
	}
	if e.StartY == nil || e.StartX < 0 || e.StartX >= e.BoardWidth || *e.StartY < 0 || *e.StartY >= e.BoardHeight {
		return fmt.Errorf("config: start position outside %dx%d board", e.BoardWidth, e.BoardHeight)
	}
	if _, err := ParseHeading(e.Heading); err != nil {
		return err
	}
	if e.Obs != env.ObsEgo && e.Obs != env.ObsFlat {
		return fmt.Errorf("config: unknown obs %q", e.Obs)
	}

	if c.NN.HiddenWidth < 1 {
		return fmt.Errorf("config: hidden_width %d must be positive", c.NN.HiddenWidth)
	}
	if c.NN.HiddenLayers != 1 && c.NN.HiddenLayers != 2 {
		return fmt.Errorf("config: hidden_layers %d must be 1 or 2", c.NN.HiddenLayers)
	}

	t := c.Train
	if t.NumEpisodes < 1 {
		return fmt.Errorf("config: num_episodes %d must be positive", t.NumEpisodes)
	}
	if t.BatchSize < 1 {
		return fmt.Errorf("config: batch_size %d must be positive", t.BatchSize)
	}
	if t.DiscountFactor <= 0 || t.DiscountFactor > 1 {
		return fmt.Errorf("config: discount_factor %v outside (0, 1]", t.DiscountFactor)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("config: learning_rate %v must be positive", t.LearningRate)
	}
	if t.ReplayCapacity < t.BatchSize {
		return fmt.Errorf("config: replay_capacity %d smaller than batch_size %d", t.ReplayCapacity, t.BatchSize)
	}
	if t.TargetSyncEvery < 1 || t.GreedyEvery < 1 {
		return fmt.Errorf("config: target_sync_every and greedy_every must be positive")
	}

	if c.Eval.BenchmarkEvery < 1 || c.Logging.CheckpointEvery < 1 {
		return fmt.Errorf("config: benchmark_every and checkpoint_every must be positive")
	}
	return nil
}

// ParseHeading maps a heading name to env.Heading
func ParseHeading(s string) (env.Heading, error) {
	switch s {
	case "up":
		return env.HeadingUp, nil
	case "right":
		return env.HeadingRight, nil
	case "down":
		return env.HeadingDown, nil
	case "left":
		return env.HeadingLeft, nil
	default:
		return 0, fmt.Errorf("config: unknown heading %q", s)
	}
}

// World returns the world layout described by the env section
func (c Config) World() env.WorldConfig {
	heading, _ := ParseHeading(c.Env.Heading)
	y := c.Env.BoardHeight / 2
	if c.Env.StartY != nil {
		y = *c.Env.StartY
	}
	return env.WorldConfig{
		Width:       c.Env.BoardWidth,
		Height:      c.Env.BoardHeight,
		StartLength: c.Env.InitialSnakeLength,
		Start:       env.Point{X: c.Env.StartX, Y: y},
		Heading:     heading,
		Obs:         c.Env.Obs,
	}
}

// ObsDim returns the observation dimension for the configured obs type
func (c Config) ObsDim() int {
	return env.ObsDim(c.Env.Obs, c.Env.BoardWidth, c.Env.BoardHeight)
}

// Hidden returns the two hidden layer widths, the second zero when absent
func (c Config) Hidden() (int, int) {
	if c.NN.HiddenLayers == 1 {
		return c.NN.HiddenWidth, 0
	}
	return c.NN.HiddenWidth, c.NN.HiddenWidth
}
