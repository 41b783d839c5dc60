package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"snakeai/internal/config"
	"snakeai/internal/env"
	"snakeai/internal/eval"
	"snakeai/internal/logging"
	"snakeai/internal/train"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to config file")
	episodes := flag.Int("episodes", 0, "number of episodes to run (overrides config)")
	seed := flag.Uint64("seed", 0, "random seed (overrides config)")
	evalSeeds := flag.Int("eval-seeds", 0, "evaluate final.json on this many consecutive seeds after training")
	evalBase := flag.Uint64("eval-base", 1000, "first seed of the final evaluation")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *episodes > 0 {
		cfg.Train.NumEpisodes = *episodes
	}
	if *seed > 0 {
		cfg.Seed = *seed
	}

	log, err := logging.NewSlog(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	h1, h2 := cfg.Hidden()
	fmt.Printf("Snake Q-learning trainer - run %s\n", runID)
	fmt.Printf("Config: %s, Seed: %d\n", *configPath, cfg.Seed)
	fmt.Printf("Board: %dx%d, Obs: %s (dim=%d), Hidden: %d/%d\n",
		cfg.Env.BoardWidth, cfg.Env.BoardHeight, cfg.Env.Obs, cfg.ObsDim(), h1, h2)
	fmt.Printf("Episodes: %d, Batch: %d, Gamma: %.2f, LR: %g, Replay: %d, Target net: %v\n",
		cfg.Train.NumEpisodes, cfg.Train.BatchSize, cfg.Train.DiscountFactor,
		cfg.Train.LearningRate, cfg.Train.ReplayCapacity, cfg.Train.TargetNetwork)
	fmt.Println("---")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, runID, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *evalSeeds > 0 {
		path := filepath.Join(cfg.Logging.CheckpointDir, "final.json")
		if err := evaluateFinal(cfg, path, *evalBase, *evalSeeds); err != nil {
			fmt.Fprintf(os.Stderr, "Error evaluating %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, cfg config.Config, runID string, log *slog.Logger) error {
	trainer, err := train.New(cfg, log)
	if err != nil {
		return fmt.Errorf("create trainer: %w", err)
	}
	evaluator := eval.NewEvaluator(cfg)

	logger, err := logging.NewLogger(runID, cfg.Logging.CSVPath, cfg.Logging.JSONPath)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	var parquetOut *logging.EpisodeWriter
	if cfg.Logging.ParquetPath != "" {
		if parquetOut, err = logging.NewEpisodeWriter(runID, cfg.Logging.ParquetPath); err != nil {
			return err
		}
	}

	bestScore := 0.0
	haveBest := false
	startTime := time.Now()

	hook := func(stats env.EpisodeStats) error {
		if err := logger.LogEpisode(stats); err != nil {
			return fmt.Errorf("log episode: %w", err)
		}
		if parquetOut != nil {
			if err := parquetOut.WriteEpisode(stats); err != nil {
				return fmt.Errorf("parquet: %w", err)
			}
		}

		n := stats.Episode + 1
		if n%cfg.Eval.BenchmarkEvery == 0 {
			agg, err := evaluator.RunBenchmark(trainer.ValueFunction())
			if err != nil {
				return fmt.Errorf("benchmark: %w", err)
			}
			score := evaluator.Score(agg)
			log.Info("benchmark",
				"episode", stats.Episode,
				"reward_mean", agg.RewardMean,
				"reward_std", agg.RewardStd,
				"ticks_mean", agg.TicksMean,
				"fruits_mean", agg.FruitsMean,
				"score", score,
			)
			if !haveBest || score > bestScore {
				bestScore, haveBest = score, true
				path := filepath.Join(cfg.Logging.CheckpointDir, "best.json")
				if err := saveCheckpoint(path, cfg, runID, trainer, stats.Episode, score); err != nil {
					log.Warn("save best checkpoint", "err", err)
				}
				saveReplay(cfg, trainer, evaluator, stats.Episode, log)
			}
		}

		if n%cfg.Logging.CheckpointEvery == 0 {
			path := filepath.Join(cfg.Logging.CheckpointDir, fmt.Sprintf("episode_%d.json", n))
			if err := saveCheckpoint(path, cfg, runID, trainer, stats.Episode, 0); err != nil {
				log.Warn("save checkpoint", "err", err)
			}
		}
		return nil
	}

	runErr := trainer.Run(ctx, hook)

	finalPath := filepath.Join(cfg.Logging.CheckpointDir, "final.json")
	if err := saveCheckpoint(finalPath, cfg, runID, trainer, trainer.Episodes()-1, bestScore); err != nil {
		log.Warn("save final checkpoint", "err", err)
	}
	if parquetOut != nil {
		path, err := parquetOut.Finalize()
		if err != nil {
			log.Warn("finalize parquet", "err", err)
		} else if path != "" {
			log.Info("wrote episodes", "path", path, "rows", parquetOut.Rows())
		}
	}

	fmt.Println("---")
	fmt.Printf("Training finished: %d episodes, %d steps in %v\n",
		trainer.Episodes(), trainer.GlobalStep(), time.Since(startTime).Round(time.Millisecond))
	if haveBest {
		fmt.Printf("Best benchmark score: %.3f\n", bestScore)
	}
	return runErr
}

// evaluateFinal replays the saved final network greedily on n seeds
func evaluateFinal(cfg config.Config, path string, base uint64, n int) error {
	ckpt, err := logging.LoadCheckpoint(path)
	if err != nil {
		return err
	}
	episodes, agg, err := eval.NewEvaluator(cfg).EvaluateMultiSeed(ckpt.Params, base, n)
	if err != nil {
		return err
	}

	worst := episodes[0]
	for _, ep := range episodes[1:] {
		if ep.Reward < worst.Reward {
			worst = ep
		}
	}
	fmt.Printf("Final evaluation on seeds %d..%d:\n", base, base+uint64(n)-1)
	fmt.Printf("  Reward: %.2f ± %.2f, Fruits: %.2f, Ticks: %.1f ± %.1f\n",
		agg.RewardMean, agg.RewardStd, agg.FruitsMean, agg.TicksMean, agg.TicksStd)
	for reason, count := range agg.DeathCounts {
		fmt.Printf("  %s: %d\n", reason, count)
	}
	fmt.Printf("  Worst seed %d: reward %.2f (%s after %d ticks)\n",
		worst.Seed, worst.Reward, worst.Death, worst.Ticks)
	return nil
}

func saveCheckpoint(path string, cfg config.Config, runID string, trainer *train.Trainer, episode int, score float64) error {
	blob, err := trainer.ValueFunction().Save()
	if err != nil {
		return err
	}
	h1, h2 := cfg.Hidden()
	return logging.SaveCheckpoint(path, logging.Checkpoint{
		RunID:      runID,
		Episode:    episode,
		GlobalStep: trainer.GlobalStep(),
		Score:      score,
		ObsDim:     cfg.ObsDim(),
		Hidden1:    h1,
		Hidden2:    h2,
		Params:     blob,
	})
}

func saveReplay(cfg config.Config, trainer *train.Trainer, evaluator *eval.Evaluator, episode int, log *slog.Logger) {
	blob, err := trainer.ValueFunction().Save()
	if err != nil {
		log.Warn("save replay", "err", err)
		return
	}
	seed := cfg.Eval.BenchmarkSeeds[0]
	replay, _, err := evaluator.EvaluateWithReplay(blob, seed)
	if err != nil {
		log.Warn("record replay", "err", err)
		return
	}
	path := filepath.Join(cfg.Logging.ReplayDir, fmt.Sprintf("replay_ep%d.json", episode+1))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn("save replay", "err", err)
		return
	}
	if err := replay.Save(path); err != nil {
		log.Warn("save replay", "err", err)
	}
}
