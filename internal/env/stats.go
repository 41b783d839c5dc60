package env

import (
	"gonum.org/v1/gonum/stat"
)

// DeathReason indicates how the episode ended
type DeathReason int

const (
	DeathNone      DeathReason = iota
	DeathSelf                  // head ran into the body
	DeathBoardFull             // no free cell left for food
	DeathTimeout               // tick cap reached
	DeathError                 // tick failed and the episode was aborted
)

func (d DeathReason) String() string {
	switch d {
	case DeathNone:
		return "none"
	case DeathSelf:
		return "self"
	case DeathBoardFull:
		return "board_full"
	case DeathTimeout:
		return "timeout"
	case DeathError:
		return "error"
	default:
		return "unknown"
	}
}

// EpisodeStats captures all metrics from a single episode
type EpisodeStats struct {
	Episode int         // episode index within the run
	Reward  float64     // summed reward
	Fruits  int         // number of captures
	Ticks   int         // number of ticks survived
	Length  int         // body length at the end
	Death   DeathReason // how the episode ended
	Seed    uint64      // seed of the world's food source, 0 when shared
	Epsilon float64     // exploration rate at the first tick
	Loss    float64     // mean loss over the episode's learning steps
	Updates int         // number of learning steps taken
}

// AggregatedStats holds statistics across multiple episodes
type AggregatedStats struct {
	RewardMean  float64
	RewardStd   float64
	FruitsMean  float64
	TicksMean   float64
	TicksStd    float64
	DeathCounts map[DeathReason]int
	NumEpisodes int
}

// Aggregate computes statistics from multiple episode stats
func Aggregate(episodes []EpisodeStats) AggregatedStats {
	agg := AggregatedStats{
		DeathCounts: make(map[DeathReason]int),
		NumEpisodes: len(episodes),
	}
	if len(episodes) == 0 {
		return agg
	}

	rewards := make([]float64, len(episodes))
	fruits := make([]float64, len(episodes))
	ticks := make([]float64, len(episodes))
	for i, ep := range episodes {
		rewards[i] = ep.Reward
		fruits[i] = float64(ep.Fruits)
		ticks[i] = float64(ep.Ticks)
		agg.DeathCounts[ep.Death]++
	}

	agg.RewardMean, agg.RewardStd = meanStd(rewards)
	agg.TicksMean, agg.TicksStd = meanStd(ticks)
	agg.FruitsMean = stat.Mean(fruits, nil)
	return agg
}

// meanStd returns the mean and the population standard deviation
func meanStd(x []float64) (float64, float64) {
	mean := stat.Mean(x, nil)
	return mean, stat.PopStdDev(x, nil)
}

// RobustnessScore computes the ranking score: mean - lambda * std
func (a AggregatedStats) RobustnessScore(lambda float64) float64 {
	return a.RewardMean - lambda*a.RewardStd
}
