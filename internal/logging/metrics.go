package logging

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"snakeai/internal/env"
)

// Logger writes one CSV row and one JSON line per episode
type Logger struct {
	runID       string
	csvPath     string
	jsonPath    string
	csvFile     *os.File
	csvWriter   *csv.Writer
	jsonFile    *os.File
	initialized bool
}

// NewLogger creates a new logger for the run
func NewLogger(runID, csvPath, jsonPath string) (*Logger, error) {
	l := &Logger{
		runID:    runID,
		csvPath:  csvPath,
		jsonPath: jsonPath,
	}

	if err := os.MkdirAll(filepath.Dir(csvPath), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(jsonPath), 0755); err != nil {
		return nil, err
	}

	return l, nil
}

var csvHeader = []string{
	"run_id", "episode", "ticks", "reward", "fruits", "length", "death", "epsilon", "loss", "updates",
}

// Init creates the log files and writes the CSV header
func (l *Logger) Init() error {
	var err error

	l.csvFile, err = os.Create(l.csvPath)
	if err != nil {
		return err
	}
	l.csvWriter = csv.NewWriter(l.csvFile)
	if err := l.csvWriter.Write(csvHeader); err != nil {
		return err
	}

	l.jsonFile, err = os.OpenFile(l.jsonPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	l.initialized = true
	return nil
}

// Close flushes and closes all log files
func (l *Logger) Close() error {
	var firstErr error
	if l.csvWriter != nil {
		l.csvWriter.Flush()
		firstErr = l.csvWriter.Error()
	}
	if l.csvFile != nil {
		if err := l.csvFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.jsonFile != nil {
		if err := l.jsonFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.initialized = false
	return firstErr
}

// EpisodeSummary is the JSON form of one episode
type EpisodeSummary struct {
	RunID   string  `json:"run_id"`
	Episode int     `json:"episode"`
	Ticks   int     `json:"ticks"`
	Reward  float64 `json:"reward"`
	Fruits  int     `json:"fruits"`
	Length  int     `json:"length"`
	Death   string  `json:"death"`
	Epsilon float64 `json:"epsilon"`
	Loss    float64 `json:"loss"`
	Updates int     `json:"updates"`
}

// Summarize converts episode stats into a log record for the run
func Summarize(runID string, stats env.EpisodeStats) EpisodeSummary {
	return EpisodeSummary{
		RunID:   runID,
		Episode: stats.Episode,
		Ticks:   stats.Ticks,
		Reward:  stats.Reward,
		Fruits:  stats.Fruits,
		Length:  stats.Length,
		Death:   stats.Death.String(),
		Epsilon: stats.Epsilon,
		Loss:    stats.Loss,
		Updates: stats.Updates,
	}
}

// LogEpisode appends one episode to the CSV and JSONL files
func (l *Logger) LogEpisode(stats env.EpisodeStats) error {
	if !l.initialized {
		return nil
	}
	s := Summarize(l.runID, stats)

	row := []string{
		s.RunID,
		strconv.Itoa(s.Episode),
		strconv.Itoa(s.Ticks),
		fmt.Sprintf("%.2f", s.Reward),
		strconv.Itoa(s.Fruits),
		strconv.Itoa(s.Length),
		s.Death,
		fmt.Sprintf("%.4f", s.Epsilon),
		fmt.Sprintf("%.6f", s.Loss),
		strconv.Itoa(s.Updates),
	}
	if err := l.csvWriter.Write(row); err != nil {
		return err
	}
	l.csvWriter.Flush()
	if err := l.csvWriter.Error(); err != nil {
		return err
	}

	line, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = l.jsonFile.Write(append(line, '\n'))
	return err
}
