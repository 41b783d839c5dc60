package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"snakeai/internal/env"
)

// EpisodeRow is one episode in the parquet export
type EpisodeRow struct {
	RunID   string  `parquet:"run_id,dict"`
	Episode int32   `parquet:"episode"`
	Ticks   int32   `parquet:"ticks"`
	Reward  float64 `parquet:"reward"`
	Fruits  int32   `parquet:"fruits"`
	Length  int32   `parquet:"length"`
	Death   string  `parquet:"death,dict"`
	Epsilon float64 `parquet:"epsilon"`
	Loss    float64 `parquet:"loss"`
	Updates int32   `parquet:"updates"`
}

// NewEpisodeRow converts episode stats into a parquet row
func NewEpisodeRow(runID string, stats env.EpisodeStats) EpisodeRow {
	return EpisodeRow{
		RunID:   runID,
		Episode: int32(stats.Episode),
		Ticks:   int32(stats.Ticks),
		Reward:  stats.Reward,
		Fruits:  int32(stats.Fruits),
		Length:  int32(stats.Length),
		Death:   stats.Death.String(),
		Epsilon: stats.Epsilon,
		Loss:    stats.Loss,
		Updates: int32(stats.Updates),
	}
}

// EpisodeWriter streams episode rows into a parquet file. Rows go to a
// temporary file that Finalize moves into place.
type EpisodeWriter struct {
	runID   string
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[EpisodeRow]
	rows   int
}

// NewEpisodeWriter opens a writer whose finished file lands at outPath
func NewEpisodeWriter(runID, outPath string) (*EpisodeWriter, error) {
	if outPath == "" {
		return nil, fmt.Errorf("outPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create parquet dir: %w", err)
	}
	tmpPath := outPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[EpisodeRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", "episode_row_v1")
	w.SetKeyValueMetadata("run_id", runID)

	return &EpisodeWriter{
		runID:   runID,
		tmpPath: tmpPath,
		outPath: outPath,
		file:    f,
		writer:  w,
	}, nil
}

// Rows returns the number of rows written so far
func (e *EpisodeWriter) Rows() int { return e.rows }

// WriteEpisode appends one episode
func (e *EpisodeWriter) WriteEpisode(stats env.EpisodeStats) error {
	if e.writer == nil {
		return fmt.Errorf("episode writer is closed")
	}
	if _, err := e.writer.Write([]EpisodeRow{NewEpisodeRow(e.runID, stats)}); err != nil {
		return err
	}
	e.rows++
	return nil
}

// Finalize closes the parquet writer and moves the file into place. If no
// rows were written the temporary file is removed and "" is returned.
func (e *EpisodeWriter) Finalize() (string, error) {
	if e.writer == nil && e.file == nil {
		return "", nil
	}

	var closeErr error
	if e.writer != nil {
		closeErr = e.writer.Close()
		e.writer = nil
	}
	var fileErr error
	if e.file != nil {
		_ = e.file.Sync()
		fileErr = e.file.Close()
		e.file = nil
	}
	if closeErr != nil {
		return "", fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return "", fmt.Errorf("close parquet file: %w", fileErr)
	}

	if e.rows == 0 {
		_ = os.Remove(e.tmpPath)
		return "", nil
	}
	if err := os.Rename(e.tmpPath, e.outPath); err != nil {
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return e.outPath, nil
}

// ReadEpisodes loads every row of a parquet episode export
func ReadEpisodes(path string) ([]EpisodeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[EpisodeRow](pf)
	defer reader.Close()

	rows := make([]EpisodeRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows[:n], nil
}
