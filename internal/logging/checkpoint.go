package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is a saved value function together with where it came from
type Checkpoint struct {
	RunID      string    `json:"run_id"`
	Episode    int       `json:"episode"`
	GlobalStep int       `json:"global_step"`
	Score      float64   `json:"score"`
	ObsDim     int       `json:"obs_dim"`
	Hidden1    int       `json:"hidden1"`
	Hidden2    int       `json:"hidden2"`
	SavedAt    time.Time `json:"saved_at"`
	Params     []byte    `json:"params"`
}

// SaveCheckpoint writes a checkpoint, replacing any file at path
func SaveCheckpoint(path string, ckpt Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if ckpt.SavedAt.IsZero() {
		ckpt.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint
func LoadCheckpoint(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, err
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return Checkpoint{}, err
	}
	return ckpt, nil
}
