package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the persisted position of a hybrid run. The pipeline resumes from
// NextCategory on restart; cmd/run -restart wipes it and starts over.
type State struct {
	Supplier      string    `json:"supplier"`
	NextCategory  int       `json:"next_category_index"`
	ChunksDone    int       `json:"chunks_done"`
	ProductsFound int       `json:"products_found"`
	ProductsDone  int       `json:"products_analyzed"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LoadState reads the state file. A missing file yields a fresh state.
func LoadState(path, supplier string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return freshState(supplier), nil
	}
	if err != nil {
		return nil, err
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", path, err)
	}

	// A state file from a different supplier run must not be resumed into.
	if st.Supplier != supplier {
		return freshState(supplier), nil
	}
	return st, nil
}

// Save persists the state atomically.
func (s *State) Save(path string) error {
	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Reset clears the state file for a full restart.
func Reset(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func freshState(supplier string) *State {
	return &State{Supplier: supplier, StartedAt: time.Now()}
}
