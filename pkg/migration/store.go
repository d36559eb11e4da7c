package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// State is the recorded progress of one migration run.
type State struct {
	RunID               string                    `json:"runId"`
	ChainID             string                    `json:"chainId"`
	AssetContractLookup common.Address            `json:"assetContractLookup"`
	Addresses           map[string]common.Address `json:"addresses"`
	CompletedSteps      []string                  `json:"completedSteps"`
	UpdatedAt           time.Time                 `json:"updatedAt"`
}

func newState(chainID string, assetContractLookup common.Address) *State {
	return &State{
		RunID:               uuid.NewString(),
		ChainID:             chainID,
		AssetContractLookup: assetContractLookup,
		Addresses:           map[string]common.Address{},
	}
}

// Completed reports whether step was confirmed.
func (s *State) Completed(step string) bool {
	return slices.Contains(s.CompletedSteps, step)
}

func (s *State) complete(step string, address *common.Address) {
	if address != nil {
		s.Addresses[step] = *address
	}
	if !s.Completed(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
	s.UpdatedAt = time.Now().UTC()
}

func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Addresses = make(map[string]common.Address, len(s.Addresses))
	for k, v := range s.Addresses {
		c.Addresses[k] = v
	}
	c.CompletedSteps = slices.Clone(s.CompletedSteps)
	return &c
}

// Store persists migration progress between runs. Load returns nil, nil
// when nothing was recorded yet.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps progress for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.clone()
	return nil
}

// FileStore keeps progress in a JSON manifest.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*State, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration manifest %s: %w", f.path, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to parse migration manifest %s: %w", f.path, err)
	}
	if state.Addresses == nil {
		state.Addresses = map[string]common.Address{}
	}
	return &state, nil
}

// Save replaces the manifest atomically.
func (f *FileStore) Save(ctx context.Context, state *State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode migration manifest: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create migration manifest: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write migration manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write migration manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace migration manifest %s: %w", f.path, err)
	}
	return nil
}
