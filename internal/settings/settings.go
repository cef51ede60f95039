// Package settings persists the exclusion policy and global link options.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/obridge/internal/policy"
	"github.com/starford/obridge/internal/storage"
)

// Settings is the persisted configuration surface.
type Settings struct {
	policy.Policy
	// AddAliasToSelf allows a document's own names to be linked inside its body.
	AddAliasToSelf bool `json:"addAliasToSelf"`
}

// Default returns the documented defaults.
func Default() Settings {
	return Settings{
		Policy: policy.Policy{
			ExcludedFiles: []policy.ExcludedEntity{},
			ExcludedDirs:  []policy.ExcludedEntity{},
		},
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	return Settings{Policy: s.Policy.Clone(), AddAliasToSelf: s.AddAliasToSelf}
}

// Store reads and writes Settings as a JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the file at path.
// The file does not need to exist yet.
func NewStore(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("settings: resolve path: %w", err)
	}
	return &Store{path: abs}, nil
}

// Path returns the absolute settings file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings file merged over Default.
// A missing file yields the defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Settings, error) {
	out := Default()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return Settings{}, fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	if out.ExcludedFiles == nil {
		out.ExcludedFiles = []policy.ExcludedEntity{}
	}
	if out.ExcludedDirs == nil {
		out.ExcludedDirs = []policy.ExcludedEntity{}
	}
	if err := out.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings: %s: %w", s.path, err)
	}
	return out, nil
}

// Save validates and atomically writes settings.
func (s *Store) Save(v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(v)
}

func (s *Store) save(v Settings) error {
	if v.ExcludedFiles == nil {
		v.ExcludedFiles = []policy.ExcludedEntity{}
	}
	if v.ExcludedDirs == nil {
		v.ExcludedDirs = []policy.ExcludedEntity{}
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := storage.WriteFile(s.path, append(data, '\n')); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

// Update loads the current settings, applies fn and saves the result when fn
// reports a change. The returned Settings reflect the stored state.
func (s *Store) Update(fn func(*Settings) (bool, error)) (Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load()
	if err != nil {
		return Settings{}, false, err
	}
	changed, err := fn(&cur)
	if err != nil {
		return Settings{}, false, err
	}
	if !changed {
		return cur, false, nil
	}
	if err := s.save(cur); err != nil {
		return Settings{}, false, err
	}
	return cur, true, nil
}
