// Package state records when each catalog scope was last refreshed, so
// status output and staleness checks survive process restarts.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fabmirror/fabmirror/internal/config"
)

const DefaultPath = "~/.fabmirror/state.yaml"

// ScopeState tracks the outcome of the most recent refresh of one scope.
type ScopeState struct {
	Status      string    `yaml:"status"` // success, failed
	RefreshedAt time.Time `yaml:"refreshed_at"`
	Error       string    `yaml:"error,omitempty"`
}

// State is the persisted refresh ledger, keyed by scope
// ("catalog", "ws:<id>", "db:<ws>/<db>", ...).
type State struct {
	LastUpdated time.Time             `yaml:"last_updated"`
	Scopes      map[string]ScopeState `yaml:"scopes,omitempty"`
}

// Load reads the ledger from disk; a missing file yields a fresh one.
func Load(path string) (*State, error) {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	s := &State{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if s.Scopes == nil {
		s.Scopes = make(map[string]ScopeState)
	}
	return s, nil
}

// Save writes the ledger to disk.
func (s *State) Save(path string) error {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	s.LastUpdated = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// New creates an empty ledger.
func New() *State {
	return &State{
		LastUpdated: time.Now(),
		Scopes:      make(map[string]ScopeState),
	}
}

// RecordSuccess marks a scope as freshly refreshed.
func (s *State) RecordSuccess(scope string) {
	s.Scopes[scope] = ScopeState{Status: "success", RefreshedAt: time.Now()}
}

// RecordFailure marks a scope's refresh as failed, keeping the error text.
func (s *State) RecordFailure(scope string, err error) {
	s.Scopes[scope] = ScopeState{Status: "failed", RefreshedAt: time.Now(), Error: err.Error()}
}

// LastRefreshed returns when a scope last refreshed successfully.
func (s *State) LastRefreshed(scope string) (time.Time, bool) {
	ss, ok := s.Scopes[scope]
	if !ok || ss.Status != "success" {
		return time.Time{}, false
	}
	return ss.RefreshedAt, true
}
