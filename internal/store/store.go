// Package store provides storage backends for IntakePipe.
//
// It persists per-participant intake progress records through a common
// interface with in-memory, SQLite, and PostgreSQL implementations.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pulsefit/intakepipe/internal/models"
)

// Store defines the persistence operations for intake progress records.
// GetIntakeState returns (nil, nil) when no record exists for a participant.
type Store interface {
	GetIntakeState(participantID string) (*models.IntakeState, error)
	SaveIntakeState(state models.IntakeState) error
	DeleteIntakeState(participantID string) error
	ListIntakeStates() ([]models.IntakeState, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType determines the database type from a DSN string.
// PostgreSQL DSNs use URL or key=value form; anything else is treated as a
// SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore is a mutex-guarded in-memory store, used when no DSN is
// configured and throughout the tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]models.IntakeState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.IntakeState)}
}

// GetIntakeState returns a deep copy of the participant's record, or nil if absent.
func (s *InMemoryStore) GetIntakeState(participantID string) (*models.IntakeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[participantID]
	if !ok {
		return nil, nil
	}
	cp := cloneIntakeState(state)
	return &cp, nil
}

// SaveIntakeState stores or replaces the participant's record.
func (s *InMemoryStore) SaveIntakeState(state models.IntakeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ParticipantID] = cloneIntakeState(state)
	return nil
}

// DeleteIntakeState removes the participant's record. Deleting a missing
// record is not an error.
func (s *InMemoryStore) DeleteIntakeState(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, participantID)
	return nil
}

// ListIntakeStates returns all records sorted by participant ID.
func (s *InMemoryStore) ListIntakeStates() ([]models.IntakeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.IntakeState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, cloneIntakeState(state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	slog.Debug("InMemoryStore.Close: nothing to close")
	return nil
}

// cloneIntakeState deep-copies a record so callers never share the maps.
func cloneIntakeState(state models.IntakeState) models.IntakeState {
	cp := state
	cp.Responses = make(map[string]interface{}, len(state.Responses))
	for k, v := range state.Responses {
		cp.Responses[k] = v
	}
	cp.PhaseStatus = make(map[string]models.PhaseCompletion, len(state.PhaseStatus))
	for k, v := range state.PhaseStatus {
		cp.PhaseStatus[k] = v
	}
	return cp
}
