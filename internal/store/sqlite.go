// Package store provides storage backends for IntakePipe.
//
// This file implements an SQLite-backed store for intake progress records.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/pulsefit/intakepipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied")

	return &SQLiteStore{db: db}, nil
}

// SaveIntakeState stores or updates an intake progress record.
func (s *SQLiteStore) SaveIntakeState(state models.IntakeState) error {
	responsesJSON, phaseStatusJSON, err := marshalStateColumns(state)
	if err != nil {
		slog.Error("SQLiteStore.SaveIntakeState: marshal failed", "error", err, "participantID", state.ParticipantID)
		return err
	}
	query := `
		INSERT OR REPLACE INTO intake_states (participant_id, current_phase, responses, phase_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, state.ParticipantID, state.CurrentPhase,
		responsesJSON, phaseStatusJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveIntakeState: exec failed", "error", err, "participantID", state.ParticipantID)
		return fmt.Errorf("failed to save intake state for %s: %w", state.ParticipantID, err)
	}
	slog.Debug("SQLiteStore.SaveIntakeState: succeeded", "participantID", state.ParticipantID, "phase", state.CurrentPhase)
	return nil
}

// GetIntakeState retrieves the intake progress record for a participant.
func (s *SQLiteStore) GetIntakeState(participantID string) (*models.IntakeState, error) {
	query := `SELECT participant_id, current_phase, responses, phase_status, created_at, updated_at
			  FROM intake_states WHERE participant_id = ?`

	var state models.IntakeState
	var responsesJSON, phaseStatusJSON sql.NullString
	err := s.db.QueryRow(query, participantID).Scan(
		&state.ParticipantID, &state.CurrentPhase,
		&responsesJSON, &phaseStatusJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetIntakeState: not found", "participantID", participantID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetIntakeState: failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to get intake state for %s: %w", participantID, err)
	}

	if err := unmarshalStateColumns(&state, responsesJSON.String, phaseStatusJSON.String); err != nil {
		slog.Error("SQLiteStore.GetIntakeState: unmarshal failed", "error", err, "participantID", participantID)
		return nil, err
	}
	slog.Debug("SQLiteStore.GetIntakeState: found", "participantID", participantID, "phase", state.CurrentPhase)
	return &state, nil
}

// DeleteIntakeState removes the intake progress record for a participant.
func (s *SQLiteStore) DeleteIntakeState(participantID string) error {
	_, err := s.db.Exec(`DELETE FROM intake_states WHERE participant_id = ?`, participantID)
	if err != nil {
		slog.Error("SQLiteStore.DeleteIntakeState: failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to delete intake state for %s: %w", participantID, err)
	}
	slog.Debug("SQLiteStore.DeleteIntakeState: succeeded", "participantID", participantID)
	return nil
}

// ListIntakeStates retrieves all intake progress records.
func (s *SQLiteStore) ListIntakeStates() ([]models.IntakeState, error) {
	rows, err := s.db.Query(`SELECT participant_id, current_phase, responses, phase_status, created_at, updated_at
							 FROM intake_states ORDER BY participant_id`)
	if err != nil {
		slog.Error("SQLiteStore.ListIntakeStates: query failed", "error", err)
		return nil, fmt.Errorf("failed to query intake states: %w", err)
	}
	defer rows.Close()

	var states []models.IntakeState
	for rows.Next() {
		state, err := scanIntakeState(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListIntakeStates: scan failed", "error", err)
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore.ListIntakeStates: rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate intake state rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListIntakeStates: succeeded", "count", len(states))
	return states, nil
}

// ClearIntakeStates deletes all records in the intake_states table (for tests).
func (s *SQLiteStore) ClearIntakeStates() error {
	_, err := s.db.Exec("DELETE FROM intake_states")
	if err != nil {
		slog.Error("SQLiteStore.ClearIntakeStates: failed", "error", err)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
