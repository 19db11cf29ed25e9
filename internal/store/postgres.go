// Package store provides storage backends for IntakePipe.
//
// This file implements a PostgreSQL-backed store for intake progress records.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/pulsefit/intakepipe/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the intake_states table exists
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")
	return &PostgresStore{db: db}, nil
}

// SaveIntakeState stores or updates an intake progress record.
func (s *PostgresStore) SaveIntakeState(state models.IntakeState) error {
	responsesJSON, phaseStatusJSON, err := marshalStateColumns(state)
	if err != nil {
		slog.Error("PostgresStore.SaveIntakeState: marshal failed", "error", err, "participantID", state.ParticipantID)
		return err
	}
	query := `
		INSERT INTO intake_states (participant_id, current_phase, responses, phase_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (participant_id) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			responses = EXCLUDED.responses,
			phase_status = EXCLUDED.phase_status,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, state.ParticipantID, state.CurrentPhase,
		responsesJSON, phaseStatusJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveIntakeState: exec failed", "error", err, "participantID", state.ParticipantID)
		return fmt.Errorf("failed to save intake state for %s: %w", state.ParticipantID, err)
	}
	slog.Debug("PostgresStore.SaveIntakeState: succeeded", "participantID", state.ParticipantID, "phase", state.CurrentPhase)
	return nil
}

// GetIntakeState retrieves the intake progress record for a participant.
func (s *PostgresStore) GetIntakeState(participantID string) (*models.IntakeState, error) {
	query := `SELECT participant_id, current_phase, responses, phase_status, created_at, updated_at
			  FROM intake_states WHERE participant_id = $1`

	var state models.IntakeState
	var responsesJSON, phaseStatusJSON sql.NullString
	err := s.db.QueryRow(query, participantID).Scan(
		&state.ParticipantID, &state.CurrentPhase,
		&responsesJSON, &phaseStatusJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetIntakeState: not found", "participantID", participantID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetIntakeState: failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to get intake state for %s: %w", participantID, err)
	}

	if err := unmarshalStateColumns(&state, responsesJSON.String, phaseStatusJSON.String); err != nil {
		slog.Error("PostgresStore.GetIntakeState: unmarshal failed", "error", err, "participantID", participantID)
		return nil, err
	}
	slog.Debug("PostgresStore.GetIntakeState: found", "participantID", participantID, "phase", state.CurrentPhase)
	return &state, nil
}

// DeleteIntakeState removes the intake progress record for a participant.
func (s *PostgresStore) DeleteIntakeState(participantID string) error {
	_, err := s.db.Exec(`DELETE FROM intake_states WHERE participant_id = $1`, participantID)
	if err != nil {
		slog.Error("PostgresStore.DeleteIntakeState: failed", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to delete intake state for %s: %w", participantID, err)
	}
	slog.Debug("PostgresStore.DeleteIntakeState: succeeded", "participantID", participantID)
	return nil
}

// ListIntakeStates retrieves all intake progress records.
func (s *PostgresStore) ListIntakeStates() ([]models.IntakeState, error) {
	rows, err := s.db.Query(`SELECT participant_id, current_phase, responses, phase_status, created_at, updated_at
							 FROM intake_states ORDER BY participant_id`)
	if err != nil {
		slog.Error("PostgresStore.ListIntakeStates: query failed", "error", err)
		return nil, fmt.Errorf("failed to query intake states: %w", err)
	}
	defer rows.Close()

	var states []models.IntakeState
	for rows.Next() {
		state, err := scanIntakeState(rows)
		if err != nil {
			slog.Error("PostgresStore.ListIntakeStates: scan failed", "error", err)
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore.ListIntakeStates: rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate intake state rows: %w", err)
	}
	slog.Debug("PostgresStore.ListIntakeStates: succeeded", "count", len(states))
	return states, nil
}

// ClearIntakeStates deletes all records in the intake_states table (for tests).
func (s *PostgresStore) ClearIntakeStates() error {
	_, err := s.db.Exec("DELETE FROM intake_states")
	if err != nil {
		slog.Error("PostgresStore.ClearIntakeStates: failed", "error", err)
		return err
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
