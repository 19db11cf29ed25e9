package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pulsefit/intakepipe/internal/models"
)

// marshalStateColumns converts the record's maps to JSON text for storage.
// Empty maps are stored as NULL.
func marshalStateColumns(state models.IntakeState) (interface{}, interface{}, error) {
	var responsesJSON, phaseStatusJSON interface{}
	if len(state.Responses) > 0 {
		b, err := json.Marshal(state.Responses)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal responses: %w", err)
		}
		responsesJSON = string(b)
	}
	if len(state.PhaseStatus) > 0 {
		b, err := json.Marshal(state.PhaseStatus)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal phase status: %w", err)
		}
		phaseStatusJSON = string(b)
	}
	return responsesJSON, phaseStatusJSON, nil
}

// unmarshalStateColumns restores the record's maps from their JSON columns.
// Missing columns yield empty (non-nil) maps.
func unmarshalStateColumns(state *models.IntakeState, responsesJSON, phaseStatusJSON string) error {
	state.Responses = make(map[string]interface{})
	if responsesJSON != "" {
		if err := json.Unmarshal([]byte(responsesJSON), &state.Responses); err != nil {
			return fmt.Errorf("failed to unmarshal responses for %s: %w", state.ParticipantID, err)
		}
	}
	state.PhaseStatus = make(map[string]models.PhaseCompletion)
	if phaseStatusJSON != "" {
		if err := json.Unmarshal([]byte(phaseStatusJSON), &state.PhaseStatus); err != nil {
			return fmt.Errorf("failed to unmarshal phase status for %s: %w", state.ParticipantID, err)
		}
	}
	return nil
}

// scanIntakeState scans an IntakeState from sql.Rows.
func scanIntakeState(rows *sql.Rows) (models.IntakeState, error) {
	var state models.IntakeState
	var responsesJSON, phaseStatusJSON sql.NullString
	err := rows.Scan(
		&state.ParticipantID, &state.CurrentPhase,
		&responsesJSON, &phaseStatusJSON, &state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		return state, fmt.Errorf("scan intake state failed: %w", err)
	}
	if err := unmarshalStateColumns(&state, responsesJSON.String, phaseStatusJSON.String); err != nil {
		return state, err
	}
	return state, nil
}
