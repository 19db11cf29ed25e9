// Package api provides HTTP handlers for IntakePipe endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsefit/intakepipe/internal/models"
	"github.com/pulsefit/intakepipe/internal/util"
)

// participantsCollectionHandler dispatches /intake/participants by method:
// GET lists known progress records, POST enrolls a new participant.
func (s *Server) participantsCollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listParticipantsHandler(w, r)
	case http.MethodPost:
		s.createParticipantHandler(w, r)
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost)
		slog.Warn("Server.participantsCollectionHandler: method not allowed", "method", r.Method)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Failure("Method not allowed"))
	}
}

// listParticipantsHandler handles GET /intake/participants.
func (s *Server) listParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listParticipantsHandler: processing request", "method", r.Method, "path", r.URL.Path)

	states, err := s.st.ListIntakeStates()
	if err != nil {
		slog.Error("Server.listParticipantsHandler: failed to list intake states", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to list participants"))
		return
	}

	slog.Debug("Server.listParticipantsHandler: succeeded", "count", len(states))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"participants": states,
		"count":        len(states),
	}))
}

// createParticipantHandler handles POST /intake/participants. It enrolls a
// new participant under a generated ID and persists the fresh record.
func (s *Server) createParticipantHandler(w http.ResponseWriter, r *http.Request) {
	participantID := util.GenerateParticipantID()
	slog.Debug("Server.createParticipantHandler: enrolling participant", "participantID", participantID)

	status, err := s.engine.Reset(r.Context(), participantID)
	if err != nil {
		slog.Error("Server.createParticipantHandler: failed to initialize record", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to enroll participant"))
		return
	}

	slog.Info("Server.createParticipantHandler: participant enrolled", "participantID", participantID)
	writeJSONResponse(w, http.StatusCreated, models.Success(map[string]interface{}{
		"participantId": participantID,
		"status":        status,
	}))
}

// statusHandler handles GET /intake/participants/{id}/status.
// Status reads may advance the stored phase (lazy reconciliation); they
// never fail for caller reasons.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request, participantID string) {
	slog.Debug("Server.statusHandler: processing status request", "participantID", participantID)

	status, err := s.engine.Status(r.Context(), participantID)
	if err != nil {
		slog.Error("Server.statusHandler: failed to compute status", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to compute intake status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, status)
}

// answerHandler handles POST /intake/participants/{id}/answer.
func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request, participantID string) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.answerHandler: processing answer submission", "participantID", participantID)

	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.answerHandler: failed to decode JSON", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusBadRequest, models.Failure("Invalid JSON format"))
		return
	}

	result, err := s.engine.SubmitAnswer(r.Context(), participantID, req.QuestionID, req.Answer)
	if err != nil {
		var notFound *models.NotFoundError
		switch {
		case errors.Is(err, models.ErrQuestionIDRequired), errors.Is(err, models.ErrAnswerRequired):
			slog.Warn("Server.answerHandler: validation failed", "error", err, "participantID", participantID)
			writeJSONResponse(w, http.StatusBadRequest, models.Failure(err.Error()))
		case errors.As(err, &notFound):
			slog.Warn("Server.answerHandler: question not found", "error", err, "participantID", participantID)
			writeJSONResponse(w, http.StatusNotFound, models.Failure(err.Error()))
		default:
			slog.Error("Server.answerHandler: failed to submit answer", "error", err, "participantID", participantID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to submit answer"))
		}
		return
	}

	slog.Info("Server.answerHandler: answer submitted", "participantID", participantID, "questionID", req.QuestionID, "phaseComplete", result.PhaseComplete)
	writeJSONResponse(w, http.StatusOK, result)
}

// questionsHandler handles GET /intake/participants/{id}/questions.
// The response carries the stored phase plus the entire catalog; clients
// filter to the active phase themselves.
func (s *Server) questionsHandler(w http.ResponseWriter, r *http.Request, participantID string) {
	slog.Debug("Server.questionsHandler: processing catalog request", "participantID", participantID)

	view, err := s.engine.ListCatalog(r.Context(), participantID)
	if err != nil {
		slog.Error("Server.questionsHandler: failed to list catalog", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to list questions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

// detailedStatusHandler handles GET /intake/participants/{id}/status/detailed.
func (s *Server) detailedStatusHandler(w http.ResponseWriter, r *http.Request, participantID string) {
	slog.Debug("Server.detailedStatusHandler: processing detailed status request", "participantID", participantID)

	status, err := s.engine.DetailedStatus(r.Context(), participantID)
	if err != nil {
		slog.Error("Server.detailedStatusHandler: failed to compute detailed status", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to compute detailed status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, status)
}

// resetHandler handles POST /intake/participants/{id}/reset.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request, participantID string) {
	slog.Debug("Server.resetHandler: processing reset request", "participantID", participantID)

	status, err := s.engine.Reset(r.Context(), participantID)
	if err != nil {
		slog.Error("Server.resetHandler: failed to reset intake", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to reset intake"))
		return
	}

	slog.Info("Server.resetHandler: intake reset", "participantID", participantID)
	writeJSONResponse(w, http.StatusOK, models.ResetResult{
		Success: true,
		Message: "Intake progress reset",
		Status:  status,
	})
}

// summaryHandler handles POST /intake/participants/{id}/summary.
// Requires a completed intake and a configured GenAI client.
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request, participantID string) {
	slog.Debug("Server.summaryHandler: processing summary request", "participantID", participantID)

	if s.gaClient == nil {
		slog.Warn("Server.summaryHandler: GenAI client not configured", "participantID", participantID)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Failure("GenAI client not configured"))
		return
	}

	status, err := s.engine.DetailedStatus(r.Context(), participantID)
	if err != nil {
		slog.Error("Server.summaryHandler: failed to compute detailed status", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to compute detailed status"))
		return
	}
	if !status.IsComplete {
		slog.Warn("Server.summaryHandler: intake not complete", "participantID", participantID, "answered", status.AnsweredQuestions, "total", status.TotalQuestions)
		writeJSONResponse(w, http.StatusConflict, models.Failure("Intake is not complete"))
		return
	}

	summary, err := s.gaClient.SummarizeIntake(r.Context(), status.Responses)
	if err != nil {
		slog.Error("Server.summaryHandler: failed to generate summary", "error", err, "participantID", participantID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Failure("Failed to generate summary"))
		return
	}

	slog.Info("Server.summaryHandler: summary generated", "participantID", participantID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Summary generated successfully", map[string]interface{}{
		"summary": summary,
	}))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Store reachability doubles as the readiness signal.
	if states, err := s.st.ListIntakeStates(); err != nil {
		slog.Warn("Health check: failed to list intake states", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach intake store"
	} else {
		healthData["active_intakes"] = len(states)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}
