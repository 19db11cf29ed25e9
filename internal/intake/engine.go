// Package intake implements the progressive multi-phase intake engine.
//
// The engine maintains one progress record per participant, keyed by
// participant ID, and answers queries against the static question catalog:
// what to ask next, whether the current phase is complete, and the two
// status projections. The single mutation is SubmitAnswer; Reset replaces
// the record wholesale.
package intake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsefit/intakepipe/internal/catalog"
	"github.com/pulsefit/intakepipe/internal/models"
	"github.com/pulsefit/intakepipe/internal/store"
)

// Result messages returned by SubmitAnswer.
const (
	MessageAnswerSaved   = "Answer saved"
	MessagePhaseComplete = "Phase complete"
)

// Engine is the progression engine over the catalog and the store-backed
// progress records. All operations for a participant run under that
// participant's lock, so a status read's phase reconciliation is serialized
// against concurrent submissions.
type Engine struct {
	catalog *catalog.Catalog
	store   store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine over a validated catalog and a store backend.
func NewEngine(cat *catalog.Catalog, st store.Store) *Engine {
	slog.Debug("Engine.NewEngine: creating intake engine", "questions", cat.TotalQuestions())
	return &Engine{
		catalog: cat,
		store:   st,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Catalog returns the engine's question catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// lockFor returns the mutex guarding a participant's record, creating it on
// first use. Locking is scoped per participant, not global.
func (e *Engine) lockFor(participantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[participantID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[participantID] = l
	}
	return l
}

// newState initializes a fresh progress record: first base phase, empty
// responses, every phase incomplete.
func (e *Engine) newState(participantID string) models.IntakeState {
	now := time.Now()
	phaseStatus := make(map[string]models.PhaseCompletion, catalog.BasePhaseCount)
	for _, p := range e.catalog.Phases() {
		phaseStatus[p] = models.PhaseCompletion{}
	}
	return models.IntakeState{
		ParticipantID: participantID,
		CurrentPhase:  e.catalog.FirstPhase(),
		Responses:     make(map[string]interface{}),
		PhaseStatus:   phaseStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// loadOrInit fetches the participant's record, or returns a fresh one without
// persisting it. Records are only written on mutation.
func (e *Engine) loadOrInit(participantID string) (models.IntakeState, error) {
	existing, err := e.store.GetIntakeState(participantID)
	if err != nil {
		slog.Error("Engine.loadOrInit: store get failed", "error", err, "participantID", participantID)
		return models.IntakeState{}, err
	}
	if existing == nil {
		slog.Debug("Engine.loadOrInit: no record, starting fresh", "participantID", participantID)
		return e.newState(participantID), nil
	}
	if existing.Responses == nil {
		existing.Responses = make(map[string]interface{})
	}
	if existing.PhaseStatus == nil {
		existing.PhaseStatus = make(map[string]models.PhaseCompletion)
	}
	return *existing, nil
}

// nextQuestion returns the catalog question with the smallest global order
// whose field has no recorded response, or nil when none remain. The global
// order is independent of phase boundaries.
func (e *Engine) nextQuestion(state models.IntakeState) *models.Question {
	for _, q := range e.catalog.Questions() {
		if _, answered := state.Responses[q.FieldName]; !answered {
			next := q
			return &next
		}
	}
	return nil
}

// phaseAnswered reports whether every question tagged with the phase has a
// recorded response. The questions' required flags are deliberately ignored:
// an optional question with an empty recorded answer still counts, and an
// unanswered optional question still blocks completion.
func (e *Engine) phaseAnswered(state models.IntakeState, phase string) bool {
	for _, q := range e.catalog.PhaseQuestions(phase) {
		if _, answered := state.Responses[q.FieldName]; !answered {
			return false
		}
	}
	return true
}

// effectivePhaseComplete computes phase completion for a status projection:
// the terminal sentinel and phases with zero questions count as complete.
func (e *Engine) effectivePhaseComplete(state models.IntakeState, phase string) bool {
	if e.catalog.IsTerminal(phase) {
		return true
	}
	return e.phaseAnswered(state, phase)
}

// Status computes the lightweight "next action" projection.
//
// Status reads can self-correct phase drift: if the next unanswered question
// sits in a later phase than the stored one, the stored phase is advanced
// (and persisted) as an explicit reconciliation step under the participant's
// lock. The stored phase never moves backward and never leaves the terminal
// sentinel.
func (e *Engine) Status(ctx context.Context, participantID string) (models.IntakeStatus, error) {
	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.loadOrInit(participantID)
	if err != nil {
		return models.IntakeStatus{}, err
	}

	next := e.nextQuestion(state)

	// Lazy catch-up: reconcile the stored phase with the next question's phase.
	if next != nil && next.Phase != state.CurrentPhase && !e.catalog.IsTerminal(state.CurrentPhase) {
		if e.phaseAdvances(state.CurrentPhase, next.Phase) {
			slog.Debug("Engine.Status: reconciling stored phase", "participantID", participantID, "from", state.CurrentPhase, "to", next.Phase)
			state.CurrentPhase = next.Phase
			state.UpdatedAt = time.Now()
			if err := e.store.SaveIntakeState(state); err != nil {
				slog.Error("Engine.Status: failed to persist phase reconciliation", "error", err, "participantID", participantID)
				return models.IntakeStatus{}, err
			}
		}
	}

	// The effective phase is the next question's phase while questions
	// remain, otherwise the stored phase.
	effective := state.CurrentPhase
	if next != nil {
		effective = next.Phase
	}

	total := e.catalog.TotalQuestions()
	answered := len(state.Responses)
	progress := 0.0
	if total > 0 {
		progress = float64(answered) / float64(total)
	}

	status := models.IntakeStatus{
		CurrentPhase:    effective,
		NextQuestion:    next,
		IsPhaseComplete: e.effectivePhaseComplete(state, effective),
		Progress:        progress,
		TotalQuestions:  total,
		AnsweredCount:   answered,
	}
	status.Phase1CompletedAt, status.Phase2CompletedAt, status.Phase3CompletedAt = e.phaseTimestamps(state)

	slog.Debug("Engine.Status: computed", "participantID", participantID, "phase", effective, "answered", answered, "total", total)
	return status, nil
}

// phaseAdvances reports whether moving from the stored phase to the
// candidate phase is a forward transition in the fixed phase order.
func (e *Engine) phaseAdvances(from, to string) bool {
	fromIdx, okFrom := e.catalog.PhaseIndex(from)
	toIdx, okTo := e.catalog.PhaseIndex(to)
	return okFrom && okTo && toIdx > fromIdx
}

// phaseTimestamps returns the three base phases' completion timestamps in
// phase order (nil where incomplete).
func (e *Engine) phaseTimestamps(state models.IntakeState) (*time.Time, *time.Time, *time.Time) {
	phases := e.catalog.Phases()
	ts := make([]*time.Time, catalog.BasePhaseCount)
	for i, p := range phases {
		ts[i] = state.PhaseStatus[p].CompletedAt
	}
	return ts[0], ts[1], ts[2]
}

// SubmitAnswer records one answer and advances the record.
//
// Validation failures (missing question ID, unknown question, missing
// required answer) leave the record untouched. A recorded answer overwrites
// any previous one for the same question without un-completing the phase.
func (e *Engine) SubmitAnswer(ctx context.Context, participantID, questionID string, answer interface{}) (models.SubmitResult, error) {
	if questionID == "" {
		slog.Warn("Engine.SubmitAnswer: missing questionId", "participantID", participantID)
		return models.SubmitResult{}, models.ErrQuestionIDRequired
	}
	q, ok := e.catalog.QuestionByID(questionID)
	if !ok {
		slog.Warn("Engine.SubmitAnswer: unknown questionId", "participantID", participantID, "questionID", questionID)
		return models.SubmitResult{}, &models.NotFoundError{QuestionID: questionID}
	}
	// Only required questions reject an absent/empty answer; optional
	// questions record whatever arrives, including nothing.
	if q.Required && isEmptyAnswer(answer) {
		slog.Warn("Engine.SubmitAnswer: missing required answer", "participantID", participantID, "questionID", questionID)
		return models.SubmitResult{}, models.ErrAnswerRequired
	}

	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.loadOrInit(participantID)
	if err != nil {
		return models.SubmitResult{}, err
	}

	now := time.Now()
	state.Responses[q.FieldName] = answer

	// Phase completion is monotonic: set once, stamped once.
	ps := state.PhaseStatus[q.Phase]
	if !ps.Complete && e.phaseAnswered(state, q.Phase) {
		completedAt := now
		ps.Complete = true
		ps.CompletedAt = &completedAt
		state.PhaseStatus[q.Phase] = ps
		slog.Info("Engine.SubmitAnswer: phase completed", "participantID", participantID, "phase", q.Phase)
	}
	phaseComplete := state.PhaseStatus[q.Phase].Complete

	if phaseComplete {
		state.CurrentPhase = e.catalog.NextPhase(q.Phase)
	} else {
		state.CurrentPhase = q.Phase
	}
	state.UpdatedAt = now

	if err := e.store.SaveIntakeState(state); err != nil {
		slog.Error("Engine.SubmitAnswer: store save failed", "error", err, "participantID", participantID)
		return models.SubmitResult{}, err
	}

	message := MessageAnswerSaved
	if phaseComplete {
		message = MessagePhaseComplete
	}

	slog.Debug("Engine.SubmitAnswer: answer recorded", "participantID", participantID, "questionID", questionID, "field", q.FieldName, "phaseComplete", phaseComplete, "currentPhase", state.CurrentPhase)
	return models.SubmitResult{
		Success:       true,
		PhaseComplete: phaseComplete,
		CurrentPhase:  state.CurrentPhase,
		NextQuestion:  e.nextQuestion(state),
		Message:       message,
	}, nil
}

// isEmptyAnswer reports whether a submitted answer counts as absent for a
// required question: nil (missing/null) or an empty string.
func isEmptyAnswer(answer interface{}) bool {
	if answer == nil {
		return true
	}
	if s, ok := answer.(string); ok && s == "" {
		return true
	}
	return false
}

// DetailedStatus computes the full audit projection.
func (e *Engine) DetailedStatus(ctx context.Context, participantID string) (models.DetailedStatus, error) {
	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.loadOrInit(participantID)
	if err != nil {
		return models.DetailedStatus{}, err
	}
	return e.detailedStatusLocked(state), nil
}

// detailedStatusLocked builds the audit projection from a loaded record.
// Callers must hold the participant's lock.
func (e *Engine) detailedStatusLocked(state models.IntakeState) models.DetailedStatus {
	phases := e.catalog.Phases()
	isComplete := true
	for _, p := range phases {
		if !state.PhaseStatus[p].Complete {
			isComplete = false
			break
		}
	}
	currentPhase := state.CurrentPhase
	if isComplete {
		currentPhase = models.PhaseComplete
	}

	responses := make(map[string]interface{}, len(state.Responses))
	for k, v := range state.Responses {
		responses[k] = v
	}

	return models.DetailedStatus{
		CurrentPhase:      currentPhase,
		IsComplete:        isComplete,
		Phase1:            state.PhaseStatus[phases[0]],
		Phase2:            state.PhaseStatus[phases[1]],
		Phase3:            state.PhaseStatus[phases[2]],
		AnsweredQuestions: len(state.Responses),
		TotalQuestions:    e.catalog.TotalQuestions(),
		Responses:         responses,
	}
}

// ListCatalog returns the stored current phase plus the entire question
// catalog. The catalog is never filtered to the active phase; callers filter
// client-side if they want only the current phase's questions.
func (e *Engine) ListCatalog(ctx context.Context, participantID string) (models.CatalogView, error) {
	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.loadOrInit(participantID)
	if err != nil {
		return models.CatalogView{}, err
	}
	return models.CatalogView{
		Phase:     state.CurrentPhase,
		Questions: e.catalog.Questions(),
	}, nil
}

// Reset replaces the participant's record with a freshly initialized one and
// returns the resulting audit projection. Reset is idempotent.
func (e *Engine) Reset(ctx context.Context, participantID string) (models.DetailedStatus, error) {
	lock := e.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	state := e.newState(participantID)
	if err := e.store.SaveIntakeState(state); err != nil {
		slog.Error("Engine.Reset: store save failed", "error", err, "participantID", participantID)
		return models.DetailedStatus{}, err
	}
	slog.Info("Engine.Reset: progress record reset", "participantID", participantID)
	return e.detailedStatusLocked(state), nil
}
