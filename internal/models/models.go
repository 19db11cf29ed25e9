// Package models defines the core data structures for IntakePipe.
//
// It includes the intake question catalog types, the per-participant
// progress record, and the status projections shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// AnswerType defines how a question's answer should be captured by the client.
// It is a rendering hint only; the engine never validates answer content
// against it.
type AnswerType string

const (
	// AnswerTypeText captures a free-form text answer.
	AnswerTypeText AnswerType = "text"
	// AnswerTypeNumber captures a numeric answer.
	AnswerTypeNumber AnswerType = "number"
	// AnswerTypeSingleSelect captures one choice from the question's options.
	AnswerTypeSingleSelect AnswerType = "single_select"
	// AnswerTypeMultiSelect captures multiple choices from the question's options.
	AnswerTypeMultiSelect AnswerType = "multi_select"
	// AnswerTypeStructured captures a structured/JSON answer.
	AnswerTypeStructured AnswerType = "structured"
	// AnswerTypeScale captures a rating on a fixed scale.
	AnswerTypeScale AnswerType = "scale"
)

// IsValidAnswerType checks if the given answer type is supported.
func IsValidAnswerType(at AnswerType) bool {
	switch at {
	case AnswerTypeText, AnswerTypeNumber, AnswerTypeSingleSelect,
		AnswerTypeMultiSelect, AnswerTypeStructured, AnswerTypeScale:
		return true
	default:
		return false
	}
}

// PhaseComplete is the terminal pseudo-phase reached only after every base
// phase is complete.
const PhaseComplete = "complete"

// Question is a single catalog entry. Questions are immutable configuration;
// Order defines the global ask order across all phases.
type Question struct {
	ID         string     `json:"id" yaml:"id"`
	Phase      string     `json:"phase" yaml:"phase"`
	Prompt     string     `json:"prompt" yaml:"prompt"`
	AnswerType AnswerType `json:"answerType" yaml:"answerType"`
	Options    []string   `json:"options,omitempty" yaml:"options,omitempty"`
	Required   bool       `json:"required" yaml:"required"`
	FieldName  string     `json:"fieldName" yaml:"fieldName"`
	Order      int        `json:"order" yaml:"order"`
}

// PhaseCompletion tracks the one-way completion flag for a base phase.
// Once Complete is true it is never reset, and CompletedAt is stamped
// exactly once.
type PhaseCompletion struct {
	Complete    bool       `json:"complete"`
	CompletedAt *time.Time `json:"completedAt"`
}

// IntakeState is the mutable progress record for one participant's intake.
// Responses maps catalog field names to opaque answer values.
type IntakeState struct {
	ParticipantID string                     `json:"participantId"`
	CurrentPhase  string                     `json:"currentPhase"`
	Responses     map[string]interface{}     `json:"responses"`
	PhaseStatus   map[string]PhaseCompletion `json:"phaseStatus"`
	CreatedAt     time.Time                  `json:"createdAt"`
	UpdatedAt     time.Time                  `json:"updatedAt"`
}

// Error variables for better error handling and testability
var (
	ErrQuestionIDRequired = errors.New("questionId is required")
	ErrAnswerRequired     = errors.New("answer required")
)

// NotFoundError indicates a submitted question ID that matches no catalog entry.
type NotFoundError struct {
	QuestionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("question not found: %s", e.QuestionID)
}

// AnswerRequest represents the payload for submitting a single answer.
type AnswerRequest struct {
	QuestionID string      `json:"questionId"`
	Answer     interface{} `json:"answer"`
}

// Validate checks the request for structural problems. Answer content is
// validated by the engine against the matched question.
func (r *AnswerRequest) Validate() error {
	if r.QuestionID == "" {
		return ErrQuestionIDRequired
	}
	return nil
}

// IntakeStatus is the lightweight "next action" projection returned by the
// status endpoint. NextQuestion is nil once every question is answered.
type IntakeStatus struct {
	CurrentPhase      string     `json:"currentPhase"`
	NextQuestion      *Question  `json:"nextQuestion"`
	IsPhaseComplete   bool       `json:"isPhaseComplete"`
	Progress          float64    `json:"progress"`
	TotalQuestions    int        `json:"totalQuestions"`
	AnsweredCount     int        `json:"answeredCount"`
	Phase1CompletedAt *time.Time `json:"phase1CompletedAt"`
	Phase2CompletedAt *time.Time `json:"phase2CompletedAt"`
	Phase3CompletedAt *time.Time `json:"phase3CompletedAt"`
}

// SubmitResult reports the outcome of a successful answer submission.
type SubmitResult struct {
	Success       bool      `json:"success"`
	PhaseComplete bool      `json:"phaseComplete"`
	CurrentPhase  string    `json:"currentPhase"`
	NextQuestion  *Question `json:"nextQuestion"`
	Message       string    `json:"message"`
}

// DetailedStatus is the full audit projection, including a snapshot of every
// recorded response.
type DetailedStatus struct {
	CurrentPhase      string                 `json:"currentPhase"`
	IsComplete        bool                   `json:"isComplete"`
	Phase1            PhaseCompletion        `json:"phase1"`
	Phase2            PhaseCompletion        `json:"phase2"`
	Phase3            PhaseCompletion        `json:"phase3"`
	AnsweredQuestions int                    `json:"answeredQuestions"`
	TotalQuestions    int                    `json:"totalQuestions"`
	Responses         map[string]interface{} `json:"responses"`
}

// CatalogView is the response shape for the question listing endpoint. The
// engine always exposes the entire catalog; callers filter client-side.
type CatalogView struct {
	Phase     string     `json:"phase"`
	Questions []Question `json:"questions"`
}

// ResetResult is the response shape for the reset endpoint: confirmation
// plus the freshly initialized audit projection.
type ResetResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Status  DetailedStatus `json:"status"`
}

// FailureResponse is the declarative failure body returned by the intake
// endpoints. Failures never leave the progress record partially modified.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Failure creates a failure response with a message.
func Failure(message string) FailureResponse {
	return FailureResponse{Success: false, Error: message}
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
