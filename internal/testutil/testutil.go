// Package testutil provides common test utilities and helpers for IntakePipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pulsefit/intakepipe/internal/api"
	"github.com/pulsefit/intakepipe/internal/catalog"
	"github.com/pulsefit/intakepipe/internal/genai"
	"github.com/pulsefit/intakepipe/internal/intake"
	"github.com/pulsefit/intakepipe/internal/models"
	"github.com/pulsefit/intakepipe/internal/store"
)

// TestCatalog builds a small three-phase catalog: phase_1 holds one required
// and one optional question, phase_2 and phase_3 hold one required question
// each.
func TestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.Definition{
		Phases: []string{"phase_1", "phase_2", "phase_3"},
		Questions: []models.Question{
			{ID: "q1", Phase: "phase_1", Prompt: "First name?", AnswerType: models.AnswerTypeText, Required: true, FieldName: "firstName", Order: 1},
			{ID: "q2", Phase: "phase_1", Prompt: "Nickname?", AnswerType: models.AnswerTypeText, Required: false, FieldName: "nickname", Order: 2},
			{ID: "q3", Phase: "phase_2", Prompt: "Main goal?", AnswerType: models.AnswerTypeText, Required: true, FieldName: "goal", Order: 3},
			{ID: "q4", Phase: "phase_3", Prompt: "Sleep hours?", AnswerType: models.AnswerTypeNumber, Required: true, FieldName: "sleepHours", Order: 4},
		},
	})
	if err != nil {
		t.Fatalf("failed to build test catalog: %v", err)
	}
	return cat
}

// NewTestServer creates a test API server over the test catalog with an
// in-memory store and no GenAI client.
func NewTestServer(t *testing.T) (*api.Server, *store.InMemoryStore) {
	t.Helper()
	return NewTestServerWithGenAI(t, nil)
}

// NewTestServerWithGenAI creates a test API server with the given GenAI client.
func NewTestServerWithGenAI(t *testing.T, ga genai.ClientInterface) (*api.Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	engine := intake.NewEngine(TestCatalog(t), st)
	return api.NewServer(engine, st, ga), st
}

// MockGenAI is a canned GenAI client for tests.
type MockGenAI struct {
	Summary string
	Err     error
	Calls   int
}

// SummarizeIntake returns the canned summary or error.
func (m *MockGenAI) SummarizeIntake(ctx context.Context, responses map[string]interface{}) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.Summary, nil
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// DecodeJSONBody decodes a JSON response body into a generic map.
func DecodeJSONBody(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return decoded
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}
