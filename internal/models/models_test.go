package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIsValidAnswerType(t *testing.T) {
	valid := []AnswerType{
		AnswerTypeText, AnswerTypeNumber, AnswerTypeSingleSelect,
		AnswerTypeMultiSelect, AnswerTypeStructured, AnswerTypeScale,
	}
	for _, at := range valid {
		if !IsValidAnswerType(at) {
			t.Errorf("expected %s to be a valid answer type", at)
		}
	}

	invalid := []AnswerType{"", "freeform", "TEXT", "select"}
	for _, at := range invalid {
		if IsValidAnswerType(at) {
			t.Errorf("expected %q to be an invalid answer type", at)
		}
	}
}

func TestAnswerRequestValidate(t *testing.T) {
	req := AnswerRequest{QuestionID: "q1", Answer: "hello"}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request failed validation: %v", err)
	}

	// A nil answer is structurally fine; only the question ID is required here.
	req = AnswerRequest{QuestionID: "q1"}
	if err := req.Validate(); err != nil {
		t.Errorf("request without answer failed validation: %v", err)
	}

	req = AnswerRequest{Answer: "hello"}
	if err := req.Validate(); !errors.Is(err, ErrQuestionIDRequired) {
		t.Errorf("expected ErrQuestionIDRequired, got %v", err)
	}
}

func TestNotFoundError(t *testing.T) {
	var err error = &NotFoundError{QuestionID: "q_bogus"}
	if err.Error() != "question not found: q_bogus" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := errors.Join(err, errors.New("context"))
	var notFound *NotFoundError
	if !errors.As(wrapped, &notFound) {
		t.Fatal("errors.As should unwrap NotFoundError")
	}
	if notFound.QuestionID != "q_bogus" {
		t.Errorf("expected q_bogus, got %s", notFound.QuestionID)
	}
}

func TestFailureResponseShape(t *testing.T) {
	data, err := json.Marshal(Failure("answer required"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["success"] != false {
		t.Errorf("expected success false, got %v", decoded["success"])
	}
	if decoded["error"] != "answer required" {
		t.Errorf("expected error message, got %v", decoded["error"])
	}
}

func TestAPIResponseBuilder(t *testing.T) {
	resp := Success(map[string]int{"count": 2})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
	if resp.Result == nil {
		t.Error("expected a result payload")
	}

	resp = SuccessWithMessage("Summary generated successfully", nil)
	if resp.Status != string(APIStatusOK) || resp.Message != "Summary generated successfully" {
		t.Errorf("unexpected response: %+v", resp)
	}

	resp = Error("boom")
	if resp.Status != string(APIStatusError) || resp.Message != "boom" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestQuestionJSONFieldNames(t *testing.T) {
	q := Question{
		ID:         "q1",
		Phase:      "phase_1",
		Prompt:     "First name?",
		AnswerType: AnswerTypeText,
		Required:   true,
		FieldName:  "firstName",
		Order:      1,
	}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "phase", "prompt", "answerType", "required", "fieldName", "order"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("marshaled question missing key %q", key)
		}
	}
	// Options are omitted for non-select questions.
	if _, ok := decoded["options"]; ok {
		t.Error("options should be omitted when empty")
	}
}
