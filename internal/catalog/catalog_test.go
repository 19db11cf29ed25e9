package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pulsefit/intakepipe/internal/models"
)

// validDefinition returns a minimal definition that passes validation.
// Tests mutate the copy to probe individual rules.
func validDefinition() Definition {
	return Definition{
		Phases: []string{"phase_1", "phase_2", "phase_3"},
		Questions: []models.Question{
			{ID: "q1", Phase: "phase_1", Prompt: "First name?", AnswerType: models.AnswerTypeText, Required: true, FieldName: "firstName", Order: 1},
			{ID: "q2", Phase: "phase_2", Prompt: "Main goal?", AnswerType: models.AnswerTypeSingleSelect, Options: []string{"strength", "endurance"}, Required: true, FieldName: "goal", Order: 2},
			{ID: "q3", Phase: "phase_3", Prompt: "Sleep hours?", AnswerType: models.AnswerTypeNumber, Required: false, FieldName: "sleepHours", Order: 3},
		},
	}
}

func TestNewValidDefinition(t *testing.T) {
	cat, err := New(validDefinition())
	if err != nil {
		t.Fatalf("New failed on a valid definition: %v", err)
	}
	if cat.TotalQuestions() != 3 {
		t.Errorf("expected 3 questions, got %d", cat.TotalQuestions())
	}
	if cat.FirstPhase() != "phase_1" {
		t.Errorf("expected first phase phase_1, got %s", cat.FirstPhase())
	}
	if got := cat.Phases(); len(got) != BasePhaseCount {
		t.Errorf("expected %d phases, got %d", BasePhaseCount, len(got))
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Definition)
		wantErr string
	}{
		{
			name:    "wrong phase count",
			mutate:  func(d *Definition) { d.Phases = []string{"phase_1", "phase_2"} },
			wantErr: "exactly 3 base phases",
		},
		{
			name:    "duplicate phase",
			mutate:  func(d *Definition) { d.Phases = []string{"phase_1", "phase_1", "phase_3"} },
			wantErr: "duplicate phase",
		},
		{
			name:    "reserved phase name",
			mutate:  func(d *Definition) { d.Phases = []string{"phase_1", "phase_2", "complete"} },
			wantErr: "reserved",
		},
		{
			name:    "empty phase name",
			mutate:  func(d *Definition) { d.Phases = []string{"phase_1", "", "phase_3"} },
			wantErr: "empty name",
		},
		{
			name:    "no questions",
			mutate:  func(d *Definition) { d.Questions = nil },
			wantErr: "no questions",
		},
		{
			name:    "empty question id",
			mutate:  func(d *Definition) { d.Questions[0].ID = "" },
			wantErr: "empty id",
		},
		{
			name:    "duplicate question id",
			mutate:  func(d *Definition) { d.Questions[1].ID = "q1" },
			wantErr: "duplicate question id",
		},
		{
			name:    "empty field name",
			mutate:  func(d *Definition) { d.Questions[0].FieldName = "" },
			wantErr: "empty fieldName",
		},
		{
			name:    "duplicate field name",
			mutate:  func(d *Definition) { d.Questions[2].FieldName = "firstName" },
			wantErr: "share fieldName",
		},
		{
			name:    "empty prompt",
			mutate:  func(d *Definition) { d.Questions[0].Prompt = "" },
			wantErr: "empty prompt",
		},
		{
			name:    "invalid answer type",
			mutate:  func(d *Definition) { d.Questions[0].AnswerType = "freeform" },
			wantErr: "invalid answerType",
		},
		{
			name:    "undeclared phase",
			mutate:  func(d *Definition) { d.Questions[0].Phase = "phase_9" },
			wantErr: "undeclared phase",
		},
		{
			name:    "duplicate order",
			mutate:  func(d *Definition) { d.Questions[1].Order = 1 },
			wantErr: "not strictly increasing",
		},
		{
			name:    "select without options",
			mutate:  func(d *Definition) { d.Questions[1].Options = nil },
			wantErr: "no options",
		},
		{
			name:    "options on non-select",
			mutate:  func(d *Definition) { d.Questions[0].Options = []string{"a", "b"} },
			wantErr: "not a select type",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := validDefinition()
			tc.mutate(&def)
			_, err := New(def)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestQuestionsSortedByOrder(t *testing.T) {
	def := validDefinition()
	// Scramble the declaration order; the catalog re-sorts by ask order.
	def.Questions[0], def.Questions[2] = def.Questions[2], def.Questions[0]
	cat, err := New(def)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	qs := cat.Questions()
	for i := 1; i < len(qs); i++ {
		if qs[i].Order <= qs[i-1].Order {
			t.Errorf("questions not sorted by order at index %d: %d <= %d", i, qs[i].Order, qs[i-1].Order)
		}
	}
	if qs[0].ID != "q1" {
		t.Errorf("expected q1 first, got %s", qs[0].ID)
	}
}

func TestPhaseNavigation(t *testing.T) {
	cat, err := New(validDefinition())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if next := cat.NextPhase("phase_1"); next != "phase_2" {
		t.Errorf("NextPhase(phase_1) = %s, want phase_2", next)
	}
	if next := cat.NextPhase("phase_2"); next != "phase_3" {
		t.Errorf("NextPhase(phase_2) = %s, want phase_3", next)
	}
	if next := cat.NextPhase("phase_3"); next != models.PhaseComplete {
		t.Errorf("NextPhase(phase_3) = %s, want %s", next, models.PhaseComplete)
	}
	if next := cat.NextPhase("bogus"); next != models.PhaseComplete {
		t.Errorf("NextPhase(bogus) = %s, want %s", next, models.PhaseComplete)
	}

	if idx, ok := cat.PhaseIndex("phase_2"); !ok || idx != 1 {
		t.Errorf("PhaseIndex(phase_2) = %d, %v", idx, ok)
	}
	if _, ok := cat.PhaseIndex(models.PhaseComplete); ok {
		t.Error("terminal sentinel should not have a phase index")
	}

	if !cat.IsTerminal(models.PhaseComplete) {
		t.Error("IsTerminal should recognize the sentinel")
	}
	if cat.IsTerminal("phase_3") {
		t.Error("base phases are not terminal")
	}
}

func TestQuestionLookups(t *testing.T) {
	cat, err := New(validDefinition())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	q, ok := cat.QuestionByID("q2")
	if !ok {
		t.Fatal("QuestionByID(q2) not found")
	}
	if q.FieldName != "goal" {
		t.Errorf("expected fieldName goal, got %s", q.FieldName)
	}
	if _, ok := cat.QuestionByID("q_missing"); ok {
		t.Error("QuestionByID should miss on an unknown id")
	}

	phase1 := cat.PhaseQuestions("phase_1")
	if len(phase1) != 1 || phase1[0].ID != "q1" {
		t.Errorf("PhaseQuestions(phase_1) = %+v", phase1)
	}
	if qs := cat.PhaseQuestions("phase_9"); len(qs) != 0 {
		t.Errorf("PhaseQuestions of an unknown phase should be empty, got %d", len(qs))
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	cat, err := New(validDefinition())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	qs := cat.Questions()
	qs[0].ID = "mutated"
	if again := cat.Questions(); again[0].ID != "q1" {
		t.Error("mutating the returned slice should not affect the catalog")
	}

	phases := cat.Phases()
	phases[0] = "mutated"
	if cat.FirstPhase() != "phase_1" {
		t.Error("mutating the returned phases should not affect the catalog")
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("embedded default catalog failed to load: %v", err)
	}
	if cat.TotalQuestions() == 0 {
		t.Fatal("default catalog has no questions")
	}
	if cat.FirstPhase() != "phase_1" {
		t.Errorf("expected default first phase phase_1, got %s", cat.FirstPhase())
	}
	for _, p := range cat.Phases() {
		if len(cat.PhaseQuestions(p)) == 0 {
			t.Errorf("default catalog phase %s has no questions", p)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
phases:
  - phase_1
  - phase_2
  - phase_3
questions:
  - id: q1
    phase: phase_1
    prompt: "First name?"
    answerType: text
    required: true
    fieldName: firstName
    order: 1
  - id: q2
    phase: phase_2
    prompt: "Main goal?"
    answerType: text
    required: true
    fieldName: goal
    order: 2
  - id: q3
    phase: phase_3
    prompt: "Sleep hours?"
    answerType: number
    required: false
    fieldName: sleepHours
    order: 3
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.TotalQuestions() != 3 {
		t.Errorf("expected 3 questions, got %d", cat.TotalQuestions())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("{not yaml:")); err == nil {
		t.Error("Parse should fail on malformed YAML")
	}
}
