package genai

import (
	"strings"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("NewClient without an API key should fail")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	client, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("NewClient with explicit key failed: %v", err)
	}
	if client.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", client.model)
	}
}

func TestNewClientFallsBackToEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	if _, err := NewClient(); err != nil {
		t.Errorf("NewClient should pick up the environment key: %v", err)
	}
}

func TestBuildSummaryContext(t *testing.T) {
	responses := map[string]interface{}{
		"sleepHours": 7.5,
		"firstName":  "Ada",
		"goal":       "get stronger",
	}

	got := buildSummaryContext(responses)
	if !strings.HasPrefix(got, "ONBOARDING ANSWERS:\n") {
		t.Errorf("unexpected header: %q", got)
	}

	// Fields are rendered in sorted order so the prompt is stable.
	lines := strings.Split(strings.TrimSpace(got), "\n")[1:]
	want := []string{
		"• firstName: Ada",
		"• goal: get stronger",
		"• sleepHours: 7.5",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d answer lines, got %d: %q", len(want), len(lines), got)
	}
	for i, line := range lines {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}

	// Repeated calls over the same map produce identical output.
	if again := buildSummaryContext(responses); again != got {
		t.Error("buildSummaryContext is not deterministic")
	}
}
