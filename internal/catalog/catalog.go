// Package catalog loads and validates the intake question catalog.
//
// The catalog is static configuration: an ordered list of base phases and an
// ordered set of questions tagged with a phase. Integrity (unique IDs, unique
// field names, strictly increasing ask order, known phases) is checked once
// at load so the engine can treat the catalog as trusted data.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	_ "embed"

	"github.com/pulsefit/intakepipe/internal/models"
	"gopkg.in/yaml.v3"
)

// BasePhaseCount is the number of base phases the status projections expose.
const BasePhaseCount = 3

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Definition is the on-disk catalog format.
type Definition struct {
	Phases    []string          `yaml:"phases"`
	Questions []models.Question `yaml:"questions"`
}

// Catalog is a validated, immutable question catalog.
type Catalog struct {
	phases     []string
	questions  []models.Question // sorted by global ask order
	byID       map[string]models.Question
	byPhase    map[string][]models.Question
	phaseIndex map[string]int
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load reads a catalog definition from an explicit file path.
func Load(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Error("catalog.Load: failed to read catalog file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	c, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	slog.Info("catalog.Load: catalog loaded from file", "path", path, "questions", len(c.questions))
	return c, nil
}

// Parse decodes and validates a catalog definition from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return New(def)
}

// New validates a definition and builds the catalog indexes.
func New(def Definition) (*Catalog, error) {
	if len(def.Phases) != BasePhaseCount {
		return nil, fmt.Errorf("catalog must define exactly %d base phases, got %d", BasePhaseCount, len(def.Phases))
	}
	phaseIndex := make(map[string]int, len(def.Phases))
	for i, p := range def.Phases {
		if p == "" {
			return nil, fmt.Errorf("phase %d has an empty name", i)
		}
		if p == models.PhaseComplete {
			return nil, fmt.Errorf("phase name %q is reserved for the terminal sentinel", models.PhaseComplete)
		}
		if _, dup := phaseIndex[p]; dup {
			return nil, fmt.Errorf("duplicate phase %q", p)
		}
		phaseIndex[p] = i
	}

	if len(def.Questions) == 0 {
		return nil, fmt.Errorf("catalog defines no questions")
	}

	questions := make([]models.Question, len(def.Questions))
	copy(questions, def.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})

	byID := make(map[string]models.Question, len(questions))
	byPhase := make(map[string][]models.Question, len(def.Phases))
	seenFields := make(map[string]string, len(questions))
	prevOrder := 0
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question %d has an empty id", i)
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		if q.FieldName == "" {
			return nil, fmt.Errorf("question %s has an empty fieldName", q.ID)
		}
		if owner, dup := seenFields[q.FieldName]; dup {
			return nil, fmt.Errorf("questions %s and %s share fieldName %q", owner, q.ID, q.FieldName)
		}
		seenFields[q.FieldName] = q.ID
		if q.Prompt == "" {
			return nil, fmt.Errorf("question %s has an empty prompt", q.ID)
		}
		if !models.IsValidAnswerType(q.AnswerType) {
			return nil, fmt.Errorf("question %s has invalid answerType %q", q.ID, q.AnswerType)
		}
		if _, known := phaseIndex[q.Phase]; !known {
			return nil, fmt.Errorf("question %s references undeclared phase %q", q.ID, q.Phase)
		}
		if i > 0 && q.Order <= prevOrder {
			return nil, fmt.Errorf("question %s order %d is not strictly increasing", q.ID, q.Order)
		}
		prevOrder = q.Order

		isSelect := q.AnswerType == models.AnswerTypeSingleSelect || q.AnswerType == models.AnswerTypeMultiSelect
		if isSelect && len(q.Options) == 0 {
			return nil, fmt.Errorf("question %s is a select type but defines no options", q.ID)
		}
		if !isSelect && len(q.Options) > 0 {
			return nil, fmt.Errorf("question %s defines options but is not a select type", q.ID)
		}

		byID[q.ID] = q
		byPhase[q.Phase] = append(byPhase[q.Phase], q)
	}

	slog.Debug("catalog.New: catalog validated", "phases", len(def.Phases), "questions", len(questions))
	return &Catalog{
		phases:     append([]string(nil), def.Phases...),
		questions:  questions,
		byID:       byID,
		byPhase:    byPhase,
		phaseIndex: phaseIndex,
	}, nil
}

// Questions returns every question in global ask order.
func (c *Catalog) Questions() []models.Question {
	out := make([]models.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// TotalQuestions returns the number of questions across all phases.
func (c *Catalog) TotalQuestions() int {
	return len(c.questions)
}

// Phases returns the ordered base phases.
func (c *Catalog) Phases() []string {
	out := make([]string, len(c.phases))
	copy(out, c.phases)
	return out
}

// FirstPhase returns the initial phase of a fresh progress record.
func (c *Catalog) FirstPhase() string {
	return c.phases[0]
}

// NextPhase returns the phase following p in the fixed phase order, or the
// terminal sentinel when p is the last base phase or unknown.
func (c *Catalog) NextPhase(p string) string {
	idx, ok := c.phaseIndex[p]
	if !ok || idx+1 >= len(c.phases) {
		return models.PhaseComplete
	}
	return c.phases[idx+1]
}

// PhaseIndex returns the position of a base phase in the fixed order.
func (c *Catalog) PhaseIndex(p string) (int, bool) {
	idx, ok := c.phaseIndex[p]
	return idx, ok
}

// IsTerminal reports whether p is the terminal sentinel.
func (c *Catalog) IsTerminal(p string) bool {
	return p == models.PhaseComplete
}

// QuestionByID looks up a catalog entry by its stable identifier.
func (c *Catalog) QuestionByID(id string) (models.Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// PhaseQuestions returns the questions tagged with the given phase, in ask
// order. The result may be empty for a phase with no questions.
func (c *Catalog) PhaseQuestions(phase string) []models.Question {
	qs := c.byPhase[phase]
	out := make([]models.Question, len(qs))
	copy(out, qs)
	return out
}
