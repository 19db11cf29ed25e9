// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// The only operation is summarizing a completed intake into a short
// coach-style profile blurb. The client is optional: when no API key is
// configured the server runs without it.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientInterface defines the GenAI operations consumed by the API layer.
type ClientInterface interface {
	SummarizeIntake(ctx context.Context, responses map[string]interface{}) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding $OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

const summarySystemPrompt = "You are an encouraging fitness coach. " +
	"Given a member's onboarding answers, write a short, warm summary of who they are and what they want to achieve. " +
	"Two or three sentences, no bullet points, no questions."

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient initializes a new GenAI client. The API key comes from options
// or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	slog.Debug("genai.NewClient: client created", "model", model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// SummarizeIntake generates a short profile summary from recorded intake
// answers.
func (c *Client) SummarizeIntake(ctx context.Context, responses map[string]interface{}) (string, error) {
	if len(responses) == 0 {
		return "", fmt.Errorf("no responses to summarize")
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarySystemPrompt),
			openai.UserMessage(buildSummaryContext(responses)),
		},
	})
	if err != nil {
		slog.Error("genai.SummarizeIntake: chat completion failed", "error", err)
		return "", fmt.Errorf("failed to generate intake summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.SummarizeIntake: no choices returned")
		return "", fmt.Errorf("no choices returned")
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Info("genai.SummarizeIntake: summary generated", "length", len(summary))
	return summary, nil
}

// buildSummaryContext renders the recorded answers as a stable, readable
// block for the model.
func buildSummaryContext(responses map[string]interface{}) string {
	fields := make([]string, 0, len(responses))
	for field := range responses {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("ONBOARDING ANSWERS:\n")
	for _, field := range fields {
		fmt.Fprintf(&b, "• %s: %v\n", field, responses[field])
	}
	return b.String()
}
