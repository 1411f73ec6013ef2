// Package analysis asks an OpenAI-compatible chat model for tag suggestions
// and link summaries.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// MaxTags is the most tag names SuggestTags returns.
const MaxTags = 5

// maxInputBytes bounds the text sent to the model.
const maxInputBytes = 12000

// ErrModelRequired is returned when no model is supplied.
var ErrModelRequired = errors.New("analysis: model is required")

// Config selects the chat endpoint.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Analyzer wraps a chat model.
type Analyzer struct {
	model    llms.Model
	attempts int
	logger   *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer) error

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) error {
		if l != nil {
			a.logger = l
		}
		return nil
	}
}

// WithAttempts sets how many times a malformed model reply is retried.
func WithAttempts(n int) Option {
	return func(a *Analyzer) error {
		if n < 1 {
			return fmt.Errorf("analysis: attempts must be at least 1, got %d", n)
		}
		a.attempts = n
		return nil
	}
}

// New creates an Analyzer backed by the OpenAI-compatible API in cfg.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	clientOpts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return NewWithModel(client, opts...)
}

// NewWithModel creates an Analyzer around an existing model.
func NewWithModel(model llms.Model, opts ...Option) (*Analyzer, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	a := &Analyzer{
		model:    model,
		attempts: 3,
		logger:   slog.Default().With("component", "analysis"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

const tagPrompt = `You label items in a personal knowledge base.
Given an item's title and text, reply with a JSON object {"tags": [...]} holding
at most 5 short, lowercase topic tags (one or two words each).
Prefer tags from the "existing" list when they fit. Do not explain.`

type tagReply struct {
	Tags []string `json:"tags"`
}

// SuggestTags returns up to MaxTags lowercase tag names for the item.
// Names from existing are preferred by the prompt but not enforced.
func (a *Analyzer) SuggestTags(ctx context.Context, title, text string, existing []string) ([]string, error) {
	input := fmt.Sprintf("title: %s\nexisting: %s\n\n%s",
		title, strings.Join(existing, ", "), clip(text, maxInputBytes))

	var reply tagReply
	if err := a.generateJSON(ctx, tagPrompt, input, &reply); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(reply.Tags))
	tags := make([]string, 0, MaxTags)
	for _, t := range reply.Tags {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
		if len(tags) == MaxTags {
			break
		}
	}
	a.logger.Debug("suggested tags", "title", title, "count", len(tags))
	return tags, nil
}

const summaryPrompt = `Summarize the following web page for a personal knowledge base in
two or three plain sentences. Reply with the summary only.`

// Summarize returns a short plain-text summary of a page.
func (a *Analyzer) Summarize(ctx context.Context, title, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := a.model.GenerateContent(ctx,
		messages(summaryPrompt, fmt.Sprintf("title: %s\n\n%s", title, clip(text, maxInputBytes))),
		llms.WithTemperature(0.2),
	)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// generateJSON asks for a JSON reply and decodes it into v, retrying when the
// model returns something that does not parse.
func (a *Analyzer) generateJSON(ctx context.Context, system, input string, v any) error {
	var lastErr error
	for attempt := 0; attempt < a.attempts; attempt++ {
		resp, err := a.model.GenerateContent(ctx, messages(system, input),
			llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			return fmt.Errorf("generating content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil
		}

		text := stripFences(resp.Choices[0].Content)
		if err := json.Unmarshal([]byte(text), v); err != nil {
			lastErr = err
			a.logger.Warn("unparseable model reply", "attempt", attempt+1, "err", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("parsing model reply: %w", lastErr)
}

func messages(system, human string) []llms.MessageContent {
	return []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(human)}},
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
