package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"example.com/ipmt/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

const systemInstruction = "You write entries for an Individual Performance Monitoring Tool. " +
	"Combine the listed work accomplishments into one concise sentence in past tense. " +
	"Do not invent work that is not listed. Reply with the sentence only."

// generator is the slice of *genai.Models the delegate needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIDelegate summarizes through the Gemini API.
type GenAIDelegate struct {
	models  generator
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// GenAIOption configures a GenAIDelegate.
type GenAIOption func(*GenAIDelegate)

// WithModel overrides DefaultModel.
func WithModel(model string) GenAIOption {
	return func(d *GenAIDelegate) {
		if model != "" {
			d.model = model
		}
	}
}

// WithTimeout bounds each call; zero leaves the caller's deadline alone.
func WithTimeout(timeout time.Duration) GenAIOption {
	return func(d *GenAIDelegate) { d.timeout = timeout }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) GenAIOption {
	return func(d *GenAIDelegate) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewGenAIDelegate builds a delegate backed by a Gemini API client.
func NewGenAIDelegate(ctx context.Context, apiKey string, opts ...GenAIOption) (*GenAIDelegate, error) {
	if apiKey == "" {
		return nil, errors.New("genai api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGenAIDelegate(client.Models, opts...), nil
}

func newGenAIDelegate(models generator, opts ...GenAIOption) *GenAIDelegate {
	d := &GenAIDelegate{models: models, model: DefaultModel, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Summarize implements Delegate. Errors wrap domain.ErrDelegateFailure.
func (d *GenAIDelegate) Summarize(ctx context.Context, label string, descriptions []string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       &temperature,
	}
	resp, err := d.models.GenerateContent(ctx, d.model, genai.Text(BuildPrompt(label, descriptions)), config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDelegateFailure, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrDelegateFailure)
	}
	d.logger.Debug("summarized accomplishments",
		zap.String("indicator", label),
		zap.Int("descriptions", len(descriptions)))
	return text, nil
}

// BuildPrompt renders the user prompt for one indicator.
func BuildPrompt(label string, descriptions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Success indicator: %s\n", label)
	b.WriteString("Accomplishments:\n")
	for i, desc := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(desc))
	}
	return b.String()
}
