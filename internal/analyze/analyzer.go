// Package analyze asks a language model to extract hive inspections from a
// transcript. It returns the raw response text; normalization happens
// downstream.
package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/beekeep/internal/config"
	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/resilience"
	"github.com/sells-group/beekeep/internal/salvage"
	"github.com/sells-group/beekeep/pkg/anthropic"
)

const temperature = 0.1

// Analyzer calls the model with the extraction instruction.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	policy    resilience.Policy
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPolicy overrides the retry policy.
func WithPolicy(p resilience.Policy) Option {
	return func(a *Analyzer) { a.policy = p }
}

// WithLimiter overrides the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Analyzer) { a.limiter = l }
}

// New creates an Analyzer from the Anthropic settings.
func New(client anthropic.Client, cfg config.AnthropicConfig, opts ...Option) *Analyzer {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}
	a := &Analyzer{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(limit, 1),
		policy:    resilience.DefaultPolicy().WithAttempts(cfg.MaxRetries),
	}
	a.policy.OnRetry = resilience.RetryLogger("anthropic", "extract")
	for _, o := range opts {
		o(a)
	}
	return a
}

// Extract returns the model's response text for transcript. An empty
// transcript or an empty response yields salvage.ErrEmptyExtraction.
func (a *Analyzer) Extract(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", eris.Wrap(salvage.ErrEmptyExtraction, "analyze: empty transcript")
	}

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    Instruction(),
		Messages:  []anthropic.Message{{Role: "user", Content: transcriptMessage(transcript)}},
	}
	temp := temperature
	req.Temperature = &temp

	resp, err := resilience.Do(ctx, a.policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "analyze: rate limit wait")
		}
		resp, err := a.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, resilience.Classify(err, anthropic.StatusCode(err))
		}
		return resp, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "analyze: extract")
	}

	resp.Usage.LogCost(a.model, "analyze")
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("analyze: response truncated at max tokens",
			zap.Int64("max_tokens", a.maxTokens),
		)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Wrap(salvage.ErrEmptyExtraction, "analyze: empty response")
	}
	return text, nil
}

// Instruction is the fixed extraction instruction. It lists every schema
// key with the value form the validator accepts.
func Instruction() string {
	var sb strings.Builder
	sb.WriteString("You are a beekeeping assistant. Extract structured data about every hive ")
	sb.WriteString("mentioned in the inspection transcript.\n\nUse exactly these keys:\n")
	for _, f := range model.Schema.Fields {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", f.Key, f.Label, valueHint(f.Kind))
	}
	sb.WriteString("\nOmit keys that are not mentioned. Return ONLY a JSON array with one ")
	sb.WriteString("object per hive. If several hives are mentioned, create separate objects.")
	return sb.String()
}

func valueHint(k model.FieldKind) string {
	switch k {
	case model.KindHive:
		return "hive name or number as spoken, required"
	case model.KindYesNo:
		return `"ja" or "nej"`
	case model.KindScale:
		return fmt.Sprintf("integer %d-%d", model.ScaleMin, model.ScaleMax)
	case model.KindCount:
		return "non-negative integer"
	case model.KindConfidence:
		return "number 0-1, your confidence in the extraction"
	default:
		return "free text"
	}
}

func transcriptMessage(transcript string) string {
	return "Transcript:\n\"\"\"\n" + transcript + "\n\"\"\""
}
