package reasoner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/obs/retry"
)

var _ monitor.Reasoner = (*Client)(nil)

var ErrNoAPIKey = errors.New("reasoner: api key is not configured")

const jsonInstruction = "Respond with a single JSON object only. Do not wrap it in markdown."

type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	DefaultMaxTokens int
	Attempts         int
	CallTimeout      time.Duration
}

// Client completes prompts through the Anthropic Messages API.
type Client struct {
	api    *anthropic.Client
	cfg    Config
	policy retry.Policy
	tracer trace.Tracer
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.L()
	}
	log = log.With(zap.String("component", "reasoner"))
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 1024
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	api := anthropic.NewClient(opts...)

	return &Client{
		api:    &api,
		cfg:    cfg,
		policy: retry.ReasonerPolicy(log, cfg.Attempts, transient),
		tracer: otel.Tracer("reasoner"),
		log:    log,
	}
}

func (c *Client) Complete(ctx context.Context, req monitor.CompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	ctx, span := c.tracer.Start(ctx, "reasoner.complete", trace.WithAttributes(
		attribute.String("reasoner.model", c.cfg.Model),
		attribute.String("reasoner.format", string(req.Format)),
	))
	defer span.End()

	params := c.params(req)

	var text string
	err := retry.Do(ctx, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		resp, err := c.api.Messages.New(callCtx, params)
		if err != nil {
			return err
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
		return nil
	}, c.policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	if req.Format == monitor.FormatJSON {
		obj, err := ExtractJSON(text)
		if err != nil {
			span.SetStatus(codes.Error, "unparsable output")
			return "", err
		}
		return obj, nil
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) params(req monitor.CompletionRequest) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.DefaultMaxTokens
	}
	system := req.System
	if req.Format == monitor.FormatJSON {
		system = strings.TrimSpace(system + "\n" + jsonInstruction)
	}

	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return p
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

// transient reports whether an API error is worth another attempt.
func transient(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
