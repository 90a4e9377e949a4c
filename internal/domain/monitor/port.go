package monitor

import (
	"context"
	"time"
)

// ProbeResponse is what the HTTP transport surfaces for one request.
// StatusCode is zero when the transport does not report one.
type ProbeResponse struct {
	StatusCode int
	Body       []byte
}

type HTTPProbe interface {
	Get(ctx context.Context, url string, timeout time.Duration) (ProbeResponse, error)
}

type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

type CompletionRequest struct {
	Prompt      string
	System      string
	Format      ResponseFormat
	Temperature float64
	MaxTokens   int
}

type Reasoner interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type ChatSender interface {
	Send(ctx context.Context, chatID, message, format string) error
}

// AlertChannel delivers one composed alert through a single notification backend.
type AlertChannel interface {
	Name() string
	Deliver(ctx context.Context, a Alert) error
}

type Clock interface {
	Now() time.Time
}
