package reasoner

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

func messageResponse(text string) string {
	b, _ := jsoniter.Marshal(map[string]any{
		"id":            "msg_01",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-test",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
	})
	return string(b)
}

func TestClient_CompleteJSON(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, jsoniter.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageResponse("```json\n{\"pattern\":\"timeouts\"}\n```"))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "claude-test", Attempts: 1}, zap.NewNop())
	out, err := c.Complete(context.Background(), monitor.CompletionRequest{
		Prompt:      "diagnose",
		System:      "You are an SRE.",
		Format:      monitor.FormatJSON,
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pattern":"timeouts"}`, out)

	assert.Equal(t, "claude-test", body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.NotEmpty(t, body["system"])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`)
			return
		}
		_, _ = io.WriteString(w, messageResponse("All good."))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", Attempts: 2}, zap.NewNop())
	out, err := c.Complete(context.Background(), monitor.CompletionRequest{Prompt: "p", Format: monitor.FormatText})
	require.NoError(t, err)
	assert.Equal(t, "All good.", out)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_UnparsableJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageResponse("I cannot help with that."))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m"}, zap.NewNop())
	_, err := c.Complete(context.Background(), monitor.CompletionRequest{Prompt: "p", Format: monitor.FormatJSON})
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestClient_NoAPIKey(t *testing.T) {
	c := New(Config{Model: "m"}, zap.NewNop())
	_, err := c.Complete(context.Background(), monitor.CompletionRequest{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
