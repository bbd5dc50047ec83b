package llm

import (
	"context"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

// GenerationParams are the per-call sampling knobs.
//
// Model, when set, overrides the client's default model for that call.
// The classifier relies on this to pin a smaller model at temperature 0.
type GenerationParams struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates events delivered to a StreamCallback.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is a single event from a streaming generation.
type StreamEvent struct {
	Type  StreamEventType
	Token string
	Err   error
}

// StreamCallback receives streaming events in arrival order.
// Returning a non-nil error aborts the stream.
type StreamCallback func(event StreamEvent) error

// LLMClient defines the standard interface for any LLM backend
// TODO: Add more methods to this interface.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, cb StreamCallback) error
}
