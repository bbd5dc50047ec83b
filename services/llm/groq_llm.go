package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

type GroqClient struct {
	client *openai.Client
	model  string
}

func NewGroqClient() (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	model := os.Getenv("GROQ_MODEL") // e.g., "llama-3.3-70b-versatile"
	if apiKey == "" {
		secretPath := "/run/secrets/groq_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Groq API Key from Podman Secrets")
		} else {
			slog.Error("GROQ_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
		slog.Warn("GROQ_MODEL not set, defaulting to llama-3.3-70b-versatile")
	}
	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Groq client", "model", model, "base_url", config.BaseURL)
	return &GroqClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate implements the LLMClient interface
func (g *GroqClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return g.Chat(ctx, []datatypes.Message{{Role: "user", Content: prompt}}, params)
}

// Chat sends the full message history to Groq and returns the assistant text.
//
// # Description
//
// Messages are forwarded verbatim, in order. A "system" first message is
// allowed here even though the HTTP layer rejects it from clients; the
// agent composes its own system instruction server-side.
//
// # Inputs
//
//   - ctx: Context for cancellation and the per-call timeout
//   - messages: Conversation history, oldest first
//   - params: Sampling knobs; params.Model overrides the default model
//
// # Outputs
//
//   - string: The assistant message content
//   - error: Non-nil on transport failure or an empty choice list
func (g *GroqClient) Chat(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (string, error) {

	req := g.buildRequest(messages, params)
	slog.Debug("Generating text via Groq", "model", req.Model, "num_messages", len(messages))

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Groq API call failed", "error", err)
		return "", fmt.Errorf("Groq API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Groq returned no choices or empty content")
		return "", fmt.Errorf("Groq returned no choices")
	}
	slog.Debug("Received response from Groq", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// ChatStream streams the assistant response token by token.
//
// # Description
//
// Opens a streaming completion and invokes cb once per content delta, then
// once with StreamEventDone. Transport errors after the stream opened are
// delivered as a StreamEventError event AND returned, so callers can relay
// the failure on their own wire before closing it.
//
// # Thread Safety
//
//   - cb is invoked from a single goroutine, in arrival order
func (g *GroqClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, cb StreamCallback) error {

	req := g.buildRequest(messages, params)
	req.Stream = true
	slog.Debug("Streaming text via Groq", "model", req.Model, "num_messages", len(messages))

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		slog.Error("Groq stream open failed", "error", err)
		return fmt.Errorf("Groq stream open failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return cb(StreamEvent{Type: StreamEventDone})
		}
		if err != nil {
			slog.Error("Groq stream receive failed", "error", err)
			_ = cb(StreamEvent{Type: StreamEventError, Err: err})
			return fmt.Errorf("Groq stream receive failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := cb(StreamEvent{Type: StreamEventToken, Token: delta}); err != nil {
			return err
		}
	}
}

func (g *GroqClient) buildRequest(messages []datatypes.Message, params GenerationParams) openai.ChatCompletionRequest {
	model := g.model
	if params.Model != "" {
		model = params.Model
	}
	req := openai.ChatCompletionRequest{Model: model}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
		if *params.Temperature == 0 {
			// go-openai omits zero temperature from the JSON body, which
			// would silently fall back to the provider default.
			req.Temperature = 1e-8
		}
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}
