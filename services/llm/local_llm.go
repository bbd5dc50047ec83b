package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

var tracer = otel.Tracer("skygen.llm.local") // Specific tracer name

// LocalClient talks to the self-hosted llama inference server.
//
// The server exposes POST /generate returning {"text": ...} and
// POST /generate-stream returning SSE frames {"token": ...} terminated
// by {"done": true}.
type LocalClient struct {
	httpClient *http.Client
	baseURL    string
}

// localGenerateRequest is the llama server request structure.
type localGenerateRequest struct {
	Messages    []datatypes.Message `json:"messages"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Temperature *float32            `json:"temperature,omitempty"`
	TopP        *float32            `json:"top_p,omitempty"`
}

type localGenerateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// localStreamFrame is one SSE data payload from /generate-stream.
type localStreamFrame struct {
	Token *string `json:"token,omitempty"`
	Done  bool    `json:"done,omitempty"`
	Error string  `json:"error,omitempty"`
}

func NewLocalClient() (*LocalClient, error) {
	baseURL := os.Getenv("LOCAL_LLM_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("LOCAL_LLM_BASE_URL environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing local llama client", "base_url", baseURL)
	return &LocalClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}, nil
}

// Generate implements the LLMClient interface
func (l *LocalClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {
	return l.Chat(ctx, []datatypes.Message{{Role: "user", Content: prompt}}, params)
}

func (l *LocalClient) Chat(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "LocalClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))
	slog.Debug("Generating text via local llama server", "num_messages", len(messages))

	respBody, status, err := l.post(ctx, "/generate", messages, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if status != http.StatusOK {
		slog.Error("Local llama server returned an error", "status_code", status, "response", string(respBody))
		return "", fmt.Errorf("local llama server failed with status %d: %s", status, string(respBody))
	}

	var genResp localGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse JSON response from local llama server", "error", err, "response", string(respBody))
		return "", fmt.Errorf("failed to parse local llama response: %w", err)
	}
	// The server reports generation failures in-band with status 200.
	if genResp.Error != "" {
		slog.Error("Local llama server reported a generation error", "error", genResp.Error)
		return "", fmt.Errorf("local llama generation failed: %s", genResp.Error)
	}
	slog.Debug("Received response from local llama server")
	return genResp.Text, nil
}

// ChatStream streams tokens from the local llama server's SSE endpoint.
func (l *LocalClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, cb StreamCallback) error {

	ctx, span := tracer.Start(ctx, "LocalClient.ChatStream")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.num_messages", len(messages)))

	payload := localGenerateRequest{
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal stream request to local llama server: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/generate-stream", bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create stream request to local llama server: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Local llama stream call failed", "error", err)
		return fmt.Errorf("local llama stream call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("local llama stream failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var frame localStreamFrame
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &frame); err != nil {
			slog.Warn("Skipping malformed stream frame from local llama server", "error", err)
			continue
		}
		switch {
		case frame.Error != "":
			streamErr := fmt.Errorf("local llama generation failed: %s", frame.Error)
			_ = cb(StreamEvent{Type: StreamEventError, Err: streamErr})
			return streamErr
		case frame.Done:
			return cb(StreamEvent{Type: StreamEventDone})
		case frame.Token != nil:
			if err := cb(StreamEvent{Type: StreamEventToken, Token: *frame.Token}); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("local llama stream read failed: %w", err)
	}
	// Stream ended without a done frame; treat as complete.
	return cb(StreamEvent{Type: StreamEventDone})
}

func (l *LocalClient) post(ctx context.Context, path string, messages []datatypes.Message,
	params GenerationParams) ([]byte, int, error) {

	payload := localGenerateRequest{
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request to local llama server: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request to local llama server: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		slog.Error("Local llama API call failed", "error", err)
		return nil, 0, fmt.Errorf("local llama API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body from local llama server: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
