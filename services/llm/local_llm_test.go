package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

// newLocalTestClient points a LocalClient at an httptest server.
func newLocalTestClient(t *testing.T, handler http.HandlerFunc) *LocalClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("LOCAL_LLM_BASE_URL", srv.URL)
	client, err := NewLocalClient()
	require.NoError(t, err)
	return client
}

func userMessages(content string) []datatypes.Message {
	return []datatypes.Message{{Role: "user", Content: content}}
}

// TestNewLocalClient_RequiresBaseURL verifies the env guard.
func TestNewLocalClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("LOCAL_LLM_BASE_URL", "")

	_, err := NewLocalClient()
	assert.Error(t, err)
}

// TestLocalClient_Chat verifies the /generate request and response parsing.
func TestLocalClient_Chat(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req localGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "Hello", req.Messages[0].Content)

		_ = json.NewEncoder(w).Encode(localGenerateResponse{Text: "Hi there"})
	})

	text, err := client.Chat(context.Background(), userMessages("Hello"), GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
}

// TestLocalClient_Chat_InBandError verifies a 200 response with an error
// field still fails the call.
func TestLocalClient_Chat_InBandError(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(localGenerateResponse{Error: "model not loaded"})
	})

	_, err := client.Chat(context.Background(), userMessages("Hello"), GenerationParams{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

// TestLocalClient_Chat_HTTPError verifies non-200 responses fail.
func TestLocalClient_Chat_HTTPError(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Chat(context.Background(), userMessages("Hello"), GenerationParams{})
	assert.Error(t, err)
}

// TestLocalClient_ChatStream verifies SSE parsing of the token stream.
func TestLocalClient_ChatStream(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"token\": \"Hello\"}\n\n")
		fmt.Fprint(w, ": keepalive comment, must be ignored\n\n")
		fmt.Fprint(w, "data: {\"token\": \" world\"}\n\n")
		fmt.Fprint(w, "data: {\"done\": true}\n\n")
	})

	var tokens []string
	doneSeen := false
	err := client.ChatStream(context.Background(), userMessages("Hello"), GenerationParams{},
		func(ev StreamEvent) error {
			switch ev.Type {
			case StreamEventToken:
				tokens = append(tokens, ev.Token)
			case StreamEventDone:
				doneSeen = true
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " world"}, tokens)
	assert.True(t, doneSeen)
}

// TestLocalClient_ChatStream_InBandError verifies an error frame aborts the
// stream with an error event.
func TestLocalClient_ChatStream_InBandError(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"token\": \"partial\"}\n\n")
		fmt.Fprint(w, "data: {\"error\": \"out of memory\"}\n\n")
	})

	var events []StreamEventType
	err := client.ChatStream(context.Background(), userMessages("Hello"), GenerationParams{},
		func(ev StreamEvent) error {
			events = append(events, ev.Type)
			return nil
		})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, []StreamEventType{StreamEventToken, StreamEventError}, events)
}

// TestLocalClient_ChatStream_TruncatedStream verifies a stream that ends
// without a done frame is treated as complete.
func TestLocalClient_ChatStream_TruncatedStream(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"token\": \"only\"}\n\n")
	})

	doneSeen := false
	err := client.ChatStream(context.Background(), userMessages("Hello"), GenerationParams{},
		func(ev StreamEvent) error {
			if ev.Type == StreamEventDone {
				doneSeen = true
			}
			return nil
		})

	require.NoError(t, err)
	assert.True(t, doneSeen)
}

// TestLocalClient_ChatStream_CallbackStop verifies a callback error stops
// consumption and propagates.
func TestLocalClient_ChatStream_CallbackStop(t *testing.T) {
	client := newLocalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, "data: {\"token\": \"t%d\"}\n\n", i)
		}
		fmt.Fprint(w, "data: {\"done\": true}\n\n")
	})

	stop := fmt.Errorf("client gone")
	count := 0
	err := client.ChatStream(context.Background(), userMessages("Hello"), GenerationParams{},
		func(ev StreamEvent) error {
			count++
			if count == 3 {
				return stop
			}
			return nil
		})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, count)
}
