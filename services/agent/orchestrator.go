// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Praveenkumar76/SkyGen-backend/services/llm"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

var tracer = otel.Tracer("skygen.agent")

// =============================================================================
// Turn States
// =============================================================================

// State names the phases of one agent turn. Transitions are logged; the
// machine itself is the control flow of RunTurn.
type State string

const (
	StateStart           State = "START"
	StateClassifying     State = "CLASSIFYING"
	StateDirectStreaming State = "DIRECT_STREAMING"
	StateToolThought     State = "TOOL_THOUGHT"
	StateToolCalling     State = "TOOL_CALLING"
	StateToolConfirm     State = "TOOL_STREAMING_CONFIRM"
	StateDone            State = "DONE"
	StateError           State = "ERROR"
)

// Sentinel errors for turn outcomes. Handlers map these to metric error
// codes; the client-facing text has already been written to the sink by the
// time one of these is returned.
var (
	ErrClassifyFailed = errors.New("agent: classification call failed")
	ErrStreamFailed   = errors.New("agent: streaming call failed")
	ErrUnknownTool    = errors.New("agent: unknown tool requested")
	ErrBadToolCall    = errors.New("agent: malformed tool call")
	ErrClientGone     = errors.New("agent: client disconnected")
)

// =============================================================================
// Event Sink
// =============================================================================

// EventSink receives the typed events of one agent turn, in order. The SSE
// writer in the handlers package is the production implementation.
//
// Write errors mean the client connection is unusable; the orchestrator
// stops emitting when it sees one.
type EventSink interface {
	WriteThought(content string) error
	WriteToolCall(toolName string, toolInput map[string]any) error
	WriteToolOutput(content string) error
	WriteToken(content string) error
	WriteFinal(content string) error
	WriteAgentAction(action string) error
	WriteError(content string) error
	WriteDone() error
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config tunes one Orchestrator.
type Config struct {
	// ClassifyModel optionally overrides the client's default model for the
	// temperature-0 classification call.
	ClassifyModel string

	// ConfirmModel optionally pins a cheaper model for post-tool
	// confirmation answers.
	ConfirmModel string

	// ModelTimeout bounds each model call. Zero means 60s.
	ModelTimeout time.Duration

	// OnToolCall, when set, is invoked once per dispatch with the tool name
	// and the outcome (observation, sign_out, not_found, dispatch_error).
	// Used for metrics.
	OnToolCall func(tool, outcome string)
}

// Orchestrator runs one agent turn end to end.
//
// # Description
//
// A turn moves through START -> CLASSIFYING and then takes exactly one of
// two branches: DIRECT_STREAMING for conversational answers, or
// TOOL_THOUGHT -> TOOL_CALLING -> TOOL_STREAMING_CONFIRM for account
// actions. Every terminal path, including ERROR, ends with exactly one done
// frame. At most one tool runs per turn and nothing is retried.
//
// # Thread Safety
//
//   - Safe for concurrent use; per-turn state lives on the RunTurn stack
type Orchestrator struct {
	llmClient  llm.LLMClient
	dispatcher *Dispatcher
	registry   *Registry
	cfg        Config
}

// NewOrchestrator creates an Orchestrator.
//
// Panics if llmClient, dispatcher, or registry is nil.
func NewOrchestrator(llmClient llm.LLMClient, dispatcher *Dispatcher, registry *Registry, cfg Config) *Orchestrator {
	if llmClient == nil {
		panic("NewOrchestrator: llmClient must not be nil")
	}
	if dispatcher == nil {
		panic("NewOrchestrator: dispatcher must not be nil")
	}
	if registry == nil {
		panic("NewOrchestrator: registry must not be nil")
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 60 * time.Second
	}
	return &Orchestrator{
		llmClient:  llmClient,
		dispatcher: dispatcher,
		registry:   registry,
		cfg:        cfg,
	}
}

// RunTurn executes one agent turn and writes its events to sink.
//
// # Description
//
// All failures are converted to an error frame followed by the done frame;
// nothing escapes to the transport, including panics. The returned error
// exists for logging and metrics only. A client disconnect stops emission
// without an error frame; committed tool effects are not rolled back.
//
// # Inputs
//
//   - ctx: Request context; cancelled when the client disconnects
//   - userID: Trusted caller identity
//   - messages: Conversation history, oldest first, roles user/assistant
//   - sink: Destination for the turn's event stream
func (o *Orchestrator) RunTurn(ctx context.Context, userID string,
	messages []datatypes.Message, sink EventSink) (err error) {

	ctx, span := tracer.Start(ctx, "Orchestrator.RunTurn")
	defer span.End()
	span.SetAttributes(attribute.Int("agent.num_messages", len(messages)))

	state := StateStart
	doneEmitted := false
	finish := func() {
		state = StateDone
		if !doneEmitted {
			doneEmitted = true
			_ = sink.WriteDone()
		}
	}
	// fail writes the sanitized error frame and the done frame. Skips the
	// error frame when the client already went away.
	fail := func(clientMsg string) {
		state = StateError
		if ctx.Err() == nil {
			_ = sink.WriteError(clientMsg)
		}
		if !doneEmitted {
			doneEmitted = true
			_ = sink.WriteDone()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Agent turn panicked", "panic", r, "state", state)
			fail("An internal error occurred.")
			err = fmt.Errorf("agent turn panicked in state %s: %v", state, r)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	// Step 1: Compose the system prompt and run the classification call.
	state = StateClassifying
	systemPrompt := ComposeSystemPrompt(o.registry, userID)
	convo := make([]datatypes.Message, 0, len(messages)+1)
	convo = append(convo, datatypes.Message{Role: "system", Content: systemPrompt})
	convo = append(convo, messages...)

	classifyCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	raw, classifyErr := o.llmClient.Chat(classifyCtx, convo, o.classifyParams())
	cancel()
	if classifyErr != nil {
		slog.Error("Classification call failed", "error", classifyErr)
		span.RecordError(classifyErr)
		fail("The model backend failed to respond.")
		return fmt.Errorf("%w: %v", ErrClassifyFailed, classifyErr)
	}

	// Step 2: Decide the branch.
	cls := Classify(raw)
	span.SetAttributes(attribute.Bool("agent.tool_call", cls.IsToolCall))
	if !cls.IsToolCall {
		state = StateDirectStreaming
		return o.streamDirect(ctx, convo, sink, finish, fail)
	}

	// Step 3: Tool branch. Thought and sanitized call announcement first.
	state = StateToolThought
	span.SetAttributes(attribute.String("agent.tool_name", cls.ToolName))
	thought := cls.Thought
	if thought == "" {
		thought = fmt.Sprintf("Calling the %s tool.", cls.ToolName)
	}
	if err := sink.WriteThought(thought); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	sanitized := SanitizedInput(userID, cls.ToolInput)
	if err := sink.WriteToolCall(cls.ToolName, sanitized); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	// Step 4: Execute exactly one tool. Sign-out short-circuits the
	// confirmation call: the session is about to end client-side.
	state = StateToolCalling
	result := o.dispatcher.Dispatch(ctx, userID, cls.ToolName, cls.ToolInput)
	o.recordToolCall(cls.ToolName, result)
	switch res := result.(type) {
	case SignOut:
		_ = sink.WriteAgentAction(datatypes.ActionSignOut)
		finish()
		return nil
	case NotFound:
		fail(fmt.Sprintf("The tool '%s' is not available.", res.ToolName))
		return fmt.Errorf("%w: %s", ErrUnknownTool, res.ToolName)
	case DispatchError:
		fail(fmt.Sprintf("Could not run %s: %s.", res.ToolName, res.Reason))
		return fmt.Errorf("%w: %s: %s", ErrBadToolCall, res.ToolName, res.Reason)
	case Observation:
		if err := sink.WriteToolOutput(res.Text); err != nil {
			return fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		// Step 5: Stream the confirmation answer.
		state = StateToolConfirm
		return o.streamConfirmation(ctx, messages, cls.ToolName, res.Text, sink, finish, fail)
	default:
		fail("An internal error occurred.")
		return fmt.Errorf("agent: unhandled tool result %T", result)
	}
}

// streamDirect re-issues the classified request as a streaming call and
// relays tokens.
func (o *Orchestrator) streamDirect(ctx context.Context, convo []datatypes.Message,
	sink EventSink, finish func(), fail func(string)) error {

	streamCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()

	streamErr := o.llmClient.ChatStream(streamCtx, convo, o.classifyParams(), func(ev llm.StreamEvent) error {
		if ctx.Err() != nil {
			return ErrClientGone
		}
		if ev.Type == llm.StreamEventToken {
			return sink.WriteToken(ev.Token)
		}
		return nil
	})
	return o.endStream(ctx, streamErr, finish, fail)
}

// streamConfirmation asks the confirm model for a short answer grounded in
// the tool observation and relays it as final frames.
func (o *Orchestrator) streamConfirmation(ctx context.Context, history []datatypes.Message,
	toolName, observation string, sink EventSink, finish func(), fail func(string)) error {

	convo := make([]datatypes.Message, 0, len(history)+1)
	convo = append(convo, datatypes.Message{
		Role:    "system",
		Content: ComposeConfirmationPrompt(toolName, observation),
	})
	convo = append(convo, history...)

	streamCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()

	streamErr := o.llmClient.ChatStream(streamCtx, convo, o.confirmParams(), func(ev llm.StreamEvent) error {
		if ctx.Err() != nil {
			return ErrClientGone
		}
		if ev.Type == llm.StreamEventToken {
			return sink.WriteFinal(ev.Token)
		}
		return nil
	})
	return o.endStream(ctx, streamErr, finish, fail)
}

// endStream converts a streaming call outcome into the terminal frames.
func (o *Orchestrator) endStream(ctx context.Context, streamErr error, finish func(), fail func(string)) error {
	if streamErr == nil {
		finish()
		return nil
	}
	if errors.Is(streamErr, ErrClientGone) || ctx.Err() != nil {
		slog.Info("Client disconnected during stream")
		return fmt.Errorf("%w: %v", ErrClientGone, streamErr)
	}
	slog.Error("Streaming call failed", "error", streamErr)
	fail("The model stream failed.")
	return fmt.Errorf("%w: %v", ErrStreamFailed, streamErr)
}

func (o *Orchestrator) recordToolCall(tool string, result ToolResult) {
	if o.cfg.OnToolCall == nil {
		return
	}
	outcome := "observation"
	switch result.(type) {
	case SignOut:
		outcome = "sign_out"
	case NotFound:
		outcome = "not_found"
	case DispatchError:
		outcome = "dispatch_error"
	}
	o.cfg.OnToolCall(tool, outcome)
}

func (o *Orchestrator) classifyParams() llm.GenerationParams {
	temp := float32(0)
	return llm.GenerationParams{
		Model:       o.cfg.ClassifyModel,
		Temperature: &temp,
	}
}

func (o *Orchestrator) confirmParams() llm.GenerationParams {
	maxTokens := 256
	return llm.GenerationParams{
		Model:     o.cfg.ConfirmModel,
		MaxTokens: &maxTokens,
	}
}
