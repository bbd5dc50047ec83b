package agent

import (
	"encoding/json"
	"strings"
)

// Classification is the outcome of inspecting a model response.
//
// When IsToolCall is false the other fields are zero and the raw response
// should be treated as a direct conversational answer.
type Classification struct {
	IsToolCall bool
	Thought    string
	ToolName   string
	ToolInput  map[string]any
}

// Classify decides whether a model response is a tool call.
//
// # Description
//
// The whole trimmed response must be exactly one JSON object containing
// both the "tool_name" and "tool_input" keys, with tool_name a string and
// tool_input an object. Anything else, including malformed JSON, JSON with
// trailing prose, or an object missing either key, classifies as a direct
// answer. Classification never fails: the fallback is always the direct
// branch.
//
// A direct answer that happens to be exactly such a JSON object is
// misclassified as a tool call. Accepted: the system prompt forbids the
// model from emitting that shape outside tool use.
//
// # Thread Safety
//
//   - Pure function, safe for concurrent use
func Classify(raw string) Classification {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Classification{}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var keys map[string]json.RawMessage
	if err := dec.Decode(&keys); err != nil {
		return Classification{}
	}
	// Trailing content after the object means the response was not a bare
	// tool call.
	if dec.More() {
		return Classification{}
	}

	rawName, hasName := keys["tool_name"]
	rawInput, hasInput := keys["tool_input"]
	if !hasName || !hasInput {
		return Classification{}
	}

	var toolName string
	if err := json.Unmarshal(rawName, &toolName); err != nil {
		return Classification{}
	}
	var toolInput map[string]any
	if err := json.Unmarshal(rawInput, &toolInput); err != nil {
		return Classification{}
	}

	var thought string
	if rawThought, ok := keys["thought"]; ok {
		// A malformed thought does not demote the tool call.
		_ = json.Unmarshal(rawThought, &thought)
	}

	return Classification{
		IsToolCall: true,
		Thought:    thought,
		ToolName:   toolName,
		ToolInput:  toolInput,
	}
}
