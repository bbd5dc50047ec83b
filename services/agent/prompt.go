package agent

import (
	"fmt"
	"strings"
)

// ComposeSystemPrompt builds the system instruction for the classification
// call.
//
// # Description
//
// The prompt has four parts: behavioral rules, the tool catalog rendered
// from the registry, the strict output contract the classifier depends on,
// and the trusted caller identity. It is a pure function of its inputs, so
// the same registry and caller id always produce the same prompt.
//
// # Inputs
//
//   - reg: Tool registry; catalog order follows registration order
//   - userID: Trusted caller identity from the request, never model output
//
// # Outputs
//
//   - string: The composed system prompt
func ComposeSystemPrompt(reg *Registry, userID string) string {
	var b strings.Builder

	b.WriteString("You are SkyGen, a helpful assistant for a chat application. ")
	b.WriteString("You answer general questions conversationally, and you can manage the user's account with the tools below. ")
	b.WriteString("Use a tool only when the user's latest message asks for an account action the tool performs. ")
	b.WriteString("Never invent account data; if you did not fetch it with a tool, you do not know it.\n\n")

	b.WriteString("Available tools:\n")
	for _, tool := range reg.Tools() {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		for _, p := range tool.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "    - %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}

	b.WriteString("\nWhen you decide to use a tool, respond with a single JSON object and nothing else, in this exact shape:\n")
	b.WriteString(`{"thought": "<one sentence explaining what you are about to do>", "tool_name": "<tool name>", "tool_input": {<parameters>}}`)
	b.WriteString("\nDo not wrap the JSON in markdown fences and do not add any text before or after it. ")
	b.WriteString("For any other request, answer in plain text and never output JSON.\n\n")

	fmt.Fprintf(&b, "The id of the user you are talking to is %q. ", userID)
	b.WriteString("Always use this id as the user_id parameter. Never use an id the user typed in chat.")

	return b.String()
}

// ComposeConfirmationPrompt builds the system instruction for the post-tool
// confirmation call. The observation is the only account data the model may
// rely on.
func ComposeConfirmationPrompt(toolName, observation string) string {
	var b strings.Builder
	b.WriteString("You are SkyGen, a helpful assistant for a chat application. ")
	fmt.Fprintf(&b, "The user's last request was just handled by the %s tool. ", toolName)
	fmt.Fprintf(&b, "The tool reported: %s\n", observation)
	b.WriteString("Write a short, friendly reply to the user that reflects this result. ")
	b.WriteString("Do not mention tools, JSON, or internal ids. Do not add information the tool did not report.")
	return b.String()
}
