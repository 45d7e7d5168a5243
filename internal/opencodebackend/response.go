package opencodebackend

import (
	"strings"

	opencode "github.com/sst/opencode-sdk-go"
)

// jsonOnlyInstruction is appended to every prompt sent to OpenCode; the
// harness parses the session's final message as JSON and has no tool-call
// fallback if the model writes files instead of returning the result as
// text (adapted from the review pipeline's NoToolsInstruction).
const jsonOnlyInstruction = "\n\nCRITICAL: Return ALL output directly in your response text as a single JSON object or array matching the requested schema. Do NOT use any file editing tools, shell commands, or other tools. Do not wrap the JSON in markdown fences."

// extractTextContent concatenates every text part of a session prompt
// response.
func extractTextContent(resp *opencode.SessionPromptResponse) string {
	if resp == nil {
		return ""
	}
	var texts []string
	for _, part := range resp.Parts {
		if part.Type == "text" && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
