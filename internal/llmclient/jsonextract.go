package llmclient

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseJSON unmarshals a structured result out of raw model output, trying
// a direct decode first and falling back to stripping markdown fences and
// leading/trailing prose the model added around the JSON payload.
func ParseJSON[T any](raw string) (T, error) {
	var result T
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, nil
	}

	cleaned := stripMarkdownJSON(raw)
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, nil
	}

	var zero T
	return zero, fmt.Errorf("failed to parse JSON response: %s", truncateForError(raw, 200))
}

var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

func stripMarkdownJSON(s string) string {
	s = strings.TrimSpace(s)

	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	}

	startObj := strings.IndexByte(s, '{')
	startArr := strings.IndexByte(s, '[')

	start := -1
	isArray := false
	switch {
	case startObj >= 0 && startArr >= 0:
		if startArr < startObj {
			start, isArray = startArr, true
		} else {
			start = startObj
		}
	case startObj >= 0:
		start = startObj
	case startArr >= 0:
		start, isArray = startArr, true
	}
	if start < 0 {
		return s
	}

	var end int
	if isArray {
		end = strings.LastIndexByte(s, ']')
	} else {
		end = strings.LastIndexByte(s, '}')
	}
	if end <= start {
		return s
	}
	return s[start : end+1]
}

func truncateForError(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
