package llmclient

import "strings"

// costPerKTokenUSD is a coarse per-1000-token rate table used to estimate
// spend for backends whose SDK does not surface token usage on the session
// response (OpenCode and Copilot both omit it as of the versions vendored
// here). The harness's Budget Controller needs a cost figure after every
// call regardless, so calls are costed from characters-as-proxy-for-tokens
// rather than left at zero, which would let a misconfigured cost ceiling
// never trip.
var costPerKTokenUSD = map[string]float64{
	"speed": 0.0003,
	"smart": 0.0045,
}

const charsPerToken = 4

// speedModelMarkers are ModelID substrings conventionally used by small,
// fast models across providers.
var speedModelMarkers = []string{"mini", "haiku", "flash", "nano"}

// EstimateUsage derives a Usage record from prompt/response character counts
// and a coarse rate inferred from model.ModelID. An unrecognized model name
// falls back to the smart rate, the conservative choice for budget
// enforcement.
func EstimateUsage(promptChars, responseChars int, model ModelRef) Usage {
	promptTokens := int64(promptChars / charsPerToken)
	completionTokens := int64(responseChars / charsPerToken)
	rate := costPerKTokenUSD["smart"]
	lowerID := strings.ToLower(model.ModelID)
	for _, marker := range speedModelMarkers {
		if strings.Contains(lowerID, marker) {
			rate = costPerKTokenUSD["speed"]
			break
		}
	}
	total := promptTokens + completionTokens
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      total,
		CostUSD:          float64(total) / 1000 * rate,
	}
}
