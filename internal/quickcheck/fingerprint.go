package quickcheck

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	digitPattern      = regexp.MustCompile(`\d+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// FingerprintText produces a stable hash of quick-check failure text,
// normalizing digits and whitespace so that cosmetic differences (a line
// number shifting by one, extra padding) do not defeat stall detection.
func FingerprintText(text string) string {
	normalized := digitPattern.ReplaceAllString(text, "#")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// OutcomeFingerprint fingerprints a quick-check failure from its label plus
// stdout/stderr tails, which is the signal actually compared across repair
// iterations.
func OutcomeFingerprint(commandLabel, stdoutTail, stderrTail string) string {
	return FingerprintText(commandLabel + "\n" + stdoutTail + "\n" + stderrTail)
}
