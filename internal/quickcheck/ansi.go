package quickcheck

import "regexp"

// ansiPattern matches ANSI CSI escape sequences. Command-outcome tails are
// stripped of these before truncation and storage, so stored reports and
// fingerprints are stable regardless of whether the quick-check tool
// colorized its output.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// StripANSI removes ANSI CSI sequences from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

const tailLen = 4000

// Tail returns the last n chars of s, UTF-8 safe (never splits a rune).
func Tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// CommandOutputTail applies the standard stdout/stderr tail policy: strip
// ANSI, then take the last 4000 characters.
func CommandOutputTail(s string) string {
	return Tail(StripANSI(s), tailLen)
}
