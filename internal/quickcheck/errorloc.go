package quickcheck

import (
	"regexp"
	"strconv"
)

// ErrorLocation is a single parsed failure location extracted from a
// quick-check command's output: the file it points at,
// its line (1-based, 0 when unknown), and the raw message text.
type ErrorLocation struct {
	File    string
	Line    int
	Message string
}

// locationPatterns covers the common compiler/linter error-format families,
// tried in order against each output line.
var locationPatterns = []*regexp.Regexp{
	// MSVC/tsc positional: file(line,col): error CODE: message
	regexp.MustCompile(`^(?P<file>[^\s(][^(]*)\((?P<line>\d+),\d+\):\s*(?:error|warning)\s+\S+:\s*(?P<msg>.+)$`),
	// Rust: --> src/main.rs:12:5
	regexp.MustCompile(`^\s*-->\s*(?P<file>\S+):(?P<line>\d+):\d+`),
	// ESLint detail line: 12:5  error  message  rule-id
	regexp.MustCompile(`^\s*(?P<line>\d+):\d+\s+(?:error|warning)\s+(?P<msg>.+?)(?:\s+\S+)?$`),
	// Python traceback: File "path", line 12, in func
	regexp.MustCompile(`^\s*File\s+"(?P<file>[^"]+)",\s*line\s*(?P<line>\d+)`),
	// Unix/Node/Go compiler: path/to/file.ext:12:5: message  (col optional)
	regexp.MustCompile(`^(?P<file>[^\s:][^:]*\.[A-Za-z0-9]+):(?P<line>\d+)(?::\d+)?:\s*(?P<msg>.+)$`),
}

// eslintHeaderPattern matches an ESLint output file header, which carries
// the file path for the detail lines that follow it but has no line number
// of its own.
var eslintHeaderPattern = regexp.MustCompile(`^(/\S+\.\w+)$`)

// ParseErrorLocations scans output line by line, applying stripPatterns
// first (e.g. pnpm's "> test:size:" progress prefix) and tracking the most
// recent ESLint file header so that header-less detail lines inherit it.
func ParseErrorLocations(output string, stripPatterns []*regexp.Regexp) []ErrorLocation {
	lines := splitLines(StripANSI(output))
	var locs []ErrorLocation
	currentFile := ""

	for _, line := range lines {
		for _, strip := range stripPatterns {
			line = strip.ReplaceAllString(line, "")
		}
		if line == "" {
			continue
		}

		if m := eslintHeaderPattern.FindStringSubmatch(line); m != nil {
			currentFile = m[1]
			continue
		}

		matched := false
		for _, pat := range locationPatterns {
			m := pat.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			loc := ErrorLocation{Message: line}
			names := pat.SubexpNames()
			for i, name := range names {
				if i == 0 || i >= len(m) {
					continue
				}
				switch name {
				case "file":
					loc.File = m[i]
				case "line":
					if n, err := strconv.Atoi(m[i]); err == nil {
						loc.Line = n
					}
				case "msg":
					loc.Message = m[i]
				}
			}
			if loc.File == "" {
				loc.File = currentFile
			}
			if loc.File != "" {
				locs = append(locs, loc)
				matched = true
			}
			break
		}
		_ = matched
	}
	return locs
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

// CompileStripPatterns compiles the configured regex strings, silently
// skipping any that fail to compile.
func CompileStripPatterns(patterns []string) []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

// InScope reports whether loc.File falls within the suggestion's affected
// files, used by QuickCheckFixRequiresInScopeError.
func (l ErrorLocation) InScope(affected []string) bool {
	for _, f := range affected {
		if f == l.File {
			return true
		}
	}
	return false
}
