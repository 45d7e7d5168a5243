package quickcheck

import "testing"

func TestParseErrorLocations_UnixStyle(t *testing.T) {
	out := "src/main.go:12:5: undefined: foo\n"
	locs := ParseErrorLocations(out, nil)
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	if locs[0].File != "src/main.go" || locs[0].Line != 12 {
		t.Errorf("unexpected location: %+v", locs[0])
	}
}

func TestParseErrorLocations_RustStyle(t *testing.T) {
	out := "error[E0382]: borrow of moved value\n --> src/lib.rs:42:9\n"
	locs := ParseErrorLocations(out, nil)
	if len(locs) != 1 || locs[0].File != "src/lib.rs" || locs[0].Line != 42 {
		t.Fatalf("unexpected locations: %+v", locs)
	}
}

func TestParseErrorLocations_ESLintStyle(t *testing.T) {
	out := "/repo/src/app.ts\n  12:5  error  'x' is never used  no-unused-vars\n"
	locs := ParseErrorLocations(out, nil)
	if len(locs) != 1 || locs[0].File != "/repo/src/app.ts" || locs[0].Line != 12 {
		t.Fatalf("unexpected locations: %+v", locs)
	}
}

func TestParseErrorLocations_StripPattern(t *testing.T) {
	patterns := CompileStripPatterns([]string{`^> test:size:\s*`})
	out := "> test:size: src/app.ts:3:1: oops\n"
	locs := ParseErrorLocations(out, patterns)
	if len(locs) != 1 || locs[0].File != "src/app.ts" {
		t.Fatalf("unexpected locations after strip: %+v", locs)
	}
}

func TestFingerprint_NormalizesDigitsAndWhitespace(t *testing.T) {
	a := OutcomeFingerprint("npm test", "error at line 12", "")
	b := OutcomeFingerprint("npm test", "error  at line 99", "")
	if a != b {
		t.Errorf("expected fingerprints to match after digit/whitespace normalization, got %s vs %s", a, b)
	}
}

func TestFingerprint_DiffersOnSubstance(t *testing.T) {
	a := OutcomeFingerprint("npm test", "undefined: foo", "")
	b := OutcomeFingerprint("npm test", "undefined: bar", "")
	if a == b {
		t.Error("expected distinct fingerprints for different failure text")
	}
}
