package quickcheck

import (
	"os"
	"path/filepath"
	"testing"
)

func writePackageJSON(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHasJSDep_FoundInDevDependencies(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"devDependencies": {"eslint": "^9.4.0"}}`)

	present, major := HasJSDep(dir, "eslint")
	if !present || major != 9 {
		t.Errorf("expected eslint present with major 9, got present=%v major=%d", present, major)
	}
}

func TestHasJSDep_Absent(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"dependencies": {}}`)

	present, _ := HasJSDep(dir, "prettier")
	if present {
		t.Error("expected prettier to be absent")
	}
}

func TestHasJSDep_NoPackageJSON(t *testing.T) {
	dir := t.TempDir()
	present, _ := HasJSDep(dir, "eslint")
	if present {
		t.Error("expected no dependency without a package.json")
	}
}

func TestDetectFastPath_ESLintWithoutFix(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, `{"devDependencies": {"eslint": "^9.0.0"}}`)

	kind := DetectFastPath(dir, Command{Program: "npx", Args: []string{"eslint", "."}})
	if kind != FastPathESLint {
		t.Errorf("expected eslint fast path, got %q", kind)
	}
}

func TestDetectFastPath_NoneWithoutDep(t *testing.T) {
	dir := t.TempDir()
	kind := DetectFastPath(dir, Command{Program: "npx", Args: []string{"eslint", "."}})
	if kind != FastPathNone {
		t.Errorf("expected no fast path without the dependency, got %q", kind)
	}
}
