package gates

import "testing"

func TestCheckSyntax_UnknownExtensionSkipped(t *testing.T) {
	ok, _ := CheckSyntax("README.md", []byte("anything at all"))
	if !ok {
		t.Error("expected unknown extension to skip the syntax gate")
	}
}

func TestCheckSyntax_ValidGo(t *testing.T) {
	ok, detail := CheckSyntax("main.go", []byte("package main\n\nfunc main() {}\n"))
	if !ok {
		t.Errorf("expected valid Go source to parse, detail: %s", detail)
	}
}

func TestCheckSyntax_InvalidGo(t *testing.T) {
	ok, _ := CheckSyntax("main.go", []byte("package main\n\nfunc broken( {\n"))
	if ok {
		t.Error("expected malformed Go source to fail the syntax gate")
	}
}

func TestCheckSyntax_ValidJSON(t *testing.T) {
	ok, detail := CheckSyntax("config.json", []byte(`{"a": 1}`))
	if !ok {
		t.Errorf("expected valid JSON to parse, detail: %s", detail)
	}
}
