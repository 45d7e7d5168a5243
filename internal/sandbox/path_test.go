package sandbox

import "testing"

func TestResolveRepoPathAllowNew(t *testing.T) {
	root := t.TempDir()

	t.Run("rejects absolute path", func(t *testing.T) {
		if _, _, err := ResolveRepoPathAllowNew(root, "/etc/passwd"); err == nil {
			t.Error("expected error for absolute path")
		}
	})

	t.Run("rejects traversal", func(t *testing.T) {
		if _, _, err := ResolveRepoPathAllowNew(root, "../outside.txt"); err == nil {
			t.Error("expected error for traversal")
		}
		if _, _, err := ResolveRepoPathAllowNew(root, "src/../../outside.txt"); err == nil {
			t.Error("expected error for nested traversal")
		}
	})

	t.Run("allows new non-existent path inside root", func(t *testing.T) {
		abs, rel, err := ResolveRepoPathAllowNew(root, "src/new_file.go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rel != "src/new_file.go" {
			t.Errorf("expected rel=src/new_file.go, got %s", rel)
		}
		if abs == "" {
			t.Error("expected a non-empty absolute path")
		}
	})
}
