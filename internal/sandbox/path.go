package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveRepoPathAllowNew resolves rel against root, rejecting absolute
// paths and any component traversal. New (non-existent) paths are permitted
// — used for net-new file creation — but must still canonicalize inside
// root. Returns the canonical absolute path and its repo-relative form.
func ResolveRepoPathAllowNew(root, rel string) (absPath, repoRelPath string, err error) {
	if filepath.IsAbs(rel) {
		return "", "", fmt.Errorf("path %q must be repo-relative", rel)
	}

	cleanRel := filepath.Clean(rel)
	if cleanRel == "." || cleanRel == ".." || strings.HasPrefix(cleanRel, "../") {
		return "", "", fmt.Errorf("path %q escapes the repository root", rel)
	}
	for _, part := range strings.Split(cleanRel, string(filepath.Separator)) {
		if part == ".." {
			return "", "", fmt.Errorf("path %q contains a traversal component", rel)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("resolving sandbox root: %w", err)
	}
	abs := filepath.Join(absRoot, cleanRel)

	// abs must canonicalize inside absRoot even though it may not exist yet.
	relBack, err := filepath.Rel(absRoot, abs)
	if err != nil || relBack == ".." || strings.HasPrefix(relBack, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %q escapes the repository root", rel)
	}

	return abs, filepath.ToSlash(relBack), nil
}
