package gates

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cameronspears/cosmos/internal/sandbox"
)

func readFileBestEffort(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func removeFile(path string) error {
	return os.Remove(path)
}

func pathAbs(dir, rel string) (string, string, error) {
	return sandbox.ResolveRepoPathAllowNew(dir, rel)
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
