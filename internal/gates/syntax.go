package gates

import (
	"context"
	"path/filepath"
	"strings"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	forestgo "github.com/alexaandru/go-sitter-forest/go"
	forestjs "github.com/alexaandru/go-sitter-forest/javascript"
	forestjson "github.com/alexaandru/go-sitter-forest/json"
	forestpy "github.com/alexaandru/go-sitter-forest/python"
	forestrust "github.com/alexaandru/go-sitter-forest/rust"
	forestts "github.com/alexaandru/go-sitter-forest/typescript"
	forestyaml "github.com/alexaandru/go-sitter-forest/yaml"
)

// languageByExt maps a changed file's extension to the tree-sitter grammar
// used to check it. Extensions with no entry are treated as unknown and
// skip the syntax gate entirely.
var languageByExt = map[string]func() unsafe.Pointer{
	".go":   forestgo.GetLanguage,
	".py":   forestpy.GetLanguage,
	".rs":   forestrust.GetLanguage,
	".js":   forestjs.GetLanguage,
	".jsx":  forestjs.GetLanguage,
	".mjs":  forestjs.GetLanguage,
	".ts":   forestts.GetLanguage,
	".tsx":  forestts.GetLanguage,
	".json": forestjson.GetLanguage,
	".yaml": forestyaml.GetLanguage,
	".yml":  forestyaml.GetLanguage,
}

// loadLanguage resolves a grammar with panic recovery, matching the pack's
// established idiom for the go-sitter-forest registry (some grammars panic
// rather than return an error when unavailable in a given build).
func loadLanguage(getter func() unsafe.Pointer) (lang *sitter.Language) {
	defer func() {
		_ = recover()
	}()
	return sitter.NewLanguage(getter())
}

// CheckSyntax parses content with the grammar for path's extension and
// reports whether it parsed without errors. An unknown extension always
// reports ok=true (the gate is silently skipped for it).
func CheckSyntax(path string, content []byte) (ok bool, detail string) {
	ext := strings.ToLower(filepath.Ext(path))
	getter, known := languageByExt[ext]
	if !known {
		return true, "unknown extension, syntax gate skipped"
	}

	lang := loadLanguage(getter)
	if lang == nil {
		return true, "grammar unavailable, syntax gate skipped"
	}

	parser := sitter.NewParser()
	if ok := parser.SetLanguage(lang); !ok {
		return true, "grammar failed to load, syntax gate skipped"
	}

	tree, err := parser.ParseString(context.Background(), nil, content)
	if err != nil {
		return false, err.Error()
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return false, "parser produced no root node"
	}
	if root.HasError() {
		return false, "parse tree contains an ERROR node"
	}
	return true, ""
}
