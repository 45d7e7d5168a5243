package suggestion

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// EvidenceDocument is a YAML-frontmatter markdown file describing a
// suggestion's FixPreview evidence: which line is implicated and a snippet
// of surrounding context, authored the same way the harness's other
// documents are.
type EvidenceDocument struct {
	Frontmatter map[string]any
	Body        string
}

// LoadEvidenceDocument reads an evidence markdown file.
func LoadEvidenceDocument(path string) (*EvidenceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading evidence document %s: %w", path, err)
	}

	var matter map[string]any
	body, err := frontmatter.Parse(strings.NewReader(string(data)), &matter)
	if err != nil {
		return &EvidenceDocument{Frontmatter: make(map[string]any), Body: string(data)}, nil
	}

	return &EvidenceDocument{Frontmatter: matter, Body: string(body)}, nil
}

// ToPreview converts the document into a FixPreview, reading "line" from the
// frontmatter if present.
func (d *EvidenceDocument) ToPreview(modifier string) FixPreview {
	p := FixPreview{Modifier: modifier, Snippet: d.Body}
	if line, ok := d.Frontmatter["line"]; ok {
		switch v := line.(type) {
		case int:
			p.EvidenceLine = v
		case float64:
			p.EvidenceLine = int(v)
		}
	}
	return p
}

// WriteEvidenceDocument writes an evidence document atomically (temp file
// then rename), the same pattern the harness uses for every on-disk record.
func WriteEvidenceDocument(path string, doc *EvidenceDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	var buf bytes.Buffer
	if len(doc.Frontmatter) > 0 {
		buf.WriteString("---\n")
		fm, err := yaml.Marshal(doc.Frontmatter)
		if err != nil {
			return fmt.Errorf("marshaling frontmatter: %w", err)
		}
		buf.Write(fm)
		buf.WriteString("---\n\n")
	}
	buf.WriteString(doc.Body)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
