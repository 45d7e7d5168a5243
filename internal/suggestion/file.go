package suggestion

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// suggestionFile is the on-disk YAML shape a caller hands the harness: a
// validated suggestion plus the scope it was validated against. The harness
// itself never validates a suggestion — that happens upstream, wherever this
// file is produced.
type suggestionFile struct {
	ID            string   `yaml:"id"`
	Summary       string   `yaml:"summary"`
	Detail        string   `yaml:"detail"`
	AffectedFiles []string `yaml:"affected_files"`
	State         string   `yaml:"state"`
}

// LoadFile reads a validated suggestion from a YAML file on disk.
func LoadFile(path string) (Suggestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suggestion{}, fmt.Errorf("reading suggestion file %s: %w", path, err)
	}

	var raw suggestionFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Suggestion{}, fmt.Errorf("parsing suggestion file %s: %w", path, err)
	}

	if raw.ID == "" {
		return Suggestion{}, fmt.Errorf("suggestion file %s is missing an id", path)
	}
	if len(raw.AffectedFiles) == 0 {
		return Suggestion{}, fmt.Errorf("suggestion file %s has no affected_files", path)
	}

	state := State(raw.State)
	if state == "" {
		state = Validated
	}

	return Suggestion{
		ID:            raw.ID,
		Summary:       raw.Summary,
		Detail:        raw.Detail,
		AffectedFiles: raw.AffectedFiles,
		State:         state,
	}, nil
}
