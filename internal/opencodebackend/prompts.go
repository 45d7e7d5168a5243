package opencodebackend

import (
	"fmt"
	"strings"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// fixContentPayload is the JSON shape requested from single-file generation
// and review-repair calls.
type fixContentPayload struct {
	NewContent    string `json:"new_content"`
	ModifiedAreas []struct {
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
		Summary   string `json:"summary"`
	} `json:"modified_areas"`
}

func (p fixContentPayload) areas() []llmclient.ModifiedArea {
	out := make([]llmclient.ModifiedArea, 0, len(p.ModifiedAreas))
	for _, a := range p.ModifiedAreas {
		out = append(out, llmclient.ModifiedArea{StartLine: a.StartLine, EndLine: a.EndLine, Summary: a.Summary})
	}
	return out
}

// multiFileFixPayload is the JSON shape requested from multi-file
// generation calls.
type multiFileFixPayload struct {
	Description string `json:"description"`
	FileEdits   []struct {
		Path          string `json:"path"`
		NewContent    string `json:"new_content"`
		ModifiedAreas []struct {
			StartLine int    `json:"start_line"`
			EndLine   int    `json:"end_line"`
			Summary   string `json:"summary"`
		} `json:"modified_areas"`
	} `json:"file_edits"`
}

func (p multiFileFixPayload) edits() []llmclient.FileEdit {
	out := make([]llmclient.FileEdit, 0, len(p.FileEdits))
	for _, e := range p.FileEdits {
		areas := make([]llmclient.ModifiedArea, 0, len(e.ModifiedAreas))
		for _, a := range e.ModifiedAreas {
			areas = append(areas, llmclient.ModifiedArea{StartLine: a.StartLine, EndLine: a.EndLine, Summary: a.Summary})
		}
		out = append(out, llmclient.FileEdit{Path: e.Path, NewContent: e.NewContent, ModifiedAreas: areas})
	}
	return out
}

// reviewPayload is the JSON shape requested from the adversarial review
// call.
type reviewPayload struct {
	Findings []struct {
		Title       string `json:"title"`
		Category    string `json:"category"`
		Severity    string `json:"severity"`
		File        string `json:"file"`
		Recommended bool   `json:"recommended"`
	} `json:"findings"`
}

func (p reviewPayload) findings() []llmclient.Finding {
	out := make([]llmclient.Finding, 0, len(p.Findings))
	for _, f := range p.Findings {
		out = append(out, llmclient.Finding{
			Title:       f.Title,
			Category:    f.Category,
			Severity:    config.Severity(strings.ToLower(f.Severity)),
			File:        f.File,
			Recommended: f.Recommended,
		})
	}
	return out
}

func fixContentPrompt(target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Apply the following fix to %s.\n\nSuggestion: %s\n%s\n", target, s.Summary, s.Detail)
	if preview.Modifier != "" {
		fmt.Fprintf(&b, "\nGuidance:\n%s\n", preview.Modifier)
	}
	if preview.Snippet != "" {
		fmt.Fprintf(&b, "\nRelevant snippet around line %d:\n%s\n", preview.EvidenceLine, preview.Snippet)
	}
	if isNew {
		b.WriteString("\nThis file does not exist yet; create it.\n")
	} else {
		fmt.Fprintf(&b, "\nCurrent content:\n%s\n", current)
	}
	b.WriteString(`
Respond with a JSON object: {"new_content": "...", "modified_areas": [{"start_line": N, "end_line": N, "summary": "..."}]}`)
	return b.String()
}

func multiFileFixPrompt(inputs []llmclient.FileInput, s suggestion.Suggestion, preview suggestion.FixPreview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Apply the following fix across multiple files.\n\nSuggestion: %s\n%s\n", s.Summary, s.Detail)
	if preview.Modifier != "" {
		fmt.Fprintf(&b, "\nGuidance:\n%s\n", preview.Modifier)
	}
	for _, in := range inputs {
		if in.IsNew {
			fmt.Fprintf(&b, "\n--- %s (new file) ---\n", in.Path)
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", in.Path, in.Content)
	}
	b.WriteString(`
Respond with a JSON object: {"description": "...", "file_edits": [{"path": "...", "new_content": "...", "modified_areas": [...]}]}`)
	return b.String()
}

func reviewPrompt(files []llmclient.FileInput, iteration int, fixedTitles []string, fixContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Adversarially review the following change (review iteration %d). Identify any remaining defects.\n", iteration+1)
	if len(fixedTitles) > 0 {
		fmt.Fprintf(&b, "\nThe following findings were already addressed; do not re-report them: %s\n", strings.Join(fixedTitles, "; "))
	}
	if fixContext != "" {
		fmt.Fprintf(&b, "\nContext: %s\n", fixContext)
	}
	for _, f := range files {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", f.Path, f.Content)
	}
	b.WriteString(`
Respond with a JSON object: {"findings": [{"title": "...", "category": "...", "severity": "critical|warning|info", "file": "...", "recommended": true}]}`)
	return b.String()
}

func fixFindingsPrompt(path, current string, findings []llmclient.Finding, iteration int, fixedTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repair the following review findings in %s (repair iteration %d).\n\n", path, iteration+1)
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", f.Category, f.Severity, f.Title)
	}
	fmt.Fprintf(&b, "\nCurrent content:\n%s\n", current)
	b.WriteString(`
Respond with a JSON object: {"new_content": "...", "modified_areas": [{"start_line": N, "end_line": N, "summary": "..."}]}`)
	return b.String()
}
