package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const editDescription = `Performs exact string replacements in files.

Usage:
- path may be absolute or relative to the working directory
- old_string must exist in the file
- The edit fails if old_string is not unique unless replace_all is set
- When no exact match exists, a close match (70% similarity) is replaced`

const fuzzyThreshold = 0.7

// EditTool implements file editing.
type EditTool struct {
	workDir string
}

// EditInput represents the input for the edit tool.
type EditInput struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{workDir: workDir}
}

func (t *EditTool) ID() string          { return Builtin(KindEdit).Name() }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "The file to edit"
			},
			"old_string": {
				"type": "string",
				"description": "The text to replace"
			},
			"new_string": {
				"type": "string",
				"description": "The text to replace it with"
			},
			"replace_all": {
				"type": "boolean",
				"description": "Replace all occurrences (default: false)"
			}
		},
		"required": ["path", "old_string", "new_string"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if params.OldString == params.NewString {
		return nil, fmt.Errorf("old_string and new_string must be different")
	}

	base := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		base = toolCtx.WorkDir
	}
	path := params.Path
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	before := strings.ReplaceAll(string(content), "\r\n", "\n")
	old := strings.ReplaceAll(params.OldString, "\r\n", "\n")

	after, count, similarity, err := replace(before, old, params.NewString, params.ReplaceAll)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, []byte(after), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	diff, additions, deletions := buildDiff(relativePath(path, base), before, after)
	output := fmt.Sprintf("Replaced %d occurrence(s)", count)
	if similarity < 1 {
		output = fmt.Sprintf("Replaced 1 occurrence (%.0f%% similarity)", similarity*100)
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", filepath.Base(path)),
		Output: output + "\n\n" + diff,
		Metadata: map[string]any{
			"file":         path,
			"replacements": count,
			"additions":    additions,
			"deletions":    deletions,
		},
	}, nil
}

// replace applies the edit and returns the new text, the replacement count
// and the similarity of the replaced text (1 for exact matches).
func replace(text, old, replacement string, all bool) (string, int, float64, error) {
	count := strings.Count(text, old)
	switch {
	case count > 0 && all:
		return strings.ReplaceAll(text, old, replacement), count, 1, nil
	case count == 1:
		return strings.Replace(text, old, replacement, 1), 1, 1, nil
	case count > 1:
		return "", 0, 0, fmt.Errorf("old_string appears %d times in file. Use replace_all or provide more context", count)
	}

	match, sim := findBestMatch(text, old)
	if match == "" || sim < fuzzyThreshold {
		return "", 0, 0, fmt.Errorf("old_string not found in file")
	}
	return strings.Replace(text, match, replacement, 1), 1, sim, nil
}

// findBestMatch finds the line block most similar to target.
func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	size := len(strings.Split(target, "\n"))

	bestMatch := ""
	bestSimilarity := 0.0
	for i := 0; i+size <= len(lines); i++ {
		block := strings.Join(lines[i:i+size], "\n")
		if sim := similarity(block, target); sim > bestSimilarity {
			bestSimilarity = sim
			bestMatch = block
		}
	}
	return bestMatch, bestSimilarity
}

// similarity returns the normalized Levenshtein similarity of a and b.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	maxLen := max(len(a), len(b))
	if maxLen > 10000 {
		return float64(min(len(a), len(b))) / float64(maxLen)
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// buildDiff returns a patch between before and after plus line counts.
func buildDiff(path, before, after string) (string, int, int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	additions, deletions := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += strings.Count(strings.TrimSuffix(d.Text, "\n"), "\n") + 1
		case diffmatchpatch.DiffDelete:
			deletions += strings.Count(strings.TrimSuffix(d.Text, "\n"), "\n") + 1
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)
	sb.WriteString(dmp.PatchToText(dmp.PatchMake(before, diffs)))
	return sb.String(), additions, deletions
}

func relativePath(path, base string) string {
	if base == "" {
		return path
	}
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
