package agent

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// frontmatter is the metadata block of a definition document.
type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

// Warning is a non-fatal problem found while parsing a definition.
type Warning struct {
	Agent   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("agent '%s': %s", w.Agent, w.Message)
}

// Parse turns one definition document into a descriptor named name.
//
// Returned errors match ErrMissingFrontmatter, ErrUnterminatedFrontmatter,
// ErrEmptyBody or *ValidationError via errors.Is / errors.As. YAML decoding
// errors are returned wrapped.
func Parse(content, name string) (*Descriptor, []Warning, error) {
	meta, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, nil, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(meta), &fm); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}

	if strings.TrimSpace(fm.Description) == "" {
		return nil, nil, &ValidationError{Field: "description", Message: "must be a non-empty string"}
	}
	for _, t := range fm.Tools {
		if strings.TrimSpace(t) == "" {
			return nil, nil, &ValidationError{Field: "tools", Message: "empty tool name in allowlist"}
		}
	}
	if body == "" {
		return nil, nil, ErrEmptyBody
	}

	var warnings []Warning
	if fm.Name != "" && fm.Name != name {
		warnings = append(warnings, Warning{
			Agent:   name,
			Message: fmt.Sprintf("frontmatter name %q ignored, filename wins", fm.Name),
		})
	}

	return &Descriptor{
		Name:        name,
		Description: fm.Description,
		Tools:       fm.Tools,
		Body:        body,
	}, warnings, nil
}

// splitFrontmatter returns the metadata block and the trimmed body.
func splitFrontmatter(content string) (string, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, frontmatterDelimiter) {
		return "", "", ErrMissingFrontmatter
	}

	rest := content[len(frontmatterDelimiter):]
	end := strings.Index(rest, "\n"+frontmatterDelimiter)
	if end < 0 {
		return "", "", ErrUnterminatedFrontmatter
	}

	meta := rest[:end]
	body := strings.TrimSpace(rest[end+1+len(frontmatterDelimiter):])
	return meta, body, nil
}
