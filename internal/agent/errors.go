package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFrontmatter is returned when a document does not start with "---".
	ErrMissingFrontmatter = errors.New("missing frontmatter (must start with '---')")

	// ErrUnterminatedFrontmatter is returned when the closing "---" is absent.
	ErrUnterminatedFrontmatter = errors.New("missing frontmatter closing '---'")

	// ErrEmptyBody is returned when no prompt text follows the frontmatter.
	ErrEmptyBody = errors.New("must have a non-empty body (system prompt)")
)

// ValidationError reports a frontmatter field with an invalid value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParseError wraps any failure to turn one document into a descriptor.
type ParseError struct {
	Name string
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("agent '%s': %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DiscoveryError reports a scope directory that exists but cannot be read.
type DiscoveryError struct {
	Scope Scope
	Dir   string
	Err   error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to read %s agents directory '%s': %v", e.Scope, e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
