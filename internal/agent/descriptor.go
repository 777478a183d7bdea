package agent

// Scope identifies where a definition was discovered.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
)

// Descriptor is a validated agent definition.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Tools is nil when unrestricted. An empty, non-nil slice allows nothing.
	Tools []string `json:"tools"`
	Body  string   `json:"body"`

	Scope Scope  `json:"scope,omitempty"`
	Path  string `json:"path,omitempty"`
}

// Summary is the listing view of a descriptor.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Unrestricted reports whether the agent has no tool allowlist.
func (d *Descriptor) Unrestricted() bool {
	return d.Tools == nil
}

// Summary returns the name and description.
func (d *Descriptor) Summary() Summary {
	return Summary{Name: d.Name, Description: d.Description}
}

// Clone returns a deep copy that preserves the nil/empty distinction of Tools.
func (d *Descriptor) Clone() *Descriptor {
	clone := *d
	if d.Tools != nil {
		clone.Tools = append([]string{}, d.Tools...)
	}
	return &clone
}
