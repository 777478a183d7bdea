package tool

import "sort"

// Kind classifies a capability.
type Kind int

const (
	// KindExternal is any tool name not known at compile time, such as an
	// MCP tool.
	KindExternal Kind = iota
	KindShell
	KindLocalShell
	KindExecCommand
	KindWriteStdin
	KindApplyPatch
	KindEdit
	KindWebSearch
	KindWebFetch
	KindViewImage
	KindSubagentList
	KindSubagentDescribe
	KindSubagentRun
)

// kindNames is the single mapping between built-in kinds and tool names.
var kindNames = map[Kind]string{
	KindShell:            "shell",
	KindLocalShell:       "local_shell",
	KindExecCommand:      "exec_command",
	KindWriteStdin:       "write_stdin",
	KindApplyPatch:       "apply_patch",
	KindEdit:             "edit",
	KindWebSearch:        "web_search",
	KindWebFetch:         "web_fetch",
	KindViewImage:        "view_image",
	KindSubagentList:     "subagent_list",
	KindSubagentDescribe: "subagent_describe",
	KindSubagentRun:      "subagent_run",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the tool name of a built-in kind, or "external".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "external"
}

// Capability identifies one invocable tool.
type Capability struct {
	kind Kind
	name string
}

// Builtin returns the capability for a built-in kind.
func Builtin(k Kind) Capability {
	return Capability{kind: k, name: kindNames[k]}
}

// Parse maps a tool name to its capability. Unknown names become External.
func Parse(name string) Capability {
	if k, ok := kindByName[name]; ok {
		return Capability{kind: k, name: name}
	}
	return Capability{kind: KindExternal, name: name}
}

// Kind returns the capability kind.
func (c Capability) Kind() Kind { return c.kind }

// Name returns the tool name presented to the model.
func (c Capability) Name() string { return c.name }

func (c Capability) String() string { return c.name }

// IsShellFamily reports whether c is one of the four shell aliases.
func (c Capability) IsShellFamily() bool {
	switch c.kind {
	case KindShell, KindLocalShell, KindExecCommand, KindWriteStdin:
		return true
	}
	return false
}

// IsMetaTool reports whether c is one of the sub-agent orchestration tools.
func (c Capability) IsMetaTool() bool {
	switch c.kind {
	case KindSubagentList, KindSubagentDescribe, KindSubagentRun:
		return true
	}
	return false
}

// IsExternal reports whether c was registered dynamically.
func (c Capability) IsExternal() bool { return c.kind == KindExternal }

// ShellFamily returns the shell alias group.
func ShellFamily() []Capability {
	return []Capability{
		Builtin(KindShell),
		Builtin(KindLocalShell),
		Builtin(KindExecCommand),
		Builtin(KindWriteStdin),
	}
}

// MetaTools returns the sub-agent orchestration tools.
func MetaTools() []Capability {
	return []Capability{
		Builtin(KindSubagentList),
		Builtin(KindSubagentDescribe),
		Builtin(KindSubagentRun),
	}
}

// Set is a set of capabilities keyed by name.
type Set map[string]Capability

// NewSet builds a set from capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c.name] = c
	}
	return s
}

// SetOf builds a set from tool names.
func SetOf(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = Parse(n)
	}
	return s
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the member names in lexicographic order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for n, c := range s {
		out[n] = c
	}
	return out
}

// Without returns a copy of the set minus members matching drop.
func (s Set) Without(drop func(Capability) bool) Set {
	out := make(Set, len(s))
	for n, c := range s {
		if !drop(c) {
			out[n] = c
		}
	}
	return out
}

// WithoutMetaTools returns a copy of the set with the orchestration tools removed.
func (s Set) WithoutMetaTools() Set {
	return s.Without(Capability.IsMetaTool)
}
