// Package agent loads sub-agent definitions from disk.
//
// A definition is a markdown document with a YAML frontmatter block:
//
//	---
//	description: Writes and reviews documentation
//	tools: [shell, edit]
//	---
//
//	You are a documentation specialist...
//
// The file stem is the canonical agent name. A name declared inside the
// frontmatter is ignored; when it differs from the stem a [Warning] is
// returned alongside the descriptor.
//
// # Tool Allowlists
//
// The tools key has three states:
//
//   - absent: the agent may use every available tool
//   - empty list: the agent may use no tools
//   - list: the agent may use only the named tools
//
// [Descriptor.Tools] is nil in the first case and a non-nil slice otherwise.
//
// # Scopes
//
// Definitions come from two directories. The user scope is loaded first and
// the project scope second, so a project definition replaces a user
// definition of the same name. A missing directory contributes nothing. A
// document that fails to parse is logged and skipped. A directory that
// cannot be read yields a [DiscoveryError] for that scope only.
//
// The [Registry] is built by [Discover] and is read-only afterwards. [Registry.Reload]
// runs a fresh discovery and swaps the snapshot in one step.
package agent
