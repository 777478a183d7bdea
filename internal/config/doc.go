// Package config loads host configuration and resolves the agent scope
// directories.
//
// Load merges, lowest priority first:
//
//  1. ~/.opencode/opencode.json[c]
//  2. $XDG_CONFIG_HOME/opencode/opencode.json[c]
//  3. <project>/opencode.json[c] and <project>/.opencode/opencode.json[c]
//  4. the file named by OPENCODE_CONFIG
//  5. inline JSON in OPENCODE_CONFIG_CONTENT
//  6. environment overrides
//
// Files may contain comments (tidwall/jsonc) and {env:VAR} or {file:path}
// placeholders. Maps merge key by key; the subagents block merges field by
// field.
//
// Environment overrides:
//
//	ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY  provider keys, when unset in files
//	OPENCODE_MODEL                                  default model, "provider/model"
//	OPENCODE_SUBAGENTS                              "0", "false", "no" or "off" disables the meta-tools
//
// User scope definitions live in <configDir>/agents and project scope
// definitions in <project>/.opencode/agents. Both can be overridden with
// subagents.userDir and subagents.projectDir.
package config
