// Package subagent runs delegated tasks against named agent definitions.
//
// The Manager is what the primary loop calls into. It exposes three
// meta-tools: subagent_list, subagent_describe and subagent_run. A run
// looks up the agent, publishes a Start event, hands the descriptor to the
// Runner, publishes the matching End event and returns a Result serialized
// as JSON.
//
// The Runner drives one nested conversation. It composes an isolated prompt
// from the agent body and the task, removes the meta-tools from the
// available capabilities, applies the agent's allowlist and then alternates
// model turns with tool dispatch until the model stops calling tools.
// Nested runs never see the meta-tools, so delegation is at most one level
// deep.
package subagent
