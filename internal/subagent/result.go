package subagent

import (
	"encoding/json"
)

// Result is the outcome of one delegated run.
type Result struct {
	AgentName string `json:"agent_name"`
	Task      string `json:"task"`
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	// Error is set iff Success is false.
	Error string `json:"error,omitempty"`

	// ToolCalls lists the tool names the nested run invoked, in order.
	ToolCalls []string `json:"tool_calls,omitempty"`
	SubID     string   `json:"sub_id,omitempty"`

	err error
}

func succeeded(name, task, output string, toolCalls []string) *Result {
	return &Result{
		AgentName: name,
		Task:      task,
		Success:   true,
		Output:    output,
		ToolCalls: toolCalls,
	}
}

func failed(name, task string, err error) *Result {
	return &Result{
		AgentName: name,
		Task:      task,
		Error:     err.Error(),
		err:       err,
	}
}

// Err returns the failure cause, or nil for a successful run.
func (r *Result) Err() error { return r.err }

// JSON returns the result serialized for a tool-call output.
func (r *Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"failed to encode result"}`
	}
	return string(data)
}
