package event

// SubAgentStartData is the data for subagent.start events.
type SubAgentStartData struct {
	SubID     string `json:"subID"`
	SessionID string `json:"sessionID,omitempty"`
	Name      string `json:"name"`
	Task      string `json:"task"`
}

// SubAgentEndData is the data for subagent.end events.
type SubAgentEndData struct {
	SubID     string `json:"subID"`
	SessionID string `json:"sessionID,omitempty"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`
}

// AgentsReloadedData is the data for agents.reloaded events.
type AgentsReloadedData struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}
