package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/subagents/internal/event"
	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/subagent"
)

// RunRequest is the body of POST /agents/{name}/run.
type RunRequest struct {
	Task  string `json:"task"`
	Model string `json:"model,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Enabled   bool   `json:"enabled"`
	Agents    int    `json:"agents"`
	SessionID string `json:"sessionID,omitempty"`
}

// ReloadResponse is the body of POST /agents/reload.
type ReloadResponse struct {
	Agents int    `json:"agents"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Enabled:   s.manager.Enabled(),
		Agents:    len(s.manager.HandleList()),
		SessionID: s.manager.SessionID(),
	})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.HandleList())
}

func (s *Server) describeAgent(w http.ResponseWriter, r *http.Request) {
	desc, err := s.manager.HandleDescribe(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) runAgent(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Enabled() {
		writeError(w, http.StatusForbidden, ErrCodeDisabled, subagent.ErrDisabled.Error())
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, (&subagent.ArgumentError{Err: err}).Error())
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, (&subagent.ArgumentError{Field: "task"}).Error())
		return
	}

	result := s.manager.Run(r.Context(), subagent.RunArgs{
		Name:  chi.URLParam(r, "name"),
		Task:  req.Task,
		Model: req.Model,
	})

	var notFound *subagent.NotFoundError
	if errors.As(result.Err(), &notFound) {
		writeErrorWithDetails(w, http.StatusNotFound, ErrCodeNotFound, result.Error, map[string]any{
			"agent_name": result.AgentName,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) reloadAgents(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		writeError(w, http.StatusNotImplemented, ErrCodeNotImplemented, "agent reload is not available")
		return
	}

	resp := ReloadResponse{}
	if err := s.agents.Reload(); err != nil {
		logging.Warn().Err(err).Msg("Agent reload reported errors")
		resp.Error = err.Error()
	}
	resp.Agents = s.agents.Count()

	s.bus().Publish(event.Event{
		Type: event.AgentsReloaded,
		Data: event.AgentsReloadedData{Count: resp.Agents, Error: resp.Error},
	})
	writeJSON(w, http.StatusOK, resp)
}
