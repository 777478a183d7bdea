// Package server exposes the sub-agent manager over HTTP.
//
// Endpoints:
//
//	GET  /health             liveness and agent count
//	GET  /agents             list agents, sorted by name
//	GET  /agents/{name}      describe one agent
//	POST /agents/{name}/run  run a task, body {"task": "...", "model": "provider/model"}
//	POST /agents/reload      rediscover definitions
//	GET  /event              lifecycle events as server-sent events
//
// Errors use the envelope {"error": {"code": "...", "message": "..."}}. A run
// that fails inside the nested loop still answers 200 with success=false; only
// unknown agents and malformed requests map to error statuses.
package server
