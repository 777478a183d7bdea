package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/provider"
	"github.com/opencode-ai/subagents/internal/subagent"
	"github.com/opencode-ai/subagents/internal/tool"
)

// replyStreamer answers every turn with one text chunk.
type replyStreamer struct {
	reply string
	calls atomic.Int32
}

func (s *replyStreamer) Stream(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	s.calls.Add(1)
	return provider.NewCompletionStream(schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(s.reply, nil),
	})), nil
}

const docsWriter = "---\ndescription: writes docs\ntools: [shell]\n---\nYou write docs.\n"

type fixture struct {
	server     *Server
	registry   *agent.Registry
	streamer   *replyStreamer
	projectDir string
}

func newFixture(t *testing.T, opts ...subagent.Option) *fixture {
	t.Helper()
	projectDir := filepath.Join(t.TempDir(), ".opencode", "agents")
	writeDefinition(t, projectDir, "docs-writer", docsWriter)

	registry, err := agent.Discover(agent.Sources{ProjectDir: projectDir})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	streamer := &replyStreamer{reply: "Guide drafted."}
	manager := subagent.NewManager(registry, subagent.NewRunner(streamer, tool.NewRegistry()), opts...)
	t.Cleanup(func() { manager.Bus().Close() })

	return &fixture{
		server:     New(DefaultConfig(), manager, registry),
		registry:   registry,
		streamer:   streamer,
		projectDir: projectDir,
	}
}

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	return resp.Error
}

func TestHealth(t *testing.T) {
	f := newFixture(t, subagent.WithSessionID("ses_http"))

	w := f.do(t, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || !resp.Enabled || resp.Agents != 1 || resp.SessionID != "ses_http" {
		t.Errorf("Unexpected health %+v", resp)
	}
}

func TestListAgents(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/agents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var list []agent.Summary
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "docs-writer" || list[0].Description != "writes docs" {
		t.Errorf("Unexpected list %+v", list)
	}
}

func TestDescribeAgent(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/agents/docs-writer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var desc agent.Descriptor
	if err := json.NewDecoder(w.Body).Decode(&desc); err != nil {
		t.Fatal(err)
	}
	if desc.Body != "You write docs." || len(desc.Tools) != 1 || desc.Scope != agent.ScopeProject {
		t.Errorf("Unexpected descriptor %+v", desc)
	}

	w = f.do(t, "GET", "/agents/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeNotFound || e.Message != "Sub-agent 'ghost' not found" {
		t.Errorf("Unexpected error %+v", e)
	}
}

func TestRunAgent(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/agents/docs-writer/run", RunRequest{Task: "write a guide"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result subagent.Result
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Output != "Guide drafted." || result.SubID == "" {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestRunAgent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
		prefix string
	}{
		{"invalid json", "/agents/docs-writer/run", `{"task":`, http.StatusBadRequest, ErrCodeInvalidRequest, "failed to parse function arguments: "},
		{"missing task", "/agents/docs-writer/run", RunRequest{}, http.StatusBadRequest, ErrCodeInvalidRequest, "missing required argument: task"},
		{"unknown agent", "/agents/missing-agent/run", RunRequest{Task: "x"}, http.StatusNotFound, ErrCodeNotFound, "Sub-agent execution failed: agent 'missing-agent' not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(t, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, w.Code)
			}
			e := decodeError(t, w)
			if e.Code != tt.code || !strings.HasPrefix(e.Message, tt.prefix) {
				t.Errorf("Unexpected error %+v", e)
			}
			if n := f.streamer.calls.Load(); n != 0 {
				t.Errorf("Expected no model calls, got %d", n)
			}
		})
	}
}

func TestRunAgent_Disabled(t *testing.T) {
	f := newFixture(t, subagent.WithEnabled(false))

	w := f.do(t, "POST", "/agents/docs-writer/run", RunRequest{Task: "x"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Message != "Sub-agents are not enabled in this session" {
		t.Errorf("Unexpected error %+v", e)
	}
}

func TestReloadAgents(t *testing.T) {
	f := newFixture(t)
	writeDefinition(t, f.projectDir, "reviewer", "---\ndescription: reviews code\n---\nReview.\n")

	w := f.do(t, "POST", "/agents/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp ReloadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Agents != 2 || resp.Error != "" {
		t.Errorf("Unexpected reload response %+v", resp)
	}

	if w := f.do(t, "GET", "/agents/reviewer", nil); w.Code != http.StatusOK {
		t.Errorf("Expected reloaded agent, got %d", w.Code)
	}
}

func TestReloadAgents_Unavailable(t *testing.T) {
	manager := subagent.NewManager(agent.NewRegistry(), subagent.NewRunner(&replyStreamer{}, tool.NewRegistry()))
	defer manager.Bus().Close()
	srv := New(nil, manager, nil)

	req := httptest.NewRequest("POST", "/agents/reload", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", w.Code)
	}
}

func TestLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/event?type=subagent.end", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("SSE connect failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %s", ct)
	}

	events := make(chan StreamEvent, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev StreamEvent
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				events <- ev
			}
		}
	}()

	first := <-events
	if first.Type != "server.connected" {
		t.Fatalf("Expected server.connected, got %s", first.Type)
	}

	runResp, err := http.Post(ts.URL+"/agents/docs-writer/run", "application/json", strings.NewReader(`{"task":"write"}`))
	if err != nil {
		t.Fatal(err)
	}
	runResp.Body.Close()

	select {
	case ev := <-events:
		if ev.Type != "subagent.end" || ev.Seq == 0 {
			t.Errorf("Unexpected event %+v", ev)
		}
		props, _ := ev.Properties.(map[string]any)
		if props["name"] != "docs-writer" || props["success"] != true {
			t.Errorf("Unexpected properties %v", ev.Properties)
		}
	case <-ctx.Done():
		t.Fatal("Timed out waiting for subagent.end")
	}
}
