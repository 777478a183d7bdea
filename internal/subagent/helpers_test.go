package subagent_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/event"
	"github.com/opencode-ai/subagents/internal/provider"
	"github.com/opencode-ai/subagents/internal/tool"
)

// turn is the scripted reply of one model turn.
type turn struct {
	chunks   []*schema.Message
	startErr error
	// streamErr is delivered after chunks.
	streamErr error
	// hang keeps the stream open after chunks until the test releases it.
	hang bool
}

// stubStreamer replays scripted turns and counts calls.
type stubStreamer struct {
	mu       sync.Mutex
	turns    []turn
	repeat   *turn
	calls    atomic.Int32
	requests []*provider.CompletionRequest
	started  chan struct{}
	writers  []*schema.StreamWriter[*schema.Message]
}

func newStreamer(turns ...turn) *stubStreamer {
	return &stubStreamer{turns: turns, started: make(chan struct{}, 16)}
}

func textTurn(parts ...string) turn {
	var chunks []*schema.Message
	for _, p := range parts {
		chunks = append(chunks, schema.AssistantMessage(p, nil))
	}
	return turn{chunks: chunks}
}

func callTurn(calls ...schema.ToolCall) turn {
	return turn{chunks: []*schema.Message{schema.AssistantMessage("", calls)}}
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func (s *stubStreamer) Stream(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	n := int(s.calls.Add(1)) - 1

	s.mu.Lock()
	copied := *req
	copied.Messages = append([]*schema.Message(nil), req.Messages...)
	s.requests = append(s.requests, &copied)

	var t turn
	switch {
	case n < len(s.turns):
		t = s.turns[n]
	case s.repeat != nil:
		t = *s.repeat
	default:
		t = textTurn("")
	}
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}

	if t.startErr != nil {
		return nil, t.startErr
	}
	if t.streamErr == nil && !t.hang {
		return provider.NewCompletionStream(schema.StreamReaderFromArray(t.chunks)), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(t.chunks) + 1)
	for _, c := range t.chunks {
		sw.Send(c, nil)
	}
	if t.streamErr != nil {
		sw.Send(nil, t.streamErr)
		sw.Close()
	} else {
		s.mu.Lock()
		s.writers = append(s.writers, sw)
		s.mu.Unlock()
	}
	return provider.NewCompletionStream(sr), nil
}

func (s *stubStreamer) Calls() int { return int(s.calls.Load()) }

func (s *stubStreamer) Request(i int) *provider.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// release closes streams left open by hanging turns.
func (s *stubStreamer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.writers {
		w.Close()
	}
	s.writers = nil
}

// recordingTool echoes its input and remembers every call.
type recordingTool struct {
	mu    sync.Mutex
	id    string
	err   error
	calls []json.RawMessage
	ctxs  []*tool.Context
}

func (t *recordingTool) ID() string                  { return t.id }
func (t *recordingTool) Description() string         { return "records calls to " + t.id }
func (t *recordingTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`) }

func (t *recordingTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, input)
	t.ctxs = append(t.ctxs, toolCtx)
	if t.err != nil {
		return nil, t.err
	}
	var in struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(input, &in)
	return &tool.Result{Output: t.id + ": " + in.Text}, nil
}

func (t *recordingTool) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// newToolset registers a recording tool under every name.
func newToolset(names ...string) (*tool.Registry, map[string]*recordingTool) {
	registry := tool.NewRegistry()
	tools := make(map[string]*recordingTool, len(names))
	for _, name := range names {
		t := &recordingTool{id: name}
		tools[name] = t
		registry.Register(t)
	}
	return registry, tools
}

func toolNames(infos []*schema.ToolInfo) []string {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}

// eventRecorder captures bus events in delivery order.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func recordEvents(bus *event.Bus) *eventRecorder {
	r := &eventRecorder{}
	bus.SubscribeAll(func(ev event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	})
	return r
}

func (r *eventRecorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// memorySink is an in-memory lifecycle sink.
type memorySink struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (s *memorySink) Record(ctx context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *memorySink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func writeDefinition(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0644)
}

func descriptor(name string, tools []string) *agent.Descriptor {
	return &agent.Descriptor{
		Name:        name,
		Description: "test agent " + name,
		Tools:       tools,
		Body:        "You are " + name + ".",
	}
}

// staticCatalog serves fixed descriptors.
type staticCatalog map[string]*agent.Descriptor

func (c staticCatalog) Get(name string) (*agent.Descriptor, bool) {
	d, ok := c[name]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

func (c staticCatalog) List() []agent.Summary {
	out := make([]agent.Summary, 0, len(c))
	for _, d := range c {
		out = append(out, d.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var errBoom = errors.New("boom")
