package subagent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/event"
	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/tool"
)

// Catalog answers agent lookups. *agent.Registry implements it.
type Catalog interface {
	Get(name string) (*agent.Descriptor, bool)
	List() []agent.Summary
}

// Sink persists lifecycle events. *storage.Rollout implements it.
type Sink interface {
	Record(ctx context.Context, ev event.Event) error
}

// RunArgs are the decoded arguments of subagent_run.
type RunArgs struct {
	Name  string `json:"name"`
	Task  string `json:"task"`
	Model string `json:"model,omitempty"`
}

// DescribeArgs are the decoded arguments of subagent_describe.
type DescribeArgs struct {
	Name string `json:"name"`
}

// Manager is the entry point the primary loop calls for the meta-tools.
type Manager struct {
	catalog Catalog
	runner  *Runner
	bus     *event.Bus
	sink    Sink

	enabled   bool
	depth     int
	sessionID string
	available tool.Set
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus publishes lifecycle events on bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithSink records lifecycle events to sink.
func WithSink(sink Sink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithEnabled sets the feature toggle. Managers are enabled by default.
func WithEnabled(enabled bool) Option {
	return func(m *Manager) { m.enabled = enabled }
}

// WithDepth sets the depth of the loop that owns the manager.
func WithDepth(depth int) Option {
	return func(m *Manager) { m.depth = depth }
}

// WithSessionID tags events and tool contexts with a session.
func WithSessionID(id string) Option {
	return func(m *Manager) { m.sessionID = id }
}

// WithAvailable fixes the capability set handed to nested runs. By default
// the runner's toolset decides.
func WithAvailable(set tool.Set) Option {
	return func(m *Manager) { m.available = set }
}

// NewManager creates a manager. A private bus is created when none is given.
func NewManager(catalog Catalog, runner *Runner, opts ...Option) *Manager {
	m := &Manager{
		catalog: catalog,
		runner:  runner,
		enabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = event.NewBus()
	}
	return m
}

// Enabled reports the feature toggle.
func (m *Manager) Enabled() bool { return m.enabled }

// Bus returns the lifecycle event bus.
func (m *Manager) Bus() *event.Bus { return m.bus }

// SessionID returns the session the manager belongs to.
func (m *Manager) SessionID() string { return m.sessionID }

// HandleList returns every agent sorted by name.
func (m *Manager) HandleList() []agent.Summary {
	list := m.catalog.List()
	if list == nil {
		return []agent.Summary{}
	}
	return list
}

// HandleDescribe returns the agent with exactly this name.
func (m *Manager) HandleDescribe(name string) (*agent.Descriptor, error) {
	desc, ok := m.catalog.Get(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return desc, nil
}

// DecodeRunArgs decodes and validates a subagent_run payload.
func DecodeRunArgs(payload json.RawMessage) (RunArgs, error) {
	var args RunArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return args, &ArgumentError{Err: err}
	}
	if strings.TrimSpace(args.Name) == "" {
		return args, &ArgumentError{Field: "name"}
	}
	if strings.TrimSpace(args.Task) == "" {
		return args, &ArgumentError{Field: "task"}
	}
	return args, nil
}

// HandleRun decodes payload and runs it. Only a malformed payload returns
// an error; every other failure is reported in the result.
func (m *Manager) HandleRun(ctx context.Context, payload json.RawMessage) (*Result, error) {
	args, err := DecodeRunArgs(payload)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, args), nil
}

// Run delegates args.Task to the named agent, publishing Start before and
// End after the nested run. Unknown agents produce no events.
func (m *Manager) Run(ctx context.Context, args RunArgs) *Result {
	desc, ok := m.catalog.Get(args.Name)
	if !ok {
		logging.Warn().Str("agent", args.Name).Msg("Sub-agent not found")
		return failed(args.Name, args.Task, &runNotFound{NotFoundError{Name: args.Name}})
	}

	subID := ulid.Make().String()

	m.emit(ctx, event.Event{
		Type: event.SubAgentStart,
		Data: event.SubAgentStartData{
			SubID:     subID,
			SessionID: m.sessionID,
			Name:      desc.Name,
			Task:      args.Task,
		},
	})

	result := m.runner.Run(ctx, RunRequest{
		Agent:     desc,
		Task:      args.Task,
		Model:     args.Model,
		Available: m.available,
		Depth:     m.depth,
		SessionID: m.sessionID,
		SubID:     subID,
	})
	result.SubID = subID

	m.emit(context.WithoutCancel(ctx), event.Event{
		Type: event.SubAgentEnd,
		Data: event.SubAgentEndData{
			SubID:     subID,
			SessionID: m.sessionID,
			Name:      desc.Name,
			Success:   result.Success,
		},
	})

	return result
}

// emit publishes ev synchronously so sequence numbers follow call order,
// then records it.
func (m *Manager) emit(ctx context.Context, ev event.Event) {
	stamped := m.bus.PublishSync(ev)

	logging.Info().
		Str("type", string(stamped.Type)).
		Uint64("seq", stamped.Seq).
		Msg("Sub-agent lifecycle event")

	if m.sink == nil {
		return
	}
	if err := m.sink.Record(ctx, stamped); err != nil {
		logging.Error().Err(err).Str("type", string(stamped.Type)).Msg("Failed to record lifecycle event")
	}
}

// runNotFound is the run-path wording of NotFoundError.
type runNotFound struct {
	NotFoundError
}

func (e *runNotFound) Error() string {
	return "Sub-agent execution failed: agent '" + e.Name + "' not found"
}

func (e *runNotFound) Unwrap() error { return &e.NotFoundError }
