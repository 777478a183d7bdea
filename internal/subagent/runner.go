package subagent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/logging"
	"github.com/opencode-ai/subagents/internal/provider"
	"github.com/opencode-ai/subagents/internal/tool"
)

const (
	// DefaultMaxTurns bounds model turns per nested run.
	DefaultMaxTurns = 50

	// TaskSeparator joins the agent body and the delegated task.
	TaskSeparator = "\n\nTask: "
)

// ModelStreamer opens one streaming model turn.
type ModelStreamer interface {
	Stream(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error)
}

// Toolset dispatches tool calls and describes tools to the model.
// *tool.Registry implements it. A call still running when the run is
// cancelled is abandoned, not awaited.
type Toolset interface {
	tool.Dispatcher
	Capabilities() tool.Set
	ToolInfos(set tool.Set) []*schema.ToolInfo
}

// RunRequest describes one delegated task.
type RunRequest struct {
	Agent *agent.Descriptor
	Task  string
	// Model overrides the default model, "provider/model".
	Model string
	// Available is the caller's capability set. Nil means everything the
	// toolset offers.
	Available tool.Set
	// Depth is 0 for the primary loop.
	Depth int

	SessionID string
	SubID     string
}

// Runner executes nested agent runs.
type Runner struct {
	streamer ModelStreamer
	tools    Toolset
	maxTurns int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxTurns sets the turn limit. Values below 1 keep the default.
func WithMaxTurns(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// NewRunner creates a runner over the given model and tool collaborators.
func NewRunner(streamer ModelStreamer, tools Toolset, opts ...RunnerOption) *Runner {
	r := &Runner{
		streamer: streamer,
		tools:    tools,
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ComposePrompt returns the isolated prompt for a nested run.
func ComposePrompt(body, task string) string {
	return body + TaskSeparator + task
}

// AllowedTools returns the capabilities a nested run may call: available
// minus the meta-tools, filtered by the agent's allowlist.
func AllowedTools(available tool.Set, desc *agent.Descriptor) tool.Set {
	return tool.Filter(available.WithoutMetaTools(), desc.Tools)
}

// nestedRun is the state owned by one Run call.
type nestedRun struct {
	req       RunRequest
	allowed   tool.Set
	log       zerolog.Logger
	output    strings.Builder
	trace     strings.Builder
	toolCalls []string
}

// Run executes req and always returns a result; failures are reported in
// it rather than as an error.
func (r *Runner) Run(ctx context.Context, req RunRequest) *Result {
	desc := req.Agent
	if req.Depth >= 1 {
		return failed(desc.Name, req.Task, ErrRecursion)
	}

	available := req.Available
	if available == nil {
		available = r.tools.Capabilities()
	}

	run := &nestedRun{
		req:     req,
		allowed: AllowedTools(available, desc),
		log:     logging.Agent(desc.Name, req.SubID),
	}

	run.log.Debug().
		Strs("tools", run.allowed.Names()).
		Str("model", req.Model).
		Msg("Starting nested run")

	if err := r.loop(ctx, run); err != nil {
		run.log.Error().Err(err).Int("toolCalls", len(run.toolCalls)).Msg("Nested run failed")
		result := failed(desc.Name, req.Task, err)
		result.ToolCalls = run.toolCalls
		return result
	}

	if run.trace.Len() > 0 {
		run.log.Debug().Str("reasoning", run.trace.String()).Msg("Nested run reasoning")
	}

	output := run.output.String()
	if output == "" {
		output = "Sub-agent '" + desc.Name + "' completed."
	}

	run.log.Info().
		Int("toolCalls", len(run.toolCalls)).
		Int("outputLen", len(output)).
		Msg("Nested run completed")

	return succeeded(desc.Name, req.Task, output, run.toolCalls)
}

func (r *Runner) loop(ctx context.Context, run *nestedRun) error {
	desc := run.req.Agent
	messages := []*schema.Message{
		schema.UserMessage(ComposePrompt(desc.Body, run.req.Task)),
	}
	infos := r.tools.ToolInfos(run.allowed)

	for turn := 0; turn < r.maxTurns; turn++ {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		stream, err := r.streamer.Stream(ctx, &provider.CompletionRequest{
			Model:    run.req.Model,
			Messages: messages,
			Tools:    infos,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return &ModelError{Agent: desc.Name, Phase: PhaseStart, Err: err}
		}

		reply, err := receive(ctx, stream)
		stream.Close()
		if err != nil {
			if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
				return ErrCancelled
			}
			return &ModelError{Agent: desc.Name, Phase: PhaseStream, Err: err}
		}

		run.record(reply)
		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = "call_" + ulid.Make().String()
			}
		}
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 {
			return nil
		}

		for _, call := range reply.ToolCalls {
			output := r.execute(ctx, run, call)
			if ctx.Err() != nil {
				return ErrCancelled
			}
			messages = append(messages, schema.ToolMessage(output, call.ID))
		}
	}

	return &TurnLimitError{Agent: desc.Name, Limit: r.maxTurns}
}

// record appends the turn's text to the transcript and its reasoning to the
// trace.
func (run *nestedRun) record(reply *schema.Message) {
	if reply.Content != "" {
		if run.output.Len() > 0 {
			run.output.WriteString("\n\n")
		}
		run.output.WriteString(reply.Content)
	}
	if reply.ReasoningContent != "" {
		run.trace.WriteString(reply.ReasoningContent)
	}
}

// execute answers one tool call. Failures become the tool output so the
// model can react to them.
func (r *Runner) execute(ctx context.Context, run *nestedRun, call schema.ToolCall) string {
	name := call.Function.Name
	run.toolCalls = append(run.toolCalls, name)

	if tool.Parse(name).IsMetaTool() {
		run.log.Warn().Str("tool", name).Msg("Nested meta-tool call refused")
		return ErrRecursion.Error()
	}
	if !run.allowed.Has(name) {
		run.log.Warn().Str("tool", name).Msg("Tool outside allowlist")
		return "unsupported function call: " + name
	}

	args := json.RawMessage(call.Function.Arguments)
	if len(strings.TrimSpace(call.Function.Arguments)) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := r.dispatch(ctx, tool.Call{ID: call.ID, Name: name, Arguments: args}, &tool.Context{
		SessionID: run.req.SessionID,
		CallID:    call.ID,
		Agent:     run.req.Agent.Name,
	})
	if errors.Is(err, ErrCancelled) {
		run.log.Debug().Str("tool", name).Msg("Tool call abandoned on cancel")
		return err.Error()
	}
	if err != nil {
		run.log.Debug().Err(err).Str("tool", name).Msg("Tool call failed")
		return err.Error()
	}
	if result == nil {
		return ""
	}

	run.log.Debug().Str("tool", name).Int("outputLen", len(result.Output)).Msg("Tool call completed")
	return result.Output
}

type dispatched struct {
	result *tool.Result
	err    error
}

// dispatch runs one tool call and returns ErrCancelled as soon as ctx is
// done, even if the tool has not returned yet.
func (r *Runner) dispatch(ctx context.Context, call tool.Call, toolCtx *tool.Context) (*tool.Result, error) {
	done := make(chan dispatched, 1)
	go func() {
		result, err := r.tools.Dispatch(ctx, call, toolCtx)
		done <- dispatched{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	case d := <-done:
		return d.result, d.err
	}
}

type chunk struct {
	msg *schema.Message
	err error
}

// receive reads one turn from stream and merges its chunks. It returns
// ErrCancelled as soon as ctx is done.
func receive(ctx context.Context, stream *provider.CompletionStream) (*schema.Message, error) {
	chunks := make(chan chunk)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			msg, err := stream.Recv()
			select {
			case chunks <- chunk{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var parts []*schema.Message
	for {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		case c := <-chunks:
			if errors.Is(c.err, io.EOF) {
				return merge(parts)
			}
			if c.err != nil {
				return nil, c.err
			}
			if c.msg != nil {
				parts = append(parts, c.msg)
			}
		}
	}
}

func merge(parts []*schema.Message) (*schema.Message, error) {
	if len(parts) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.ConcatMessages(parts)
}
