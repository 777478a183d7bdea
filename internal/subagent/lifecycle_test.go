package subagent_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/event"
	"github.com/opencode-ai/subagents/internal/storage"
	"github.com/opencode-ai/subagents/internal/subagent"
	"github.com/opencode-ai/subagents/internal/tool"
)

const docsWriter = `---
name: docs-writer
description: writes docs
tools: [shell]
---
You write concise developer documentation.
`

var _ = Describe("Sub-agent lifecycle", func() {
	var (
		ctx      context.Context
		root     string
		streamer *stubStreamer
		bus      *event.Bus
		events   *eventRecorder
		rollout  *storage.Rollout
		registry *tool.Registry
		manager  *subagent.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		root, err = os.MkdirTemp("", "subagent-lifecycle-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, root)

		projectDir := filepath.Join(root, "project", ".opencode", "agents")
		Expect(writeDefinition(projectDir, "docs-writer", docsWriter)).To(Succeed())

		catalog, err := agent.Discover(agent.Sources{
			UserDir:    filepath.Join(root, "home", "agents"),
			ProjectDir: projectDir,
		})
		Expect(err).NotTo(HaveOccurred())

		streamer = newStreamer(textTurn("Guide ", "drafted."))
		bus = event.NewBus()
		DeferCleanup(bus.Close)
		events = recordEvents(bus)
		rollout = storage.NewRollout(storage.New(filepath.Join(root, "data")), "ses_lifecycle")

		toolset, _ := newToolset("shell", "edit", "web_fetch")
		manager = subagent.NewManager(catalog, subagent.NewRunner(streamer, toolset),
			subagent.WithBus(bus),
			subagent.WithSink(rollout),
			subagent.WithSessionID("ses_lifecycle"),
		)

		registry = tool.NewRegistry()
		manager.Register(registry)
	})

	run := func(payload string) subagent.Result {
		out, err := registry.Dispatch(ctx, tool.Call{Name: "subagent_run", Arguments: json.RawMessage(payload)}, nil)
		Expect(err).NotTo(HaveOccurred())

		var result subagent.Result
		Expect(json.Unmarshal([]byte(out.Output), &result)).To(Succeed())
		return result
	}

	Context("when the agent exists only in the project scope", func() {
		It("lists it with its description", func() {
			list := manager.HandleList()
			Expect(list).To(HaveLen(1))
			Expect(list[0].Name).To(Equal("docs-writer"))
			Expect(list[0].Description).To(Equal("writes docs"))
		})

		It("runs the task and reports the merged output", func() {
			result := run(`{"name":"docs-writer","task":"write a setup guide"}`)

			Expect(result.Success).To(BeTrue())
			Expect(result.Output).To(Equal("Guide drafted."))
			Expect(result.AgentName).To(Equal("docs-writer"))
			Expect(result.Task).To(Equal("write a setup guide"))
		})

		It("offers only the shell family and never the meta-tools", func() {
			run(`{"name":"docs-writer","task":"write a setup guide"}`)

			req := streamer.Request(0)
			Expect(toolNames(req.Tools)).To(Equal([]string{"shell"}))
			Expect(req.Messages).To(HaveLen(1))
			Expect(req.Messages[0].Content).To(Equal(
				"You write concise developer documentation.\n\nTask: write a setup guide"))
		})

		It("publishes exactly one start followed by one end", func() {
			result := run(`{"name":"docs-writer","task":"write a setup guide"}`)

			got := events.Events()
			Expect(got).To(HaveLen(2))
			Expect(got[0].Type).To(Equal(event.SubAgentStart))
			Expect(got[1].Type).To(Equal(event.SubAgentEnd))
			Expect(got[0].Seq).To(BeNumerically("<", got[1].Seq))

			start := got[0].Data.(event.SubAgentStartData)
			Expect(start.Name).To(Equal("docs-writer"))
			Expect(start.Task).To(Equal("write a setup guide"))
			Expect(start.SubID).To(Equal(result.SubID))

			end := got[1].Data.(event.SubAgentEndData)
			Expect(end.Success).To(BeTrue())
			Expect(end.SubID).To(Equal(result.SubID))
		})

		It("records the lifecycle to the session rollout", func() {
			run(`{"name":"docs-writer","task":"write a setup guide"}`)

			items, err := rollout.Items(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].Type).To(Equal(event.SubAgentStart))
			Expect(items[0].Task).To(Equal("write a setup guide"))
			Expect(items[1].Type).To(Equal(event.SubAgentEnd))
			Expect(items[1].Success).NotTo(BeNil())
			Expect(*items[1].Success).To(BeTrue())
		})

		It("keeps start and end paired across consecutive runs", func() {
			first := run(`{"name":"docs-writer","task":"a"}`)
			second := run(`{"name":"docs-writer","task":"b"}`)
			Expect(first.SubID).NotTo(Equal(second.SubID))

			got := events.Events()
			Expect(got).To(HaveLen(4))
			for i := 1; i < len(got); i++ {
				Expect(got[i-1].Seq).To(BeNumerically("<", got[i].Seq))
			}
			Expect(got[0].Type).To(Equal(event.SubAgentStart))
			Expect(got[1].Type).To(Equal(event.SubAgentEnd))
			Expect(got[2].Type).To(Equal(event.SubAgentStart))
			Expect(got[3].Type).To(Equal(event.SubAgentEnd))
		})
	})

	Context("when the agent does not exist", func() {
		It("fails without events or model calls", func() {
			result := run(`{"name":"missing-agent","task":"x"}`)

			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(Equal("Sub-agent execution failed: agent 'missing-agent' not found"))
			Expect(events.Events()).To(BeEmpty())
			Expect(streamer.Calls()).To(Equal(0))

			items, err := rollout.Items(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})
	})
})
