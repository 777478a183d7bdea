package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/subagents/internal/agent"
	"github.com/opencode-ai/subagents/internal/config"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage sub-agent definitions",
	Long: `Manage sub-agent definitions.

Agents are markdown files with YAML frontmatter. The file name is the agent
name, the frontmatter carries description and tools, and the body is the
system prompt.`,
}

var agentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all agents",
	Args:    cobra.NoArgs,
	RunE:    runAgentList,
}

var agentDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show an agent definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentDescribe,
}

var agentCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentCreate,
}

var agentDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentDelete,
}

var (
	createDescription string
	createTools       []string
	createPrompt      string
	createGlobal      bool
	deleteGlobal      bool
)

func init() {
	agentCreateCmd.Flags().StringVar(&createDescription, "description", "", "Agent description (required)")
	agentCreateCmd.Flags().StringSliceVar(&createTools, "tools", nil, "Allowed tools; omit for all tools, pass \"\" for none")
	agentCreateCmd.Flags().StringVar(&createPrompt, "prompt", "", "System prompt (defaults to a template)")
	agentCreateCmd.Flags().BoolVarP(&createGlobal, "global", "g", false, "Create in the user scope")
	agentCreateCmd.MarkFlagRequired("description")

	agentDeleteCmd.Flags().BoolVarP(&deleteGlobal, "global", "g", false, "Delete from the user scope")

	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentDescribeCmd)
	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentDeleteCmd)
}

func runAgentList(cmd *cobra.Command, args []string) error {
	_, _, agents, err := loadAgents(workDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCOPE\tTOOLS\tDESCRIPTION")
	for _, name := range agents.Names() {
		desc, _ := agents.Get(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", desc.Name, desc.Scope, formatTools(desc), desc.Description)
	}
	return w.Flush()
}

func runAgentDescribe(cmd *cobra.Command, args []string) error {
	_, _, agents, err := loadAgents(workDir)
	if err != nil {
		return err
	}

	name := args[0]
	desc, ok := agents.Get(name)
	if !ok {
		msg := fmt.Sprintf("Sub-agent '%s' not found", name)
		if similar := suggest(name, agents.Names()); len(similar) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(similar, ", "))
		}
		return fmt.Errorf("%s", msg)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:        %s\n", desc.Name)
	fmt.Fprintf(out, "Description: %s\n", desc.Description)
	fmt.Fprintf(out, "Scope:       %s\n", desc.Scope)
	fmt.Fprintf(out, "Tools:       %s\n", formatTools(desc))
	fmt.Fprintf(out, "Path:        %s\n", desc.Path)
	fmt.Fprintf(out, "\n%s\n", desc.Body)
	return nil
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	dir, cfg, agents, err := loadAgents(workDir)
	if err != nil {
		return err
	}

	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}

	var tools *[]string
	if cmd.Flags().Changed("tools") {
		list := nonEmpty(createTools)
		tools = &list
	}

	prompt := createPrompt
	if prompt == "" {
		prompt = defaultPrompt(name, createDescription)
	}

	content, err := renderDefinition(createDescription, tools, prompt)
	if err != nil {
		return err
	}
	if _, _, err := agent.Parse(content, name); err != nil {
		return err
	}

	sources := config.AgentSources(cfg, dir)
	agentDir := sources.ProjectDir
	if createGlobal {
		agentDir = sources.UserDir
	}
	if err := os.MkdirAll(agentDir, 0755); err != nil {
		return err
	}

	path := filepath.Join(agentDir, name+".md")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("agent %s already exists at %s", name, path)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}

	if existing, ok := agents.Get(name); ok && !createGlobal && existing.Scope == agent.ScopeUser {
		fmt.Fprintf(cmd.OutOrStdout(), "Note: overrides user agent at %s\n", existing.Path)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created agent: %s\n", path)
	return nil
}

func runAgentDelete(cmd *cobra.Command, args []string) error {
	dir, cfg, _, err := loadAgents(workDir)
	if err != nil {
		return err
	}

	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}

	sources := config.AgentSources(cfg, dir)
	agentDir := sources.ProjectDir
	if deleteGlobal {
		agentDir = sources.UserDir
	}

	path := filepath.Join(agentDir, name+".md")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("agent %s not found in %s", name, agentDir)
	}
	if err := os.Remove(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted agent: %s\n", name)
	return nil
}

// frontmatter is the YAML header written by agent create. A nil Tools is
// omitted so the agent stays unrestricted.
type frontmatter struct {
	Description string    `yaml:"description"`
	Tools       *[]string `yaml:"tools,omitempty"`
}

// renderDefinition renders a definition document.
func renderDefinition(description string, tools *[]string, prompt string) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(frontmatter{Description: description, Tools: tools}); err != nil {
		return "", fmt.Errorf("failed to render frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(buf.Bytes())
	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimSpace(prompt))
	sb.WriteString("\n")
	return sb.String(), nil
}

func defaultPrompt(name, description string) string {
	return fmt.Sprintf(`You are the %s sub-agent. %s

Work only on the task you are given and finish with a concise summary of
what you did.`, name, strings.TrimSpace(description))
}

func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid agent name %q", name)
	}
	return nil
}

func nonEmpty(values []string) []string {
	out := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formatTools(desc *agent.Descriptor) string {
	switch {
	case desc.Unrestricted():
		return "all"
	case len(desc.Tools) == 0:
		return "none"
	default:
		return strings.Join(desc.Tools, ", ")
	}
}

// suggest returns the names within a small edit distance of name, closest
// first.
func suggest(name string, names []string) []string {
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}

	type match struct {
		name string
		dist int
	}
	var matches []match
	for _, n := range names {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(n))
		if d <= limit {
			matches = append(matches, match{n, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
