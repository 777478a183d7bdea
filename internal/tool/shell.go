package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const shellDescription = `Runs a shell command and returns its combined output.

Usage:
- command is interpreted as a POSIX shell script
- workdir defaults to the session working directory
- timeout_ms bounds execution (default 120000, max 600000)
- Output longer than 30000 characters is truncated`

const (
	defaultShellTimeout = 2 * time.Minute
	maxShellTimeout     = 10 * time.Minute
	maxShellOutput      = 30000
)

// ShellTool runs commands with an in-process POSIX shell interpreter.
// One instance is registered per shell alias.
type ShellTool struct {
	id      string
	workDir string
}

// ShellInput represents the input for the shell tools.
type ShellInput struct {
	Command   string `json:"command"`
	Workdir   string `json:"workdir,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// NewShellTool creates a shell tool registered under the name of kind.
func NewShellTool(kind Kind, workDir string) *ShellTool {
	return &ShellTool{id: Builtin(kind).Name(), workDir: workDir}
}

func (t *ShellTool) ID() string          { return t.id }
func (t *ShellTool) Description() string { return shellDescription }

func (t *ShellTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The shell command to run"
			},
			"workdir": {
				"type": "string",
				"description": "Working directory for the command"
			},
			"timeout_ms": {
				"type": "integer",
				"description": "Timeout in milliseconds"
			}
		},
		"required": ["command"]
	}`)
}

func (t *ShellTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ShellInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(params.Command) == "" {
		return nil, fmt.Errorf("command is required")
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(params.Command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	dir := t.resolveDir(params.Workdir, toolCtx)

	timeout := defaultShellTimeout
	if params.TimeoutMS > 0 {
		timeout = time.Duration(params.TimeoutMS) * time.Millisecond
		if timeout > maxShellTimeout {
			timeout = maxShellTimeout
		}
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	runner, err := interp.New(
		interp.StdIO(nil, &out, &out),
		interp.Dir(dir),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shell: %w", err)
	}

	exitCode := 0
	runErr := runner.Run(runCtx, file)
	if runErr != nil {
		var status interp.ExitStatus
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case runCtx.Err() != nil:
			return nil, fmt.Errorf("command timed out after %s", timeout)
		case errors.As(runErr, &status):
			exitCode = int(status)
		default:
			return nil, fmt.Errorf("command failed: %w", runErr)
		}
	}

	output := truncateOutput(out.String(), maxShellOutput)
	if exitCode != 0 {
		output = fmt.Sprintf("%s\nExit code: %d", output, exitCode)
	}

	return &Result{
		Title:  params.Command,
		Output: output,
		Metadata: map[string]any{
			"exit_code": exitCode,
			"workdir":   dir,
		},
	}, nil
}

func (t *ShellTool) resolveDir(dir string, toolCtx *Context) string {
	base := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		base = toolCtx.WorkDir
	}
	if dir == "" {
		return base
	}
	if filepath.IsAbs(dir) || base == "" {
		return dir
	}
	return filepath.Join(base, dir)
}

// truncateOutput cuts s to at most limit bytes on a rune boundary.
func truncateOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n\n(Output was truncated)"
}
