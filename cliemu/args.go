package cliemu

import (
	"strconv"
	"strings"
	"time"

	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/toolcall"
)

const (
	DefaultPath    = "claude"
	DefaultTimeout = 5 * time.Minute
)

// Config describes how to launch the CLI.
type Config struct {
	Path         string
	Timeout      time.Duration
	DefaultModel string
	ExtraArgs    []string
	WorkDir      string
	// ImageDir receives decoded image attachments. Empty means os.TempDir().
	ImageDir string
	// Env is appended to the gateway's environment.
	Env []string
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Request is one emulated turn.
type Request struct {
	Model     string
	System    string
	Messages  []message.Message
	Tools     []message.Tool
	MaxTokens int
}

const toolInstructions = `You can call tools. To call one, write a block in exactly this form, one block per call:
<tool_call>{"name":"TOOL_NAME","arguments":{"param":"value"}}</tool_call>
The arguments value must be a JSON object matching the tool's parameters.
Never write <tool_result> blocks yourself; results arrive in the next Human turn.
After your tool calls, stop and wait for the results.

Available tools:
`

// SystemPrompt appends the tool-call instructions and the tool catalog to
// system. Without tools, system is returned unchanged.
func SystemPrompt(system string, tools []message.Tool) string {
	if len(tools) == 0 {
		return system
	}
	var sb strings.Builder
	if s := strings.TrimSpace(system); s != "" {
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	sb.WriteString(toolInstructions)
	sb.WriteString(toolcall.Catalog(tools))
	return sb.String()
}

// BuildArgs returns the CLI argument list for req.
//
// The CLI is invoked as: -p --output-format stream-json --verbose
// [--system-prompt <prompt>] [--model <model>] [--max-budget-usd <usd>] [extra...]
func (e *Emulator) BuildArgs(req Request) []string {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
	}

	if prompt := SystemPrompt(req.System, req.Tools); prompt != "" {
		args = append(args, "--system-prompt", prompt)
	}

	model := e.model(req)
	if model != "" {
		args = append(args, "--model", model)
	}

	if usd := e.budget.Budget(req.MaxTokens, model); usd > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(usd, 'f', -1, 64))
	}

	return append(args, e.cfg.ExtraArgs...)
}
