package cliemu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missdeer/agentbridge/budget"
	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/sse"
	"github.com/missdeer/agentbridge/stream"
)

// fakeCLI writes an executable shell script and returns its path.
func fakeCLI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func userTurn(text string) []message.Message {
	return []message.Message{{Role: message.RoleUser, Content: []message.ContentBlock{message.TextBlock(text)}}}
}

func eventNames(t *testing.T, chunks []string) []string {
	t.Helper()
	var names []string
	for _, ev := range sse.Events(strings.Join(chunks, "")) {
		names = append(names, ev.Name)
	}
	return names
}

// parseChunks reassembles synthesized chunks with the Anthropic stream parser.
func parseChunks(chunks []string) *message.ParsedResult {
	return stream.ParseAnthropic(strings.Join(chunks, ""))
}

func TestBuildArgs(t *testing.T) {
	e := New(Config{DefaultModel: "sonnet", ExtraArgs: []string{"--permission-mode", "plan"}}, budget.New())

	args := e.BuildArgs(Request{System: "be nice", MaxTokens: 1000})
	assert.Equal(t, []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--system-prompt", "be nice",
		"--model", "sonnet",
		"--max-budget-usd", "0.0225",
		"--permission-mode", "plan",
	}, args)

	args = e.BuildArgs(Request{Model: "opus"})
	assert.Contains(t, args, "opus")
	assert.NotContains(t, args, "--max-budget-usd")
	assert.NotContains(t, args, "--system-prompt")
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, "base", SystemPrompt("base", nil))

	got := SystemPrompt("base", []message.Tool{{Name: "search", Description: "Find things"}})
	assert.True(t, strings.HasPrefix(got, "base\n\n"))
	assert.Contains(t, got, "<tool_call>")
	assert.True(t, strings.HasSuffix(got, "- search: Find things"))
}

func TestTranscript(t *testing.T) {
	dir := t.TempDir()
	msgs := []message.Message{
		{Role: message.RoleUser, Content: []message.ContentBlock{
			message.TextBlock("look at this"),
			message.ImageBlock("image/png", "aGVsbG8="),
		}},
		{Role: message.RoleAssistant, Content: []message.ContentBlock{
			message.TextBlock("Reading."),
			message.ToolUseBlock("toolu_1", "read", json.RawMessage(`{"path":"a"}`)),
		}},
		{Role: message.RoleUser, Content: []message.ContentBlock{message.ToolResultBlock("toolu_1", "contents")}},
	}

	got, err := Transcript(msgs, dir)
	require.NoError(t, err)

	turns := strings.Split(got, "\n\n")
	require.Len(t, turns, 3)
	assert.True(t, strings.HasPrefix(turns[0], "Human: look at this\n[Image: "+dir))
	assert.Equal(t, "Assistant: Reading.\n"+`<tool_call>{"name":"read","arguments":{"path":"a"}}</tool_call>`, turns[1])
	assert.Equal(t, `Human: <tool_result tool_use_id="toolu_1">contents</tool_result>`, turns[2])

	files, err := filepath.Glob(filepath.Join(dir, "agentbridge-image-*.png"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestTranscript_BadImage(t *testing.T) {
	msgs := []message.Message{{Role: message.RoleUser, Content: []message.ContentBlock{message.ImageBlock("image/png", "!!!")}}}
	_, err := Transcript(msgs, t.TempDir())
	assert.Error(t, err)
}

func TestRun_Text(t *testing.T) {
	dir := t.TempDir()
	stdinFile := filepath.Join(dir, "stdin.txt")
	cli := fakeCLI(t, `cat > '`+stdinFile+`'
echo '{"type":"system","subtype":"init"}'
echo 'not json'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"Hello there."}]}}'
echo '{"type":"result","subtype":"success","usage":{"input_tokens":12,"output_tokens":5}}'`)

	e := New(Config{Path: cli}, nil)
	res, err := e.Run(context.Background(), Request{Model: "m", Messages: userTurn("hi")})
	require.NoError(t, err)

	stdin, err := os.ReadFile(stdinFile)
	require.NoError(t, err)
	assert.Equal(t, "Human: hi", string(stdin))

	require.NotNil(t, res.Parsed)
	assert.Equal(t, message.StopEndTurn, res.Parsed.StopReason)
	assert.Equal(t, "Hello there.", res.Parsed.Message.Text())
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 5}, res.Usage)

	assert.Equal(t, []string{
		"message_start",
		"content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop",
	}, eventNames(t, res.Chunks))
	assert.Equal(t, res.Parsed, parseChunks(res.Chunks))
}

func TestRun_ToolCallsMergedIntoOneMessage(t *testing.T) {
	cli := fakeCLI(t, `cat > /dev/null
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"Let me check. <tool_call>{\"name\":\"read\",\"arguments\":{\"path\":\"a.go\"}}</tool_call> It says hello."}]}}'
echo '{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_native","name":"ls","input":{"dir":"."}}]}}'`)

	e := New(Config{Path: cli}, nil)
	res, err := e.Run(context.Background(), Request{Messages: userTurn("go")})
	require.NoError(t, err)
	require.NotNil(t, res.Parsed)

	assert.Equal(t, message.StopToolUse, res.Parsed.StopReason)
	content := res.Parsed.Message.Content
	require.Len(t, content, 4)
	assert.Equal(t, "Let me check.", content[0].Text)
	assert.Equal(t, "read", content[1].Name)
	assert.True(t, strings.HasPrefix(content[1].ID, "toolu_"))
	assert.JSONEq(t, `{"path":"a.go"}`, string(content[1].Input))
	assert.Equal(t, "It says hello.", content[2].Text, "text before a later call is kept")
	assert.Equal(t, "toolu_native", content[3].ID)

	names := eventNames(t, res.Chunks)
	assert.Equal(t, 1, count(names, "message_start"))
	assert.Equal(t, 1, count(names, "message_stop"))
	assert.Equal(t, 4, count(names, "content_block_start"))

	assert.Equal(t, res.Parsed, parseChunks(res.Chunks))
}

func TestRun_RulesSpanAssistantLines(t *testing.T) {
	cli := fakeCLI(t, `cat > /dev/null
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"<tool_call>{\"name\":\"search\",\"arguments\":{}}</tool_call>"}]}}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"<tool_call>{\"name\":\"search\",\"arguments\":{\"query\":\"cats\"}}</tool_call>"}]}}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"Here are the results: none."}]}}'`)

	res, err := New(Config{Path: cli}, nil).Run(context.Background(), Request{Messages: userTurn("find cats")})
	require.NoError(t, err)
	require.NotNil(t, res.Parsed)

	assert.Equal(t, message.StopToolUse, res.Parsed.StopReason)
	content := res.Parsed.Message.Content
	require.Len(t, content, 1, "rehearsal call and invented continuation must both be dropped")
	assert.Equal(t, message.BlockToolUse, content[0].Type)
	assert.Equal(t, "search", content[0].Name)
	assert.JSONEq(t, `{"query":"cats"}`, string(content[0].Input))
	assert.NotContains(t, res.Parsed.Message.Text(), "Here are the results")
}

func TestRun_TextBetweenCallsOnSeparateLines(t *testing.T) {
	cli := fakeCLI(t, `cat > /dev/null
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"<tool_call>{\"name\":\"a\",\"arguments\":{\"x\":1}}</tool_call>"}]}}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"and also"}]}}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"<tool_call>{\"name\":\"b\",\"arguments\":{\"y\":2}}</tool_call> done"}]}}'`)

	res, err := New(Config{Path: cli}, nil).Run(context.Background(), Request{Messages: userTurn("go")})
	require.NoError(t, err)
	require.NotNil(t, res.Parsed)

	content := res.Parsed.Message.Content
	require.Len(t, content, 3)
	assert.Equal(t, "a", content[0].Name)
	assert.Equal(t, "and also", content[1].Text)
	assert.Equal(t, "b", content[2].Name)
}

func TestRun_Env(t *testing.T) {
	cli := fakeCLI(t, `cat > /dev/null
echo "{\"type\":\"assistant\",\"message\":{\"content\":[{\"type\":\"text\",\"text\":\"$AGENTBRIDGE_TEST_VAR\"}]}}"`)

	e := New(Config{Path: cli, Env: []string{"AGENTBRIDGE_TEST_VAR=from-config"}}, nil)
	res, err := e.Run(context.Background(), Request{Messages: userTurn("x")})
	require.NoError(t, err)
	require.NotNil(t, res.Parsed)
	assert.Equal(t, "from-config", res.Parsed.Message.Text())
}

func TestParseOutput_OversizedLine(t *testing.T) {
	big := strings.Repeat("a", 17*1024*1024)
	stdout := []byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"` + big + `"}]}}` + "\n" +
		`{"type":"result","usage":{"input_tokens":1,"output_tokens":2}}`)

	out := parseOutput(stdout)
	require.Len(t, out.blocks, 1)
	assert.Len(t, out.blocks[0].Text, len(big))
	assert.Equal(t, Usage{InputTokens: 1, OutputTokens: 2}, out.usage, "unterminated last line is read")
	assert.Zero(t, out.skippedLines)
}

func TestRun_MaxTokens(t *testing.T) {
	cli := fakeCLI(t, `echo '{"type":"assistant","message":{"stop_reason":"max_tokens","content":[{"type":"text","text":"cut"}]}}'`)
	res, err := New(Config{Path: cli}, nil).Run(context.Background(), Request{Messages: userTurn("x")})
	require.NoError(t, err)
	assert.Equal(t, message.StopMaxTokens, res.Parsed.StopReason)
}

func TestRun_NonZeroExitWithOutput(t *testing.T) {
	cli := fakeCLI(t, `echo '{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}'
echo 'warning' >&2
exit 3`)
	res, err := New(Config{Path: cli}, nil).Run(context.Background(), Request{Messages: userTurn("x")})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "partial", res.Parsed.Message.Text())
}

func TestRun_NonZeroExitWithoutOutput(t *testing.T) {
	cli := fakeCLI(t, `echo 'boom' >&2
exit 2`)
	res, err := New(Config{Path: cli}, nil).Run(context.Background(), Request{Messages: userTurn("x")})
	require.Error(t, err)
	assert.Nil(t, res)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, 2, procErr.ExitCode)
	assert.Equal(t, "boom\n", procErr.Stderr)
}

func TestRun_EmptyOutput(t *testing.T) {
	cli := fakeCLI(t, `echo '{"type":"result","usage":{"output_tokens":0}}'`)
	res, err := New(Config{Path: cli}, nil).Run(context.Background(), Request{Messages: userTurn("x")})
	require.NoError(t, err)
	assert.Nil(t, res.Parsed)
	assert.Nil(t, parseChunks(res.Chunks))
}

func TestStream_EmptyRunWritesNothing(t *testing.T) {
	cli := fakeCLI(t, `echo '{"type":"result","usage":{"output_tokens":0}}'`)
	var buf bytes.Buffer
	res, err := New(Config{Path: cli}, nil).Stream(context.Background(), Request{Messages: userTurn("x")}, &buf)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Parsed)
	assert.Zero(t, buf.Len())
}

func TestRun_CLINotFound(t *testing.T) {
	for _, path := range []string{
		filepath.Join(t.TempDir(), "missing"),
		"agentbridge-no-such-cli",
	} {
		_, err := New(Config{Path: path}, nil).Run(context.Background(), Request{Messages: userTurn("x")})
		var nf *CLINotFoundError
		require.True(t, errors.As(err, &nf), "%s: %v", path, err)
		assert.Equal(t, path, nf.Path)
	}
}

func TestRun_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))

	_, err := New(Config{Path: path}, nil).Run(context.Background(), Request{Messages: userTurn("x")})
	var procErr *ProcessError
	assert.True(t, errors.As(err, &procErr), "%v", err)
}

func TestRun_TimeoutYieldsNothing(t *testing.T) {
	cli := fakeCLI(t, `echo '{"type":"assistant","message":{"content":[{"type":"text","text":"early"}]}}'
sleep 30`)

	e := New(Config{Path: cli, Timeout: 200 * time.Millisecond}, nil)
	var buf bytes.Buffer
	start := time.Now()
	res, err := e.Stream(context.Background(), Request{Messages: userTurn("x")}, &buf)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Nil(t, res)
	assert.Zero(t, buf.Len(), "no chunk may reach the caller after a timeout")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_ContextCancelled(t *testing.T) {
	cli := fakeCLI(t, `sleep 30`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := New(Config{Path: cli}, nil).Run(ctx, Request{Messages: userTurn("x")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_WritesChunks(t *testing.T) {
	cli := fakeCLI(t, `echo '{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}'`)
	var buf bytes.Buffer
	res, err := New(Config{Path: cli}, nil).Stream(context.Background(), Request{Messages: userTurn("x")}, &buf)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(res.Chunks, ""), buf.String())
	assert.True(t, strings.HasPrefix(buf.String(), "event: message_start\ndata: "))
}

func TestSynthesize_Shape(t *testing.T) {
	chunks := Synthesize("msg_1", "m", []message.ContentBlock{
		message.ToolUseBlock("toolu_1", "f", json.RawMessage(`{"a":1}`)),
	}, message.StopToolUse, Usage{OutputTokens: 9})

	events := sse.Events(strings.Join(chunks, ""))
	require.Len(t, events, 6)
	assert.JSONEq(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"a\":1}"}}`, events[2].Data)
	assert.JSONEq(t, `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":9}}`, events[4].Data)
}

func count(items []string, want string) int {
	n := 0
	for _, s := range items {
		if s == want {
			n++
		}
	}
	return n
}
