// Package toolcall recovers tool invocations that a model wrote as in-band
// text markers:
//
//	<tool_call>{"name":"search","arguments":{"query":"cats"}}</tool_call>
//
// It is used for backends that have no native tool-calling channel.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/missdeer/agentbridge/message"
)

const (
	callOpen  = "<tool_call>"
	callClose = "</tool_call>"
)

var (
	closedResultSpan   = regexp.MustCompile(`(?s)<tool_result\b[^>]*>.*?</tool_result>`)
	danglingResultSpan = regexp.MustCompile(`(?s)<tool_result\b[^>]*>.*$`)
)

// Extraction is the outcome of scanning one block of model text.
type Extraction struct {
	TextParts []string
	ToolCalls []message.ToolCallSite
}

// Extract splits one block of text into prose and tool calls. It is a
// Builder fed a single text block.
func Extract(text string) Extraction {
	b := NewBuilder(nil)
	b.AddText(text)

	var out Extraction
	for _, blk := range b.Blocks() {
		switch blk.Type {
		case message.BlockText:
			out.TextParts = append(out.TextParts, blk.Text)
		case message.BlockToolUse:
			out.ToolCalls = append(out.ToolCalls, message.ToolCallSite{Name: blk.Name, Arguments: blk.Input})
		}
	}
	return out
}

// Builder assembles one assistant message from its text blocks and native
// tool_use blocks, in order.
//
// Tool result markers are removed from text first: the model must never be
// able to fabricate a result. A marker whose JSON cannot be parsed stays in
// the prose. The rules that look at the whole message are applied by
// Blocks: once at least one call exists, prose after the last call is
// dropped as an invented continuation, and rehearsal calls are removed.
type Builder struct {
	newID   func() string
	blocks  []message.ContentBlock
	pending []string
	calls   int
}

// NewBuilder returns a Builder that names recovered calls with newID. A nil
// newID leaves their ids empty.
func NewBuilder(newID func() string) *Builder {
	return &Builder{newID: newID}
}

// AddText scans text for call markers.
func (b *Builder) AddText(text string) {
	text = stripResults(text)

	var cur strings.Builder
	rest := text
	for {
		start := strings.Index(rest, callOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(callOpen):], callClose)
		if end < 0 {
			break
		}
		end += start + len(callOpen)

		body := rest[start+len(callOpen) : end]
		if call, ok := parseCall(body); ok {
			cur.WriteString(rest[:start])
			b.hold(cur.String())
			cur.Reset()

			id := ""
			if b.newID != nil {
				id = b.newID()
			}
			b.addCall(message.ToolUseBlock(id, call.Name, call.Arguments))
		} else {
			cur.WriteString(rest[:end+len(callClose)])
		}
		rest = rest[end+len(callClose):]
	}
	cur.WriteString(rest)
	b.hold(cur.String())
}

// AddToolUse appends a call the backend reported natively.
func (b *Builder) AddToolUse(block message.ContentBlock) {
	b.addCall(block)
}

// Blocks returns the assembled content.
func (b *Builder) Blocks() []message.ContentBlock {
	out := make([]message.ContentBlock, 0, len(b.blocks)+len(b.pending))
	out = append(out, b.blocks...)
	if b.calls == 0 {
		for _, s := range b.pending {
			out = append(out, message.TextBlock(s))
		}
	}
	return dropRehearsals(out)
}

func (b *Builder) hold(s string) {
	if s = strings.TrimSpace(s); s != "" {
		b.pending = append(b.pending, s)
	}
}

func (b *Builder) addCall(block message.ContentBlock) {
	for _, s := range b.pending {
		b.blocks = append(b.blocks, message.TextBlock(s))
	}
	b.pending = b.pending[:0]
	b.blocks = append(b.blocks, block)
	b.calls++
}

func stripResults(text string) string {
	text = closedResultSpan.ReplaceAllString(text, "")
	return danglingResultSpan.ReplaceAllString(text, "")
}

// parseCall decodes the JSON between a pair of call markers. The arguments
// may be named arguments, input or parameters, and may be an object or a
// string holding one.
func parseCall(body string) (message.ToolCallSite, bool) {
	body = strings.TrimSpace(RepairUnicodeEscapes(body))
	if !gjson.Valid(body) {
		return message.ToolCallSite{}, false
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return message.ToolCallSite{}, false
	}
	name := strings.TrimSpace(root.Get("name").String())
	if name == "" {
		return message.ToolCallSite{}, false
	}

	var args gjson.Result
	for _, key := range []string{"arguments", "input", "parameters"} {
		if v := root.Get(key); v.Exists() {
			args = v
			break
		}
	}

	raw := args.Raw
	if args.Type == gjson.String {
		raw = args.String()
	}
	return message.ToolCallSite{
		Name:      name,
		Arguments: message.ObjectOrEmpty(json.RawMessage(raw)),
	}, true
}

// dropRehearsals removes empty-argument calls to a tool that is also called
// with arguments in the same message.
func dropRehearsals(blocks []message.ContentBlock) []message.ContentBlock {
	withArgs := make(map[string]bool)
	for _, b := range blocks {
		if b.Type == message.BlockToolUse && !emptyArguments(b.Input) {
			withArgs[b.Name] = true
		}
	}
	if len(withArgs) == 0 {
		return blocks
	}
	kept := make([]message.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == message.BlockToolUse && emptyArguments(b.Input) && withArgs[b.Name] {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

func emptyArguments(raw json.RawMessage) bool {
	args := gjson.ParseBytes(raw)
	return !args.IsObject() || len(args.Map()) == 0
}
