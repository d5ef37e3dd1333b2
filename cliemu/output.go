package cliemu

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/toolcall"
)

// Usage is the token accounting reported on the CLI's result line.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// output is the content recovered from one run's stdout.
type output struct {
	blocks       []message.ContentBlock
	sawAssistant bool
	sawMaxTokens bool
	usage        Usage
	skippedLines int

	content *toolcall.Builder
}

// parseOutput reads the line-delimited JSON the CLI writes in stream-json
// mode. Lines that are not JSON are skipped. Every assistant line is part of
// the same reply, so the content of all of them is assembled as one message.
func parseOutput(stdout []byte) output {
	out := output{content: toolcall.NewBuilder(message.NewToolUseID)}
	r := bufio.NewReader(bytes.NewReader(stdout))
	for {
		line, err := r.ReadBytes('\n')
		out.addLine(bytes.TrimSpace(line))
		if err != nil {
			break
		}
	}
	out.blocks = out.content.Blocks()
	return out
}

func (o *output) addLine(line []byte) {
	if len(line) == 0 {
		return
	}
	if !gjson.ValidBytes(line) {
		o.skippedLines++
		return
	}
	root := gjson.ParseBytes(line)

	switch root.Get("type").String() {
	case "assistant":
		o.sawAssistant = true
		o.addAssistant(root.Get("message"))
	case "result":
		if u := root.Get("usage"); u.IsObject() {
			o.usage.InputTokens = u.Get("input_tokens").Int()
			o.usage.OutputTokens = u.Get("output_tokens").Int()
		}
		if root.Get("stop_reason").String() == string(message.StopMaxTokens) {
			o.sawMaxTokens = true
		}
	}
}

func (o *output) addAssistant(msg gjson.Result) {
	if msg.Get("stop_reason").String() == string(message.StopMaxTokens) {
		o.sawMaxTokens = true
	}
	for _, item := range msg.Get("content").Array() {
		switch item.Get("type").String() {
		case "text":
			o.content.AddText(item.Get("text").String())
		case "tool_use":
			name := item.Get("name").String()
			if name == "" {
				continue
			}
			id := item.Get("id").String()
			if id == "" {
				id = message.NewToolUseID()
			}
			o.content.AddToolUse(message.ToolUseBlock(id, name, json.RawMessage(item.Get("input").Raw)))
		}
	}
}

func (o *output) stopReason() message.StopReason {
	for _, b := range o.blocks {
		if b.Type == message.BlockToolUse {
			return message.StopToolUse
		}
	}
	if o.sawMaxTokens {
		return message.StopMaxTokens
	}
	return message.StopEndTurn
}
