package stream

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/sse"
)

type anthropicBlock struct {
	block      message.ContentBlock
	startInput json.RawMessage
	partial    strings.Builder
	sawPartial bool
}

// ParseAnthropic assembles an Anthropic Messages SSE stream.
func ParseAnthropic(raw string) *message.ParsedResult {
	blocks := make(map[int64]*anthropicBlock)
	var stopReason string

	for _, ev := range sse.Events(raw) {
		data := strings.TrimSpace(ev.Data)
		if data == "" || data == "[DONE]" || !gjson.Valid(data) {
			continue
		}
		root := gjson.Parse(data)

		eventType := ev.Name
		if eventType == "" {
			eventType = root.Get("type").String()
		}

		switch eventType {
		case "content_block_start":
			idx := root.Get("index")
			cb := root.Get("content_block")
			if !idx.Exists() || !cb.IsObject() {
				continue
			}
			switch cb.Get("type").String() {
			case "text":
				blocks[idx.Int()] = &anthropicBlock{block: message.TextBlock(cb.Get("text").String())}
			case "tool_use":
				b := &anthropicBlock{block: message.ContentBlock{
					Type: message.BlockToolUse,
					ID:   cb.Get("id").String(),
					Name: cb.Get("name").String(),
				}}
				if in := cb.Get("input"); in.IsObject() {
					b.startInput = json.RawMessage(in.Raw)
				}
				blocks[idx.Int()] = b
			}

		case "content_block_delta":
			idx := root.Get("index")
			if !idx.Exists() {
				continue
			}
			b, ok := blocks[idx.Int()]
			if !ok {
				continue
			}
			delta := root.Get("delta")
			switch delta.Get("type").String() {
			case "text_delta":
				if b.block.Type == message.BlockText {
					b.block.Text += delta.Get("text").String()
				}
			case "input_json_delta":
				if b.block.Type == message.BlockToolUse {
					b.partial.WriteString(delta.Get("partial_json").String())
					b.sawPartial = true
				}
			}

		case "message_delta":
			if sr := root.Get("delta.stop_reason"); sr.Type == gjson.String {
				stopReason = sr.String()
			}
		}
	}

	indexes := make([]int64, 0, len(blocks))
	for idx := range blocks {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	content := make([]message.ContentBlock, 0, len(indexes))
	for _, idx := range indexes {
		b := blocks[idx]
		if b.block.Type == message.BlockToolUse {
			switch {
			case b.sawPartial && strings.TrimSpace(b.partial.String()) != "":
				b.block.Input = message.ObjectOrEmpty(json.RawMessage(b.partial.String()))
			default:
				b.block.Input = message.ObjectOrEmpty(b.startInput)
			}
		}
		content = append(content, b.block)
	}

	return finish(content, MapAnthropicStopReason(stopReason, hasToolUse(content)))
}
