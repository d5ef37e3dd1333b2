package convert

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/missdeer/agentbridge/message"
)

// ErrNotArray is returned by Normalize when the payload is not a JSON array.
var ErrNotArray = errors.New("history must be a JSON array")

// Normalize converts history stored in vendor's wire format into canonical
// messages. Individual malformed entries are skipped. Caller annotations
// (turnId, type) present on the stored entries are kept.
func Normalize(vendor message.Vendor, raw []byte) ([]message.Message, error) {
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, ErrNotArray
	}

	switch {
	case vendor == message.VendorAnthropic || vendor == message.VendorCLI:
		return normalizeAnthropic(root), nil
	case vendor.OpenAICompatible():
		return normalizeOpenAI(root), nil
	case vendor == message.VendorGemini:
		return normalizeGemini(root), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVendor, vendor)
	}
}

func normalizeAnthropic(root gjson.Result) []message.Message {
	var out []message.Message
	for _, item := range root.Array() {
		var m message.Message
		if err := json.Unmarshal([]byte(item.Raw), &m); err != nil {
			continue
		}
		if m.Role != message.RoleUser && m.Role != message.RoleAssistant {
			continue
		}
		if len(m.Content) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

// history accumulates normalized messages, merging consecutive entries of
// the same role so the result alternates.
type history struct {
	msgs []message.Message
}

func (h *history) add(role message.Role, blocks []message.ContentBlock, item gjson.Result) {
	if len(blocks) == 0 {
		return
	}
	turnID := item.Get("turnId").String()
	kind := item.Get("type").String()
	if n := len(h.msgs); n > 0 && h.msgs[n-1].Role == role {
		last := &h.msgs[n-1]
		last.Content = append(last.Content, blocks...)
		if last.TurnID == "" {
			last.TurnID = turnID
		}
		if last.Type == "" {
			last.Type = kind
		}
		return
	}
	h.msgs = append(h.msgs, message.Message{Role: role, Content: blocks, TurnID: turnID, Type: kind})
}

func normalizeOpenAI(root gjson.Result) []message.Message {
	var (
		h   history
		ids = message.NewIDGenerator("call")
	)
	for _, item := range root.Array() {
		switch item.Get("role").String() {
		case "tool":
			// Merged into the preceding user message, or a new one.
			block := message.ToolResultBlock(item.Get("tool_call_id").String(), openAIContentText(item.Get("content")))
			h.add(message.RoleUser, []message.ContentBlock{block}, item)
		case "user":
			h.add(message.RoleUser, openAIContentBlocks(item.Get("content")), item)
		case "assistant":
			blocks := openAIContentBlocks(item.Get("content"))
			for _, tc := range item.Get("tool_calls").Array() {
				name := tc.Get("function.name").String()
				if name == "" {
					continue
				}
				id := tc.Get("id").String()
				if id == "" {
					id = ids.Next()
				}
				blocks = append(blocks, message.ToolUseBlock(id, name, json.RawMessage(tc.Get("function.arguments").String())))
			}
			h.add(message.RoleAssistant, blocks, item)
		}
	}
	return h.msgs
}

// openAIContentBlocks converts an OpenAI content value (string, null or parts).
func openAIContentBlocks(content gjson.Result) []message.ContentBlock {
	if content.Type == gjson.String {
		if content.String() == "" {
			return nil
		}
		return []message.ContentBlock{message.TextBlock(content.String())}
	}
	var blocks []message.ContentBlock
	for _, part := range content.Array() {
		switch part.Get("type").String() {
		case "text":
			if t := part.Get("text").String(); t != "" {
				blocks = append(blocks, message.TextBlock(t))
			}
		case "image_url":
			if mediaType, data, ok := parseDataURL(part.Get("image_url.url").String()); ok {
				blocks = append(blocks, message.ImageBlock(mediaType, data))
			}
		}
	}
	return blocks
}

func openAIContentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	var text string
	for _, part := range content.Array() {
		text += part.Get("text").String()
	}
	return text
}

func normalizeGemini(root gjson.Result) []message.Message {
	var (
		h          history
		ids        = message.NewIDGenerator("gemini_call")
		lastIDByFn = make(map[string]string)
	)
	for _, item := range root.Array() {
		role := mapRoleFromGemini(item.Get("role").String())

		var blocks []message.ContentBlock
		for _, part := range item.Get("parts").Array() {
			if part.Get("thought").Bool() {
				continue
			}
			if t := part.Get("text"); t.Type == gjson.String {
				if t.String() != "" {
					blocks = append(blocks, message.TextBlock(t.String()))
				}
				continue
			}
			if inline := part.Get("inlineData"); inline.IsObject() {
				blocks = append(blocks, message.ImageBlock(inline.Get("mimeType").String(), inline.Get("data").String()))
				continue
			}
			if fc := part.Get("functionCall"); fc.IsObject() {
				name := fc.Get("name").String()
				id := ids.Next()
				lastIDByFn[name] = id
				block := message.ToolUseBlock(id, name, json.RawMessage(fc.Get("args").Raw))
				block.ThoughtSignature = part.Get("thoughtSignature").String()
				blocks = append(blocks, block)
				continue
			}
			if fr := part.Get("functionResponse"); fr.IsObject() {
				id, ok := lastIDByFn[fr.Get("name").String()]
				if !ok {
					id = ids.Next()
				}
				blocks = append(blocks, message.ToolResultBlock(id, geminiResponseText(fr.Get("response"))))
			}
		}
		h.add(role, blocks, item)
	}
	return h.msgs
}

func geminiResponseText(resp gjson.Result) string {
	if c := resp.Get("content"); c.Type == gjson.String {
		return c.String()
	}
	if !resp.Exists() {
		return ""
	}
	return resp.Raw
}
