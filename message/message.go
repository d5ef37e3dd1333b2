// Package message defines the vendor-neutral conversation model shared by
// every stream parser and wire-format converter.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ImageSource is an inline base64 image payload.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is one unit of message content. Only the fields belonging to
// Type are meaningful; MarshalJSON emits exactly those.
type ContentBlock struct {
	Type BlockType

	// text
	Text string

	// tool_use
	ID               string
	Name             string
	Input            json.RawMessage
	ThoughtSignature string

	// tool_result
	ToolUseID string
	Content   string

	// image
	Source *ImageSource
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: ObjectOrEmpty(input)}
}

func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data}}
}

// MarshalJSON encodes the block using the Anthropic field names, restricted
// to the fields of its type.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			Text string    `json:"text"`
		}{b.Type, b.Text})
	case BlockToolUse:
		return json.Marshal(struct {
			Type             BlockType       `json:"type"`
			ID               string          `json:"id"`
			Name             string          `json:"name"`
			Input            json.RawMessage `json:"input"`
			ThoughtSignature string          `json:"thoughtSignature,omitempty"`
		}{b.Type, b.ID, b.Name, ObjectOrEmpty(b.Input), b.ThoughtSignature})
	case BlockToolResult:
		return json.Marshal(struct {
			Type      BlockType `json:"type"`
			ToolUseID string    `json:"tool_use_id"`
			Content   string    `json:"content"`
		}{b.Type, b.ToolUseID, b.Content})
	case BlockImage:
		return json.Marshal(struct {
			Type   BlockType    `json:"type"`
			Source *ImageSource `json:"source"`
		}{b.Type, b.Source})
	default:
		return nil, fmt.Errorf("unknown content block type %q", b.Type)
	}
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type             BlockType       `json:"type"`
		Text             string          `json:"text"`
		ID               string          `json:"id"`
		Name             string          `json:"name"`
		Input            json.RawMessage `json:"input"`
		ThoughtSignature string          `json:"thoughtSignature"`
		ToolUseID        string          `json:"tool_use_id"`
		Content          json.RawMessage `json:"content"`
		Source           *ImageSource    `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = ContentBlock{Type: raw.Type}
	switch raw.Type {
	case BlockText:
		b.Text = raw.Text
	case BlockToolUse:
		b.ID = raw.ID
		b.Name = raw.Name
		b.Input = ObjectOrEmpty(raw.Input)
		b.ThoughtSignature = raw.ThoughtSignature
	case BlockToolResult:
		b.ToolUseID = raw.ToolUseID
		b.Content = ResultText(raw.Content)
	case BlockImage:
		b.Source = raw.Source
	default:
		return fmt.Errorf("unknown content block type %q", raw.Type)
	}
	return nil
}

// Clone returns a copy of the block that shares no memory with b.
func (b ContentBlock) Clone() ContentBlock {
	c := b
	if b.Input != nil {
		c.Input = bytes.Clone(b.Input)
	}
	if b.Source != nil {
		src := *b.Source
		c.Source = &src
	}
	return c
}

// Message is one stored conversation turn. TurnID and Type are caller
// annotations and are never projected into a vendor payload.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
	TurnID  string         `json:"turnId,omitempty"`
	Type    string         `json:"type,omitempty"`
}

// UnmarshalJSON accepts content either as a string or as a block array.
// Blocks of unknown type are skipped.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
		TurnID  string          `json:"turnId"`
		Type    string          `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message{Role: raw.Role, TurnID: raw.TurnID, Type: raw.Type}

	content := bytes.TrimSpace(raw.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil
	}
	if content[0] == '"' {
		var s string
		if err := json.Unmarshal(content, &s); err != nil {
			return err
		}
		m.Content = []ContentBlock{TextBlock(s)}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return fmt.Errorf("message content: %w", err)
	}
	for _, item := range items {
		var b ContentBlock
		if err := json.Unmarshal(item, &b); err != nil {
			continue
		}
		m.Content = append(m.Content, b)
	}
	return nil
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	c.Content = make([]ContentBlock, len(m.Content))
	for i, b := range m.Content {
		c.Content[i] = b.Clone()
	}
	return c
}

// Text concatenates the text blocks of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks of the message in order.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ParsedResult is a fully assembled assistant turn.
type ParsedResult struct {
	Message    Message    `json:"message"`
	StopReason StopReason `json:"stop_reason"`
}

// ToolCallSite is a tool invocation recovered from plain text, before it is
// given an id.
type ToolCallSite struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ObjectOrEmpty returns raw if it holds a JSON object and `{}` otherwise.
func ObjectOrEmpty(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return trimmed
	}
	return json.RawMessage("{}")
}

// ResultText flattens a tool_result content value: strings are returned as
// is, arrays of text blocks are concatenated, anything else is returned as
// its JSON text.
func ResultText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return s
		}
	case '[':
		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if json.Unmarshal(trimmed, &parts) == nil {
			var sb strings.Builder
			for _, p := range parts {
				if p.Type == "text" || p.Type == "" {
					sb.WriteString(p.Text)
				}
			}
			return sb.String()
		}
	}
	return string(trimmed)
}
