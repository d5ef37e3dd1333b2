// Package stream turns complete vendor SSE response bodies into canonical
// assistant messages.
//
// Every parser is fail-open: a record that is not valid JSON, or that lacks
// the expected shape, is skipped without aborting the parse. A stream that
// yields no content blocks produces nil, which callers treat as "do not
// persist this turn".
package stream

import (
	"fmt"

	"github.com/missdeer/agentbridge/message"
)

// Parse dispatches raw to the parser for vendor. The CLI backend already
// emits Anthropic SSE, so it shares the Anthropic parser.
func Parse(vendor message.Vendor, raw string) (*message.ParsedResult, error) {
	switch vendor {
	case message.VendorAnthropic, message.VendorCLI:
		return ParseAnthropic(raw), nil
	case message.VendorOpenAI, message.VendorOllama:
		return ParseOpenAI(raw), nil
	case message.VendorGemini:
		return ParseGemini(raw), nil
	default:
		return nil, fmt.Errorf("no stream parser for vendor %q", vendor)
	}
}

// finish drops empty text blocks and wraps the remaining content. It returns
// nil when nothing is left.
func finish(blocks []message.ContentBlock, stop message.StopReason) *message.ParsedResult {
	content := make([]message.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == message.BlockText && b.Text == "" {
			continue
		}
		content = append(content, b)
	}
	if len(content) == 0 {
		return nil
	}
	return &message.ParsedResult{
		Message:    message.Message{Role: message.RoleAssistant, Content: content},
		StopReason: stop,
	}
}

func hasToolUse(blocks []message.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == message.BlockToolUse {
			return true
		}
	}
	return false
}
