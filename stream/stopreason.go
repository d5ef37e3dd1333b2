package stream

import "github.com/missdeer/agentbridge/message"

// MapOpenAIFinishReason maps an OpenAI finish_reason. An empty reason is
// resolved from whether tool calls were collected.
func MapOpenAIFinishReason(reason string, sawToolCalls bool) message.StopReason {
	switch reason {
	case "tool_calls":
		return message.StopToolUse
	case "stop":
		return message.StopEndTurn
	case "length":
		return message.StopMaxTokens
	case "":
		if sawToolCalls {
			return message.StopToolUse
		}
		return message.StopEndTurn
	default:
		return message.StopEndTurn
	}
}

// MapGeminiFinishReason maps a Gemini finishReason. STOP (and any other
// non-truncating reason) becomes tool_use when the turn carried function calls.
func MapGeminiFinishReason(reason string, sawToolCalls bool) message.StopReason {
	if reason == "MAX_TOKENS" {
		return message.StopMaxTokens
	}
	if sawToolCalls {
		return message.StopToolUse
	}
	return message.StopEndTurn
}

// MapAnthropicStopReason normalizes an Anthropic stop_reason.
func MapAnthropicStopReason(reason string, sawToolUse bool) message.StopReason {
	switch reason {
	case "tool_use":
		return message.StopToolUse
	case "max_tokens":
		return message.StopMaxTokens
	case "end_turn", "stop_sequence", "pause_turn", "refusal":
		return message.StopEndTurn
	default:
		if sawToolUse {
			return message.StopToolUse
		}
		return message.StopEndTurn
	}
}
