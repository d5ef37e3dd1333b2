// Package upstreammeta holds request metadata that upstream vendors check.
package upstreammeta

import "github.com/missdeer/agentbridge/message"

const (
	UserAgentCodexCLI      = "codex_cli_rs/0.101.0 (Mac OS 26.0.1; arm64) Apple_Terminal/464"
	UserAgentGeminiCLI     = "google-api-nodejs-client/9.15.1"
	UserAgentClaudeCodeCLI = "claude-cli/2.1.50 (external, sdk-cli)"
	UserAgentOllama        = "ollama-js/0.5.14"
)

// AnthropicVersion is sent as the anthropic-version header.
const AnthropicVersion = "2023-06-01"

// UserAgentForVendor returns the User-Agent sent to upstreams of vendor.
// Some gateways reject requests whose User-Agent does not look like the
// vendor's own client.
func UserAgentForVendor(vendor message.Vendor) string {
	switch vendor {
	case message.VendorOpenAI:
		return UserAgentCodexCLI
	case message.VendorOllama:
		return UserAgentOllama
	case message.VendorGemini:
		return UserAgentGeminiCLI
	case message.VendorAnthropic:
		return UserAgentClaudeCodeCLI
	default:
		return ""
	}
}
