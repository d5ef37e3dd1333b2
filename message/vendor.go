package message

import (
	"fmt"
	"strings"
)

// Vendor selects a backend wire format. It is always chosen by the caller,
// never inferred from the shape of a payload.
type Vendor string

const (
	VendorAnthropic Vendor = "anthropic"
	VendorOpenAI    Vendor = "openai"
	VendorOllama    Vendor = "ollama"
	VendorGemini    Vendor = "gemini"
	VendorCLI       Vendor = "cli"
)

// ParseVendor maps a case-insensitive name to a Vendor.
func ParseVendor(s string) (Vendor, error) {
	switch v := Vendor(strings.ToLower(strings.TrimSpace(s))); v {
	case VendorAnthropic, VendorOpenAI, VendorOllama, VendorGemini, VendorCLI:
		return v, nil
	case "claude":
		return VendorAnthropic, nil
	default:
		return "", fmt.Errorf("unknown vendor %q", s)
	}
}

// OpenAICompatible reports whether the vendor speaks the OpenAI chat wire format.
func (v Vendor) OpenAICompatible() bool {
	return v == VendorOpenAI || v == VendorOllama
}
