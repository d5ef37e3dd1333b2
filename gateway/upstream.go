package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/missdeer/agentbridge/config"
	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/middleware"
	"github.com/missdeer/agentbridge/upstreammeta"
)

// UpstreamStatusError is an upstream reply with a non-2xx status.
type UpstreamStatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d: %s", e.Upstream, e.StatusCode, truncate(e.Body, 300))
}

// upstreamURL returns the streaming endpoint for vendor. Every vendor is
// asked to stream; the gateway buffers and parses the full stream.
func upstreamURL(vendor message.Vendor, baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case vendor == message.VendorAnthropic:
		return base + "/v1/messages"
	case vendor.OpenAICompatible():
		if strings.HasSuffix(base, "/v1") {
			return base + "/chat/completions"
		}
		return base + "/v1/chat/completions"
	case vendor == message.VendorGemini:
		return base + "/v1beta/models/" + url.PathEscape(model) + ":streamGenerateContent?alt=sse"
	default:
		return base
	}
}

// setAuthHeaders applies vendor authentication and returns the final URL,
// which for Gemini carries the key as a query parameter.
func setAuthHeaders(req *http.Request, vendor message.Vendor, token, rawURL string) string {
	switch {
	case vendor == message.VendorAnthropic:
		req.Header.Set("x-api-key", token)
		req.Header.Set("anthropic-version", upstreammeta.AnthropicVersion)
	case vendor == message.VendorGemini:
		if token != "" && !strings.Contains(rawURL, "key=") {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			rawURL += sep + "key=" + url.QueryEscape(token)
		}
	default:
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return rawURL
}

// send posts body to the upstream and returns the full response body.
func send(ctx context.Context, client *http.Client, upstream config.Upstream, vendor message.Vendor, model string, body []byte) ([]byte, error) {
	target := upstreamURL(vendor, upstream.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, err
	}
	if final := setAuthHeaders(req, vendor, upstream.Token, target); final != target {
		if req.URL, err = url.Parse(final); err != nil {
			return nil, err
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if ua := upstreammeta.UserAgentForVendor(vendor); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	payload, encoding, err := middleware.CompressBody(body, upstream.RequestCompression)
	if err != nil {
		return nil, fmt.Errorf("request body compression: %w", err)
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
		log.Printf("[FORWARD] upstream=%s encoding=%s bytes=%d->%d", upstream.Name, encoding, len(body), len(payload))
	}
	req.Body = io.NopCloser(bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamStatusError{Upstream: upstream.Name, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
