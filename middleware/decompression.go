package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

const (
	DefaultMaxCompressedBody   int64 = 16 << 20
	DefaultMaxDecompressedBody int64 = 64 << 20
)

var (
	errRequestBodyTooLarge      = errors.New("request body too large")
	errDecompressedBodyTooLarge = errors.New("decompressed body too large")
)

// DecompressionMiddleware decompresses request bodies with the default limits.
func DecompressionMiddleware(next http.Handler) http.Handler {
	return Decompress(DefaultMaxCompressedBody, DefaultMaxDecompressedBody)(next)
}

// Decompress returns middleware that buffers the request body, decodes it
// according to Content-Encoding (or gzip/zstd magic bytes when the header is
// missing) and hands the plain body to next. Bodies over the limits are
// rejected with 413.
func Decompress(maxBody, maxDecoded int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			body, err := readAllWithLimit(r.Body, maxBody, errRequestBodyTooLarge)
			r.Body.Close()
			if err != nil {
				if errors.Is(err, errRequestBodyTooLarge) {
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				log.Printf("[ERROR] Failed to read request body: %v", err)
				http.Error(w, "Failed to read request body", http.StatusBadRequest)
				return
			}

			decoded, err := decodeBody(body, r.Header.Get("Content-Encoding"), maxDecoded)
			if err != nil {
				if errors.Is(err, errDecompressedBodyTooLarge) {
					http.Error(w, "Decompressed request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				log.Printf("[ERROR] Failed to decompress request body: %v", err)
				http.Error(w, "Failed to decompress request body", http.StatusBadRequest)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(decoded))
			r.ContentLength = int64(len(decoded))
			r.Header.Del("Content-Encoding")
			next.ServeHTTP(w, r)
		})
	}
}

// decodeBody undoes every listed coding, last applied first.
func decodeBody(body []byte, contentEncoding string, limit int64) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	encodings := splitEncodings(contentEncoding)
	if len(encodings) == 0 {
		if detected := sniffEncoding(body); detected != "" {
			encodings = []string{detected}
		}
	}

	decoded := body
	var applied []string
	for i := len(encodings) - 1; i >= 0; i-- {
		c, ok, supported := lookupCodec(encodings[i])
		if !supported {
			return nil, fmt.Errorf("unsupported Content-Encoding: %s", encodings[i])
		}
		if !ok {
			continue
		}
		rc, err := c.reader(bytes.NewReader(decoded))
		if err != nil {
			return nil, err
		}
		decoded, err = readAllWithLimit(rc, limit, errDecompressedBodyTooLarge)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", c.name, err)
		}
		applied = append(applied, c.name)
	}

	if len(applied) > 0 {
		log.Printf("[DECOMPRESS] %s: %d bytes -> %d bytes", strings.Join(applied, ","), len(body), len(decoded))
	}
	return decoded, nil
}

func splitEncodings(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		// Parameters are not valid here but some clients send them.
		token, _, _ := strings.Cut(part, ";")
		if token = strings.ToLower(strings.TrimSpace(token)); token != "" {
			out = append(out, token)
		}
	}
	return out
}

func readAllWithLimit(r io.Reader, limit int64, limitErr error) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, limitErr
	}
	return body, nil
}

// sniffEncoding recognises gzip and zstd frames. Brotli has no magic number.
func sniffEncoding(body []byte) string {
	switch {
	case len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b:
		return "gzip"
	case len(body) >= 4 && body[0] == 0x28 && body[1] == 0xb5 && body[2] == 0x2f && body[3] == 0xfd:
		return "zstd"
	default:
		return ""
	}
}
