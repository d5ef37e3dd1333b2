// Package middleware handles HTTP body encodings for the gateway: inbound
// request decompression, outbound request compression, and transparent
// decoding of compressed upstream responses.
package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// codec is one supported Content-Encoding.
type codec struct {
	name     string
	compress func([]byte) ([]byte, error)
	reader   func(io.Reader) (io.ReadCloser, error)
}

var (
	gzipCodec = codec{
		name: "gzip",
		compress: func(data []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			if _, err := w.Write(data); err != nil {
				return nil, fmt.Errorf("gzip write: %w", err)
			}
			if err := w.Close(); err != nil {
				return nil, fmt.Errorf("gzip close: %w", err)
			}
			return buf.Bytes(), nil
		},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, fmt.Errorf("create gzip reader: %w", err)
			}
			return zr, nil
		},
	}

	zstdCodec = codec{
		name: "zstd",
		compress: func(data []byte) ([]byte, error) {
			w, err := zstd.NewWriter(nil)
			if err != nil {
				return nil, fmt.Errorf("create zstd writer: %w", err)
			}
			defer w.Close()
			return w.EncodeAll(data, nil), nil
		},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, fmt.Errorf("create zstd reader: %w", err)
			}
			return zr.IOReadCloser(), nil
		},
	}

	brotliCodec = codec{
		name: "br",
		compress: func(data []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := brotli.NewWriter(&buf)
			if _, err := w.Write(data); err != nil {
				return nil, fmt.Errorf("brotli write: %w", err)
			}
			if err := w.Close(); err != nil {
				return nil, fmt.Errorf("brotli close: %w", err)
			}
			return buf.Bytes(), nil
		},
		reader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(r)), nil
		},
	}
)

// lookupCodec resolves a Content-Encoding token. ok is false for identity
// encodings and for unsupported ones; supported reports which.
func lookupCodec(encoding string) (c codec, ok bool, supported bool) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "none", "identity":
		return codec{}, false, true
	case "gzip", "x-gzip":
		return gzipCodec, true, true
	case "zstd", "x-zstd":
		return zstdCodec, true, true
	case "br":
		return brotliCodec, true, true
	default:
		return codec{}, false, false
	}
}

// AcceptEncoding lists every encoding the gateway can decode.
const AcceptEncoding = "gzip, zstd, br"
