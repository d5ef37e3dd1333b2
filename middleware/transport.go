package middleware

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
)

// CompressedTransport decodes compressed upstream responses. When
// AcceptEncoding is set it is advertised on requests that carry none.
type CompressedTransport struct {
	Base           http.RoundTripper
	AcceptEncoding string
}

func (t *CompressedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.AcceptEncoding != "" && req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", t.AcceptEncoding)
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if req.Method == http.MethodHead ||
		resp.StatusCode == http.StatusNoContent ||
		resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}

	raw := resp.Header.Get("Content-Encoding")
	if strings.Contains(raw, ",") {
		return resp, nil
	}
	c, ok, _ := lookupCodec(raw)
	if !ok {
		return resp, nil
	}

	reader, err := c.reader(resp.Body)
	if err != nil {
		log.Printf("[TRANSPORT] decompressor init failed for %q: %v; passing through unchanged", raw, err)
		return resp, nil
	}

	resp.Body = &decodedBody{reader: reader, body: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decodedBody closes both the decoder and the underlying response body.
type decodedBody struct {
	reader io.ReadCloser
	body   io.Closer
}

func (d *decodedBody) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decodedBody) Close() error {
	return errors.Join(d.reader.Close(), d.body.Close())
}
