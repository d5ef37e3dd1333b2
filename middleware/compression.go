package middleware

import "fmt"

// CompressBody compresses data for an outbound request. It returns the
// compressed bytes and the Content-Encoding to send; identity encodings
// return data unchanged with an empty encoding.
func CompressBody(data []byte, encoding string) ([]byte, string, error) {
	c, ok, supported := lookupCodec(encoding)
	if !supported {
		return nil, "", fmt.Errorf("unsupported request compression: %s", encoding)
	}
	if !ok {
		return data, "", nil
	}
	compressed, err := c.compress(data)
	if err != nil {
		return nil, "", err
	}
	return compressed, c.name, nil
}
