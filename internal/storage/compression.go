package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// encodeValue brotli-compresses values longer than threshold. A threshold of
// zero or less stores every value as is.
func encodeValue(value string, threshold int) ([]byte, bool, error) {
	if threshold <= 0 || len(value) <= threshold {
		return []byte(value), false, nil
	}
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := io.WriteString(w, value); err != nil {
		return nil, false, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, false, fmt.Errorf("compress: %w", err)
	}
	if buf.Len() >= len(value) {
		return []byte(value), false, nil
	}
	return buf.Bytes(), true, nil
}

func decodeValue(data []byte, compressed bool) (string, error) {
	if !compressed {
		return string(data), nil
	}
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(r, MaxValueSize+1))
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	if len(out) > MaxValueSize {
		return "", fmt.Errorf("decompress: output exceeds maximum allowed size")
	}
	return string(out), nil
}
