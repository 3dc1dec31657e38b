package gateway

import (
	"bytes"
	"io"
)

// DefaultMaxBodyBytes is the body size bound applied when configuration
// leaves it unset: 1 MiB.
const DefaultMaxBodyBytes int64 = 1 << 20

// collectChunkSize is the read granularity for body collection.
const collectChunkSize = 32 * 1024

// Collect reads a request body to completion, enforcing a size bound.
//
// The stream is consumed in chunks with a running total; the moment the
// total exceeds maxBytes the collector aborts with ErrBodyTooLarge without
// draining the remainder of the stream. A negative maxBytes disables the
// bound.
//
// Within bound, the returned slice is the exact concatenation of the bytes
// read. There is no character-set transcoding, so binary payloads
// round-trip byte-for-byte.
func Collect(r io.Reader, maxBytes int64) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, collectChunkSize)
	var total int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if maxBytes >= 0 && total > maxBytes {
				return nil, ErrBodyTooLarge
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
