package gateway

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// countingReader tracks how many bytes have been read from it.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestCollect_WithinBound(t *testing.T) {
	body := "1234567890"
	got, err := Collect(strings.NewReader(body), 10)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if string(got) != body {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestCollect_ExceedsBound(t *testing.T) {
	_, err := Collect(strings.NewReader("12345678901"), 10)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestCollect_AbortsWithoutDraining(t *testing.T) {
	// A stream much larger than the bound: the collector must stop
	// reading as soon as the running total overflows, not drain the rest.
	big := bytes.Repeat([]byte("x"), 1<<20)
	cr := &countingReader{r: bytes.NewReader(big)}

	_, err := Collect(cr, 10)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	// The first chunk read already overflows; nothing further should be
	// consumed.
	if cr.read > collectChunkSize {
		t.Errorf("collector drained %d bytes after overflow", cr.read)
	}
}

func TestCollect_BinaryRoundTrip(t *testing.T) {
	// Invalid UTF-8 must survive byte-for-byte.
	payload := []byte{0xD3, 0xEB, 0xE9, 0xE1}
	got, err := Collect(bytes.NewReader(payload), -1)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got % x, want % x", got, payload)
	}
}

func TestCollect_EmptyStream(t *testing.T) {
	got, err := Collect(strings.NewReader(""), 10)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty body, got %d bytes", len(got))
	}
}

func TestCollect_ZeroBoundRejectsAnyBody(t *testing.T) {
	_, err := Collect(strings.NewReader("x"), 0)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestCollect_StreamError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("abc"), &failingReader{err: boom})
	_, err := Collect(r, 100)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error to propagate, got %v", err)
	}
}

type failingReader struct {
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	return 0, f.err
}

func TestCollect_ChunkedConcatenation(t *testing.T) {
	// Bytes arriving in many small reads concatenate exactly.
	parts := []string{"alpha", "beta", "gamma"}
	readers := make([]io.Reader, len(parts))
	for i, p := range parts {
		readers[i] = strings.NewReader(p)
	}
	got, err := Collect(io.MultiReader(readers...), 100)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if string(got) != "alphabetagamma" {
		t.Errorf("got %q", got)
	}
}
