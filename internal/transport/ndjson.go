// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// NDJSONTransport writes one JSON document per line. It backs the offline
// analyzer and the --ndjson live output.
type NDJSONTransport struct {
	mu     sync.Mutex
	enc    *json.Encoder
	w      io.Writer
	closed bool
}

// NewNDJSONTransport creates a transport writing to w.
func NewNDJSONTransport(w io.Writer) *NDJSONTransport {
	return &NDJSONTransport{enc: json.NewEncoder(w), w: w}
}

// Send encodes data as a single line.
func (t *NDJSONTransport) Send(data any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("ndjson transport closed")
	}
	return t.enc.Encode(data)
}

// Close stops further writes. The writer is closed if it is an io.Closer
// other than a standard stream.
func (t *NDJSONTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if c, ok := t.w.(io.Closer); ok && !isStdStream(t.w) {
		return c.Close()
	}
	return nil
}

// Ensure NDJSONTransport satisfies the interface at compile time.
var _ Transport = (*NDJSONTransport)(nil)

func isStdStream(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (f == os.Stdout || f == os.Stderr)
}
