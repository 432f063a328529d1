// Package sink provides the output destinations for generated records:
// console, rolling file, Kafka, and an in-memory sink for tests.
package sink

import (
	"context"
	"io"
	"os"
	"sync"
)

// Sink delivers one serialized record, with an optional dispatch key. A key
// of "" means no key. Implementations must be safe for concurrent use; the
// dispatcher calls Send from a bounded worker pool.
type Sink interface {
	Send(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Console writes one record per line to a writer, stdout by default.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console sink. A nil writer defaults to stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) Send(_ context.Context, _ string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(payload); err != nil {
		return err
	}
	_, err := c.w.Write([]byte{'\n'})
	return err
}

func (c *Console) Close() error {
	return nil
}
