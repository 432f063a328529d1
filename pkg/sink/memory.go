package sink

import (
	"context"
	"sync"
)

// Message is one delivery captured by the Memory sink.
type Message struct {
	Key     string
	Payload []byte
}

// Memory is an in-memory sink for tests and dry runs. It can be told to fail
// every delivery with a fixed error.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	failWith error
}

func NewMemory() *Memory {
	return &Memory{}
}

// Fail makes every subsequent Send return err. Pass nil to restore delivery.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *Memory) Send(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.messages = append(m.messages, Message{Key: key, Payload: buf})
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Messages returns a copy of everything delivered so far.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of delivered messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
