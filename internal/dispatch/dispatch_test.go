package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgen/internal/models"
	"streamgen/pkg/sink"
)

// memoryQuarantine captures quarantined records for assertions.
type memoryQuarantine struct {
	mu      sync.Mutex
	entries []string
}

func (q *memoryQuarantine) Add(reason string, _ []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, reason)
}

func (q *memoryQuarantine) reasons() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.entries...)
}

func testRecord(id int64) *models.Record {
	record := models.NewRecord(1)
	record.Set("id", id)
	return record
}

func TestDispatchDeliversWithKey(t *testing.T) {
	mem := sink.NewMemory()
	quar := &memoryQuarantine{}
	d := New(mem, models.SinkMemory, quar, Config{}, nil)

	d.Dispatch(context.Background(), testRecord(7), "7")
	d.Stop()

	require.Equal(t, 1, mem.Len())
	msg := mem.Messages()[0]
	assert.Equal(t, "7", msg.Key)
	assert.JSONEq(t, `{"id":7}`, string(msg.Payload))

	produced, dispatched, dropped := d.Counts()
	assert.Equal(t, uint64(1), produced)
	assert.Equal(t, uint64(1), dispatched)
	assert.Zero(t, dropped)
	assert.Empty(t, quar.reasons())
}

func TestDispatchRetriesTransientFailure(t *testing.T) {
	attempts := 0
	flaky := &funcSink{send: func(context.Context, string, []byte) error {
		attempts++
		if attempts < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}}
	quar := &memoryQuarantine{}
	d := New(flaky, models.SinkKafka, quar, Config{RetryAttempts: 3, RetryDelay: time.Millisecond}, nil)

	d.Dispatch(context.Background(), testRecord(1), "")
	d.Stop()

	assert.Equal(t, 3, attempts, "delivery must be retried until it succeeds")
	_, dispatched, dropped := d.Counts()
	assert.Equal(t, uint64(1), dispatched)
	assert.Zero(t, dropped)
}

func TestDispatchQuarantinesAfterRetriesExhausted(t *testing.T) {
	mem := sink.NewMemory()
	mem.Fail(errors.New("disk full"))
	quar := &memoryQuarantine{}

	var lastErr string
	d := New(mem, models.SinkFile, quar, Config{RetryAttempts: 2, RetryDelay: time.Millisecond}, nil)
	d.OnError = func(reason string) { lastErr = reason }

	const n = 5
	for i := 0; i < n; i++ {
		d.Dispatch(context.Background(), testRecord(int64(i)), "")
	}
	d.Stop()

	produced, dispatched, dropped := d.Counts()
	assert.Equal(t, uint64(n), produced)
	assert.Zero(t, dispatched)
	assert.Equal(t, uint64(n), dropped, "every failed delivery must be dropped")
	assert.Len(t, quar.reasons(), n, "every dropped record must be quarantined")
	assert.Contains(t, lastErr, "disk full")
	assert.Contains(t, lastErr, string(models.SinkFile), "the reason names the failing sink")
}

func TestDropGenerationCountsTheAttempt(t *testing.T) {
	quar := &memoryQuarantine{}
	d := New(sink.NewMemory(), models.SinkMemory, quar, Config{}, nil)

	d.DropGeneration(errors.New("dictionary \"ships\" is empty"))
	d.Stop()

	produced, dispatched, dropped := d.Counts()
	assert.Equal(t, uint64(1), produced, "a failed generation still counts as produced")
	assert.Zero(t, dispatched)
	assert.Equal(t, uint64(1), dropped)
	require.Len(t, quar.reasons(), 1)
	assert.Contains(t, quar.reasons()[0], "empty")
}

func TestSlotTimeoutDropsWhenSinkStalls(t *testing.T) {
	release := make(chan struct{})
	stalled := &funcSink{send: func(ctx context.Context, _ string, _ []byte) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	quar := &memoryQuarantine{}
	d := New(stalled, models.SinkKafka, quar, Config{
		MaxInFlight: 1,
		SlotTimeout: 20 * time.Millisecond,
		StopGrace:   50 * time.Millisecond,
	}, nil)

	d.Dispatch(context.Background(), testRecord(1), "") // occupies the only slot
	d.Dispatch(context.Background(), testRecord(2), "") // times out waiting for it

	close(release)
	d.Stop()

	produced, dispatched, dropped := d.Counts()
	assert.Equal(t, uint64(2), produced)
	assert.Equal(t, uint64(1), dispatched)
	assert.Equal(t, uint64(1), dropped)
	require.Len(t, quar.reasons(), 1)
	assert.Contains(t, quar.reasons()[0], "dispatch timeout")
}

func TestStopCancelsStuckDeliveries(t *testing.T) {
	stuck := &funcSink{send: func(ctx context.Context, _ string, _ []byte) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	quar := &memoryQuarantine{}
	d := New(stuck, models.SinkKafka, quar, Config{
		MaxInFlight: 1,
		StopGrace:   20 * time.Millisecond,
	}, nil)

	d.Dispatch(context.Background(), testRecord(1), "")

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the grace period")
	}

	_, dispatched, dropped := d.Counts()
	assert.Zero(t, dispatched)
	assert.Equal(t, uint64(1), dropped)
	require.Len(t, quar.reasons(), 1)
	assert.Equal(t, "aborted on stop", quar.reasons()[0])
}

func TestTapSeesDeliveredPayloads(t *testing.T) {
	var mu sync.Mutex
	var tapped [][]byte
	d := New(sink.NewMemory(), models.SinkMemory, &memoryQuarantine{}, Config{}, nil)
	d.Tap = func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		tapped = append(tapped, payload)
	}

	d.Dispatch(context.Background(), testRecord(1), "")
	d.Dispatch(context.Background(), testRecord(2), "")
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, tapped, 2)
}

// funcSink adapts a function to the Sink interface.
type funcSink struct {
	send func(ctx context.Context, key string, payload []byte) error
}

func (f *funcSink) Send(ctx context.Context, key string, payload []byte) error {
	return f.send(ctx, key, payload)
}

func (f *funcSink) Close() error { return nil }
