// Package quarantine keeps an append-only record of generation and dispatch
// failures, separate from the main output stream.
package quarantine

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"streamgen/pkg/sink"
)

// Entry is one quarantined failure: the failure time, the reason, and the
// serialized record that could not be delivered (null when serialization
// itself failed).
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Producer  string          `json:"producer"`
	Reason    string          `json:"reason"`
	Payload   json.RawMessage `json:"payload"`
}

// Config controls where quarantine segments are written and for how long
// they are retained.
type Config struct {
	Directory string
	Rolling   sink.Rolling
	MaxAge    time.Duration
}

// Log writes quarantine entries as one JSON object per line into rotating
// segments. Writes are best-effort: a failed quarantine write is logged and
// ignored, it never propagates to the controller.
type Log struct {
	producer string
	writer   *sink.RollingWriter
	clock    func() time.Time
	logger   *log.Entry
}

// New opens a quarantine log for the named producer.
func New(producer string, cfg Config, clock func() time.Time) (*Log, error) {
	if clock == nil {
		clock = time.Now
	}
	w, err := sink.NewRollingWriter(cfg.Directory, "errors", ".jsonl", cfg.Rolling, clock)
	if err != nil {
		return nil, err
	}
	return &Log{
		producer: producer,
		writer:   w,
		clock:    clock,
		logger:   log.WithField("producer", producer),
	}, nil
}

// Add appends one entry. payload is the serialized record, or nil when the
// record could not be serialized.
func (q *Log) Add(reason string, payload []byte) {
	entry := Entry{
		Timestamp: q.clock(),
		Producer:  q.producer,
		Reason:    reason,
		Payload:   payload,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		q.logger.WithError(err).Warn("failed to encode quarantine entry")
		return
	}
	if err := q.writer.WriteLine(line); err != nil {
		q.logger.WithError(err).Warn("failed to write quarantine entry")
	}
}

// Sweep deletes segments older than the retention window.
func (q *Log) Sweep(maxAge time.Duration) {
	removed, err := q.writer.SweepOlderThan(maxAge)
	if err != nil {
		q.logger.WithError(err).Warn("quarantine sweep failed")
		return
	}
	if removed > 0 {
		q.logger.WithField("removed", removed).Info("pruned old quarantine segments")
	}
}

// RunSweeper prunes old segments on the given interval until the context is
// cancelled.
func (q *Log) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Sweep(maxAge)
		}
	}
}

// Close closes the active segment.
func (q *Log) Close() error {
	return q.writer.Close()
}
