package models

import "time"

// Status is the lifecycle state of a producer controller.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusFailed  Status = "failed"
)

// RuntimeState is a point-in-time snapshot of a running producer, as returned
// by the status operation and the monitoring API.
type RuntimeState struct {
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	Sink            SinkType  `json:"sink"`
	ProducedCount   uint64    `json:"produced_count"`
	DispatchedCount uint64    `json:"dispatched_count"`
	DroppedCount    uint64    `json:"dropped_count"`
	SkippedTicks    uint64    `json:"skipped_ticks"`
	LastError       string    `json:"last_error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	EffectiveRate   float64   `json:"current_rate"`
	Cadence         string    `json:"cadence"`
}
