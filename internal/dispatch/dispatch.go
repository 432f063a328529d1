// Package dispatch delivers generated records to the configured sink with
// bounded concurrency, retry, and quarantine on failure.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	"streamgen/internal/models"
	"streamgen/pkg/metrics"
	"streamgen/pkg/sink"
)

// Quarantiner receives records that could not be generated or delivered.
type Quarantiner interface {
	Add(reason string, payload []byte)
}

// Config tunes the dispatcher.
type Config struct {
	// MaxInFlight is the backpressure ceiling on concurrent deliveries.
	MaxInFlight int
	// SlotTimeout bounds how long a tick blocks waiting for a delivery slot
	// before the record is quarantined as a timeout failure.
	SlotTimeout time.Duration
	// RetryAttempts and RetryDelay control per-delivery retry before the
	// record is quarantined.
	RetryAttempts uint
	RetryDelay    time.Duration
	// StopGrace bounds how long Stop waits for in-flight deliveries before
	// cancelling them.
	StopGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 4
	}
	if c.SlotTimeout <= 0 {
		c.SlotTimeout = 5 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 10 * time.Second
	}
	return c
}

// Dispatcher hands records from the scheduler goroutine to a bounded pool of
// delivery workers. The scheduler blocks while no slot is free, which is the
// natural backpressure against a slow sink. Counters are atomic so that
// status polling never contends with the delivery path.
type Dispatcher struct {
	sink     sink.Sink
	sinkType models.SinkType
	quar     Quarantiner
	cfg      Config
	logger   *log.Entry

	slots  chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	produced   atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64

	// OnError receives the reason of each failure, for last_error reporting.
	// Tap receives each successfully delivered payload, best-effort.
	// Both must be set before the first Dispatch call.
	OnError func(reason string)
	Tap     func(payload []byte)
	Metrics *metrics.Metrics
}

// New creates a dispatcher delivering to snk. quar must not be nil.
func New(snk sink.Sink, sinkType models.SinkType, quar Quarantiner, cfg Config, logger *log.Entry) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sink:     snk,
		sinkType: sinkType,
		quar:     quar,
		cfg:      cfg,
		logger:   logger,
		slots:    make(chan struct{}, cfg.MaxInFlight),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Counts returns the produced, dispatched and dropped counters. produced is
// always the sum of dispatched, dropped, and deliveries still in flight.
func (d *Dispatcher) Counts() (produced, dispatched, dropped uint64) {
	return d.produced.Load(), d.dispatched.Load(), d.dropped.Load()
}

// DropGeneration records a tick whose generation failed: the attempt is
// counted and the failure quarantined, and the scheduler continues.
func (d *Dispatcher) DropGeneration(err error) {
	d.produced.Add(1)
	if d.Metrics != nil {
		d.Metrics.RecordsProduced.Inc()
	}
	d.drop(err.Error(), nil)
}

// Dispatch serializes the record and hands it to a delivery worker. It runs
// on the scheduler goroutine and blocks while the in-flight ceiling is
// reached, up to the slot timeout. key is "" when no key was derived.
func (d *Dispatcher) Dispatch(ctx context.Context, record *models.Record, key string) {
	d.produced.Add(1)
	if d.Metrics != nil {
		d.Metrics.RecordsProduced.Inc()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		d.drop(fmt.Sprintf("serialization failed: %v", err), nil)
		return
	}
	if d.Metrics != nil {
		d.Metrics.RecordSize.Observe(float64(len(payload)))
	}

	select {
	case d.slots <- struct{}{}:
	case <-time.After(d.cfg.SlotTimeout):
		d.drop(fmt.Sprintf("dispatch timeout: no delivery slot free within %s", d.cfg.SlotTimeout), payload)
		return
	case <-ctx.Done():
		d.drop("aborted on stop", payload)
		return
	}

	d.wg.Add(1)
	go d.deliver(key, payload)
}

func (d *Dispatcher) deliver(key string, payload []byte) {
	defer d.wg.Done()
	defer func() { <-d.slots }()

	start := time.Now()
	err := retry.Do(
		func() error {
			return d.sink.Send(d.ctx, key, payload)
		},
		retry.Attempts(d.cfg.RetryAttempts),
		retry.Delay(d.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool {
			return d.ctx.Err() == nil
		}),
	)
	if d.Metrics != nil {
		d.Metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if d.Metrics != nil {
			d.Metrics.SinkErrors.Inc()
		}
		reason := "aborted on stop"
		if d.ctx.Err() == nil {
			dispatchErr := &models.DispatchError{Sink: d.sinkType, Reason: "send failed", Err: err}
			reason = dispatchErr.Error()
		}
		d.drop(reason, payload)
		return
	}

	d.dispatched.Add(1)
	if d.Metrics != nil {
		d.Metrics.RecordsDispatched.Inc()
	}
	if d.Tap != nil {
		d.Tap(payload)
	}
}

func (d *Dispatcher) drop(reason string, payload []byte) {
	d.dropped.Add(1)
	if d.Metrics != nil {
		d.Metrics.RecordsDropped.Inc()
	}
	d.quar.Add(reason, payload)
	if d.OnError != nil {
		d.OnError(reason)
	}
	d.logger.WithField("reason", reason).Debug("record quarantined")
}

// Stop waits for in-flight deliveries up to the grace timeout, then cancels
// them. Cancelled deliveries observe the cancellation cooperatively and are
// quarantined as aborted on stop; nothing is forcibly killed.
func (d *Dispatcher) Stop() {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.cfg.StopGrace):
		d.cancel()
		<-done
	}
	d.cancel()
}
