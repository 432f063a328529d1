// Package producer owns the lifecycle of a single paced record producer:
// schema compilation at construction, the scheduler goroutine, dispatch, and
// the start/stop/pause/resume/update-rate control surface.
package producer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"streamgen/internal/dictionary"
	"streamgen/internal/dispatch"
	"streamgen/internal/keys"
	"streamgen/internal/models"
	"streamgen/internal/scheduler"
	"streamgen/internal/schema"
	"streamgen/pkg/metrics"
	"streamgen/pkg/sink"
)

// Options carries the injectable collaborators of a controller. Clock and
// Rand default to wall clock and a time-seeded source; tests inject their own
// for determinism.
type Options struct {
	Clock      func() time.Time
	Rand       *rand.Rand
	Quarantine dispatch.Quarantiner
	Dispatch   dispatch.Config
	Metrics    *metrics.Metrics
	Logger     *log.Entry
}

// Controller is the state machine orchestrating one producer. The schema is
// compiled exactly once, at construction; control operations never recompile
// it. Control operations are serialized by a single mutex held only for the
// transition; status reads use atomics and never block the generation path.
type Controller struct {
	cfg    models.ProducerConfig
	gen    *schema.Generator
	keyFn  keys.KeyFunc
	snk    sink.Sink
	quar   dispatch.Quarantiner
	clock  func() time.Time
	logger *log.Entry
	dcfg   dispatch.Config
	mtr    *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// Tap observes each successfully delivered payload, best-effort. It is
	// wired into the dispatcher on start and must be set before Start.
	Tap func(payload []byte)

	sched     atomic.Pointer[scheduler.Scheduler]
	disp      atomic.Pointer[dispatch.Dispatcher]
	cadence   atomic.Pointer[models.CadenceConfig]
	status    atomic.Value // models.Status
	startedAt atomic.Int64 // unix nanos, 0 when never started
	lastErr   atomic.Pointer[string]
}

type nopQuarantine struct{}

func (nopQuarantine) Add(string, []byte) {}

// New compiles the producer configuration and builds a stopped controller.
// Compilation failures are fatal: a ConfigError here means the producer never
// reaches the running state.
func New(cfg models.ProducerConfig, dicts *dictionary.Store, snk sink.Sink, opts Options) (*Controller, error) {
	if cfg.Name == "" {
		return nil, &models.ConfigError{Reason: "producer name must not be empty"}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Quarantine == nil {
		opts.Quarantine = nopQuarantine{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("producer", cfg.Name)
	}

	gen, err := schema.Compile(cfg.Fields, dicts, opts.Rand, opts.Clock)
	if err != nil {
		return nil, err
	}
	keyFn, err := keys.Compile(cfg.Key, cfg.Fields, opts.Clock)
	if err != nil {
		return nil, err
	}
	// Validate the cadence up front; the scheduler itself is built on start.
	if _, err := cfg.Cadence.Period(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:    cfg,
		gen:    gen,
		keyFn:  keyFn,
		snk:    snk,
		quar:   opts.Quarantine,
		clock:  opts.Clock,
		logger: opts.Logger,
		dcfg:   opts.Dispatch,
		mtr:    opts.Metrics,
	}
	cadence := cfg.Cadence
	c.cadence.Store(&cadence)
	c.status.Store(models.StatusStopped)
	return c, nil
}

// Start moves Stopped to Running with counters reset, or resumes a Paused
// producer without touching counters. Any other state is a StateError.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch st := c.currentStatus(); st {
	case models.StatusPaused:
		c.sched.Load().Resume()
		c.setStatus(models.StatusRunning)
		c.logger.Info("producer resumed")
		return nil
	case models.StatusStopped:
	default:
		return &models.StateError{Op: "start", State: st}
	}

	sched, err := scheduler.New(*c.cadence.Load(), c.clock)
	if err != nil {
		return err
	}
	sched.OnSkip = c.noteSkipped
	disp := dispatch.New(c.snk, c.cfg.Sink.Type, c.quar, c.dcfg, c.logger)
	disp.OnError = c.setLastError
	disp.Metrics = c.mtr
	disp.Tap = c.Tap
	c.sched.Store(sched)
	c.disp.Store(disp)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.startedAt.Store(c.clock().UnixNano())
	c.lastErr.Store(nil)
	c.setStatus(models.StatusRunning)

	go c.run(ctx, sched, c.done)
	c.logger.WithField("cadence", c.cadence.Load().String()).Info("producer started")
	return nil
}

func (c *Controller) run(ctx context.Context, sched *scheduler.Scheduler, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("scheduler loop panic: %v", r)
			c.setLastError(reason)
			c.setStatus(models.StatusFailed)
			c.logger.Error(reason)
		}
	}()
	sched.Run(ctx, c.tickOnce)
}

// tickOnce generates and dispatches exactly one record. It runs on the
// scheduler goroutine; a generation failure is quarantined and the schedule
// continues.
func (c *Controller) tickOnce(ctx context.Context) {
	disp := c.disp.Load()
	record, err := c.gen.Generate()
	if err != nil {
		disp.DropGeneration(err)
		return
	}
	key, _ := c.keyFn(record)
	disp.Dispatch(ctx, record, key)
}

// Pause freezes tick issue. Counters are frozen because no ticks run; state
// is retained for resumption.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.currentStatus(); st != models.StatusRunning {
		return &models.StateError{Op: "pause", State: st}
	}
	c.sched.Load().Pause()
	c.setStatus(models.StatusPaused)
	c.logger.Info("producer paused")
	return nil
}

// Resume releases a paused producer. Deadlines realign; the paused window is
// not caught up.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.currentStatus(); st != models.StatusPaused {
		return &models.StateError{Op: "resume", State: st}
	}
	c.sched.Load().Resume()
	c.setStatus(models.StatusRunning)
	c.logger.Info("producer resumed")
	return nil
}

// Stop halts the schedule and waits for in-flight dispatches up to the grace
// timeout; dispatches still pending after that are quarantined as aborted on
// stop. Stop is also the only operation accepted from Failed.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch st := c.currentStatus(); st {
	case models.StatusStopped:
		return &models.StateError{Op: "stop", State: st}
	case models.StatusFailed:
		c.setStatus(models.StatusStopped)
		return nil
	}

	// Cancellation unblocks the scheduler whether it is sleeping toward a
	// deadline or parked in the pause gate.
	c.cancel()
	<-c.done
	c.disp.Load().Stop()
	c.setStatus(models.StatusStopped)
	c.logger.Info("producer stopped")
	return nil
}

// UpdateRate hot-swaps the cadence of a running or paused producer. The new
// period takes effect at the next tick boundary; counters and state are
// untouched.
func (c *Controller) UpdateRate(cadence models.CadenceConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.currentStatus(); st != models.StatusRunning && st != models.StatusPaused {
		return &models.StateError{Op: "update rate", State: st}
	}
	period, err := cadence.Period()
	if err != nil {
		return err
	}
	c.sched.Load().SetPeriod(period)
	c.cadence.Store(&cadence)
	c.logger.WithField("cadence", cadence.String()).Info("cadence updated")
	return nil
}

// Run starts the producer and blocks until the context is cancelled, then
// stops it. Convenience for the run CLI verb.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	if err := c.Stop(); err != nil {
		return err
	}
	return nil
}

// Status returns a read-only snapshot of the runtime state. It reads only
// atomics and never blocks on the generation or dispatch path.
func (c *Controller) Status() models.RuntimeState {
	st := c.currentStatus()
	state := models.RuntimeState{
		Name:   c.cfg.Name,
		Status: st,
		Sink:   c.cfg.Sink.Type,
	}
	if disp := c.disp.Load(); disp != nil {
		state.ProducedCount, state.DispatchedCount, state.DroppedCount = disp.Counts()
	}
	if sched := c.sched.Load(); sched != nil {
		state.SkippedTicks = sched.SkippedTicks()
	}
	if errp := c.lastErr.Load(); errp != nil {
		state.LastError = *errp
	}
	cadence := c.cadence.Load()
	state.Cadence = cadence.String()
	state.EffectiveRate = cadence.EffectiveRate()
	if started := c.startedAt.Load(); started != 0 {
		state.StartedAt = time.Unix(0, started)
		if st == models.StatusRunning || st == models.StatusPaused {
			state.UptimeSeconds = int64(c.clock().Sub(state.StartedAt).Seconds())
		}
	}
	return state
}

// Healthy reports whether the controller is in a live state.
func (c *Controller) Healthy() bool {
	return c.currentStatus() != models.StatusFailed
}

// Name returns the producer name.
func (c *Controller) Name() string {
	return c.cfg.Name
}

func (c *Controller) currentStatus() models.Status {
	return c.status.Load().(models.Status)
}

func (c *Controller) setStatus(st models.Status) {
	c.status.Store(st)
	if c.mtr != nil {
		if st == models.StatusRunning {
			c.mtr.ProducerUp.Set(1)
		} else {
			c.mtr.ProducerUp.Set(0)
		}
	}
}

func (c *Controller) setLastError(reason string) {
	c.lastErr.Store(&reason)
}

func (c *Controller) noteSkipped(n uint64) {
	if c.mtr != nil {
		c.mtr.TicksSkipped.Add(float64(n))
	}
}
