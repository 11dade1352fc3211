package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pathakanu/eventMemo/internal/dispatch"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyRunning is returned by Start on a running driver.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrNotRunning is returned by TriggerNow on a stopped driver.
	ErrNotRunning = errors.New("scheduler not running")
)

// State is the driver lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Runner executes one dispatch cycle. *dispatch.Dispatcher implements it.
type Runner interface {
	RunOnce(ctx context.Context) dispatch.Summary
}

// SkipRecorder is told about ticks dropped by the overlap guard.
type SkipRecorder interface {
	TickSkipped()
}

// Config controls the driver cadence.
type Config struct {
	Interval   time.Duration
	RunOnStart bool
}

// Driver fires the Runner on a fixed period. At most one cycle runs at a time:
// a tick that comes due while the previous one is still running is skipped.
type Driver struct {
	runner Runner
	cfg    Config
	logger logrus.FieldLogger
	skips  SkipRecorder

	mu       sync.Mutex
	state    State
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	// inflight is replaced on every Start. A Stop that gave up waiting may
	// still hold the previous one.
	inflight *sync.WaitGroup

	// busy is the idle/running tick flag. Only tick transitions it.
	busy    atomic.Bool
	skipped atomic.Int64
	last    atomic.Pointer[dispatch.Summary]
}

// Option customises a Driver.
type Option func(*Driver)

// WithSkipRecorder reports skipped ticks to r.
func WithSkipRecorder(r SkipRecorder) Option {
	return func(d *Driver) { d.skips = r }
}

func New(runner Runner, cfg Config, logger logrus.FieldLogger, opts ...Option) *Driver {
	d := &Driver{runner: runner, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start registers the periodic tick and, if configured, runs one cycle immediately.
func (d *Driver) Start() error {
	if d.cfg.Interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", d.cfg.Interval)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateRunning {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{d.logger})))
	c.Schedule(cron.Every(d.cfg.Interval), cron.FuncJob(func() {
		d.tick(ctx, "periodic")
	}))
	c.Start()

	inflight := &sync.WaitGroup{}
	d.ctx, d.cancel, d.cron, d.inflight = ctx, cancel, c, inflight
	d.state = StateRunning

	if d.cfg.RunOnStart {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			d.tick(ctx, "startup")
		}()
	}

	d.logger.WithField("interval", d.cfg.Interval).Info("Reminder scheduler started")
	return nil
}

// Stop prevents new ticks and new deliveries, then waits for the in-flight tick to finish
// or ctx to end.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateStopped {
		d.mu.Unlock()
		return nil
	}
	d.state = StateStopped
	d.cancel()
	cronDone := d.cron.Stop()
	inflight := d.inflight
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-cronDone.Done()
		inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.logger.Info("Reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: drain interrupted: %w", ctx.Err())
	}
}

// TriggerNow runs one cycle synchronously through the same overlap guard as the
// periodic tick. ran is false when a cycle was already running.
func (d *Driver) TriggerNow(ctx context.Context) (summary dispatch.Summary, ran bool, err error) {
	d.mu.Lock()
	if d.state != StateRunning {
		d.mu.Unlock()
		return dispatch.Summary{}, false, ErrNotRunning
	}
	driverCtx, inflight := d.ctx, d.inflight
	inflight.Add(1)
	d.mu.Unlock()
	defer inflight.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(driverCtx, cancel)
	defer stop()

	summary, ran = d.tick(ctx, "manual")
	return summary, ran, nil
}

func (d *Driver) tick(ctx context.Context, trigger string) (dispatch.Summary, bool) {
	log := d.logger.WithField("trigger", trigger)
	if !d.busy.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		if d.skips != nil {
			d.skips.TickSkipped()
		}
		log.Warn("Previous dispatch still running, tick skipped")
		return dispatch.Summary{}, false
	}
	defer d.busy.Store(false)

	if ctx.Err() != nil {
		return dispatch.Summary{}, false
	}

	summary := d.runner.RunOnce(ctx)
	d.last.Store(&summary)
	return summary, true
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Busy reports whether a cycle is running right now.
func (d *Driver) Busy() bool {
	return d.busy.Load()
}

// Skipped is the number of ticks dropped by the overlap guard since creation.
func (d *Driver) Skipped() int64 {
	return d.skipped.Load()
}

// LastSummary returns the result of the most recent completed cycle.
func (d *Driver) LastSummary() (dispatch.Summary, bool) {
	s := d.last.Load()
	if s == nil {
		return dispatch.Summary{}, false
	}
	return *s, true
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error("cron: " + msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
