package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pathakanu/eventMemo/internal/directory"
	"github.com/pathakanu/eventMemo/internal/model"
	"github.com/pathakanu/eventMemo/internal/notify"
	"github.com/pathakanu/eventMemo/internal/reminder"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultConcurrency   = 4
	defaultNotifyTimeout = 30 * time.Second
)

// Source is the reminder storage the dispatcher reads and commits to.
type Source interface {
	FindDue(ctx context.Context, w reminder.Window, now time.Time, limit int) ([]model.Reminder, error)
	MarkSent(ctx context.Context, r model.Reminder, sentAt time.Time) error
}

// Config tunes one dispatcher.
type Config struct {
	Window reminder.Window
	// StartupLookback widens the lookback of the first run only. Zero leaves reminders
	// missed while the process was down undelivered.
	StartupLookback time.Duration
	BatchSize       int
	Concurrency     int
	NotifyTimeout   time.Duration
	// SendRate caps notifier calls per second across the tick. Zero disables the cap.
	SendRate float64
}

// Summary describes one dispatch cycle.
type Summary struct {
	Attempted int           `json:"attempted"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
	Window    string        `json:"window"`
	Error     string        `json:"error,omitempty"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

// Dispatcher runs the dispatch loop: pull the due set, deliver each reminder
// independently, commit successes.
type Dispatcher struct {
	source    Source
	directory directory.Directory
	notifier  notify.Notifier
	cfg       Config
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    logrus.FieldLogger
	now       func() time.Time
	ranOnce   atomic.Bool

	// claims holds reminders whose notifier call has not returned yet, across cycles.
	claimsMu sync.Mutex
	claims   map[string]struct{}
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records each cycle in m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(source Source, dir directory.Directory, notifier notify.Notifier, cfg Config, logger logrus.FieldLogger, opts ...Option) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}

	d := &Dispatcher{
		source:    source,
		directory: dir,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		claims:    map[string]struct{}{},
	}
	if cfg.SendRate > 0 {
		burst := int(cfg.SendRate)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunOnce performs one dispatch cycle. Cancelling ctx stops new deliveries from
// starting; deliveries already in flight run to completion or their timeout.
// A notifier call that outlives its timeout is counted as failed, and RunOnce
// still waits for it to return before finishing. A store failure while loading the due set aborts the cycle and is reported in
// Summary.Error.
func (d *Dispatcher) RunOnce(ctx context.Context) (summary Summary) {
	started := d.now()
	window := d.window()
	summary = Summary{Timestamp: started, Window: window.String()}
	defer func() {
		summary.Duration = d.now().Sub(started)
		d.metrics.observe(summary)
	}()

	log := d.logger.WithField("window", summary.Window)

	candidates, err := d.source.FindDue(ctx, window, started, d.cfg.BatchSize)
	if err != nil {
		log.WithError(err).Error("Failed to load due reminders, tick aborted")
		summary.Error = err.Error()
		return summary
	}
	due := window.Select(started, candidates)
	if len(due) == 0 {
		log.Debug("No reminders due")
		return summary
	}
	log.WithField("due", len(due)).Info("Dispatching due reminders")

	var (
		mu    sync.Mutex
		g     errgroup.Group
		calls sync.WaitGroup
	)
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeSent:
			summary.Attempted++
			summary.Sent++
		case outcomeFailed:
			summary.Attempted++
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	g.SetLimit(d.cfg.Concurrency)
	for i, r := range due {
		if ctx.Err() != nil {
			for range due[i:] {
				record(outcomeSkipped)
			}
			log.WithField("remaining", len(due)-i).Info("Shutdown requested, leaving remaining reminders for the next run")
			break
		}
		g.Go(func() error {
			record(d.process(ctx, r, &calls))
			return nil
		})
	}
	_ = g.Wait()
	calls.Wait()

	log.WithFields(logrus.Fields{
		"attempted": summary.Attempted,
		"sent":      summary.Sent,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("Processed due reminders")
	return summary
}

func (d *Dispatcher) window() reminder.Window {
	w := d.cfg.Window
	if d.ranOnce.CompareAndSwap(false, true) && d.cfg.StartupLookback > 0 {
		w = w.Widen(d.cfg.StartupLookback)
	}
	return w
}

func (d *Dispatcher) process(ctx context.Context, r model.Reminder, calls *sync.WaitGroup) (result outcome) {
	log := d.logger.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"user_id":     r.UserID,
		"event_id":    r.EventID,
	})
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", fmt.Sprint(p)).Error("Panic while dispatching reminder")
			result = outcomeFailed
		}
	}()

	if ctx.Err() != nil {
		return outcomeSkipped
	}

	msg, err := d.resolve(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeSkipped
		}
		if errors.Is(err, directory.ErrNotFound) {
			log.WithError(err).Warn("Reminder subject no longer exists, leaving it unsent")
		} else {
			log.WithError(err).Error("Failed to resolve reminder subject")
		}
		return outcomeFailed
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return outcomeSkipped
		}
	}
	if ctx.Err() != nil {
		return outcomeSkipped
	}
	if !d.claim(r.ID) {
		log.Warn("Previous delivery of this reminder has not returned, skipping")
		return outcomeSkipped
	}

	// Shutdown must not cut a delivery short, only the timeout may.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.NotifyTimeout)
	ok, abandoned := d.send(sendCtx, r.ID, msg, calls)
	cancel()
	if !abandoned {
		defer d.release(r.ID)
	}
	if !ok {
		log.Warn("Reminder delivery failed, will retry next tick")
		return outcomeFailed
	}

	if err := d.source.MarkSent(context.WithoutCancel(ctx), r, d.now()); err != nil {
		if errors.Is(err, reminder.ErrAlreadySent) {
			log.Info("Reminder was already marked sent")
			return outcomeSent
		}
		log.WithError(err).Error("Reminder delivered but not marked sent")
		return outcomeFailed
	}

	log.Info("Reminder sent successfully")
	return outcomeSent
}

func (d *Dispatcher) resolve(ctx context.Context, r model.Reminder) (notify.Message, error) {
	user, err := d.directory.GetUserByID(ctx, r.UserID)
	if err != nil {
		return notify.Message{}, err
	}
	event, err := d.directory.GetEventByID(ctx, r.EventID)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.Message{
		To:         user.Email,
		ToName:     user.Name,
		Phone:      user.Phone,
		EventTitle: event.Title,
		Note:       r.Note,
		DueAt:      r.DueAt,
	}, nil
}

// send enforces the timeout even for notifiers that ignore ctx. A call abandoned on
// timeout stays in calls and keeps the reminder claimed until it actually returns;
// otherwise the caller releases the claim once the outcome is recorded.
func (d *Dispatcher) send(ctx context.Context, id string, msg notify.Message, calls *sync.WaitGroup) (ok, abandoned bool) {
	done := make(chan bool, 1)
	var (
		mu       sync.Mutex
		finished bool
		gaveUp   bool
	)
	calls.Add(1)
	go func() {
		defer calls.Done()
		defer func() {
			mu.Lock()
			finished = true
			release := gaveUp
			mu.Unlock()
			if release {
				d.release(id)
			}
		}()
		defer func() {
			if p := recover(); p != nil {
				d.logger.WithField("panic", fmt.Sprint(p)).Error("Notifier panicked")
				done <- false
			}
		}()
		done <- d.notifier.Send(ctx, msg)
	}()

	select {
	case res := <-done:
		return res, false
	case <-ctx.Done():
		d.logger.WithField("reminder_id", id).Warn("Notifier timed out, waiting for it to return before the tick ends")
		mu.Lock()
		gaveUp = true
		returned := finished
		mu.Unlock()
		if returned {
			d.release(id)
		}
		return false, true
	}
}

func (d *Dispatcher) claim(id string) bool {
	d.claimsMu.Lock()
	defer d.claimsMu.Unlock()
	if _, busy := d.claims[id]; busy {
		return false
	}
	d.claims[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.claimsMu.Lock()
	defer d.claimsMu.Unlock()
	delete(d.claims, id)
}
