package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/eventMemo/internal/cache"
	"github.com/pathakanu/eventMemo/internal/config"
	"github.com/pathakanu/eventMemo/internal/database"
	"github.com/pathakanu/eventMemo/internal/directory"
	"github.com/pathakanu/eventMemo/internal/dispatch"
	"github.com/pathakanu/eventMemo/internal/logging"
	"github.com/pathakanu/eventMemo/internal/notify"
	myopenai "github.com/pathakanu/eventMemo/internal/openai"
	"github.com/pathakanu/eventMemo/internal/reminder"
	"github.com/pathakanu/eventMemo/internal/scheduler"
	"github.com/pathakanu/eventMemo/internal/server"
	"github.com/pathakanu/eventMemo/internal/twilio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "eventMemo",
		Short:         "Email reminders for followed events",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the reminder scheduler and the ops HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "dispatch",
			Short: "Run one dispatch cycle and print its summary",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runDispatchOnce(cmd.Context())
			},
		},
		newRemindersCommand(),
	)
	return root
}

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	redis     *redis.Client
	directory *directory.GormDirectory
	reminders *reminder.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, directory: directory.NewGormDirectory(db)}

	opts := []reminder.ServiceOption{reminder.WithMaxNoteLength(cfg.MaxNoteLength)}
	if cfg.RedisURL != "" {
		client, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Reminder list cache disabled")
		} else {
			a.redis = client
			opts = append(opts, reminder.WithListCache(cache.NewRedisListCache(client, logger)))
		}
	}

	store := reminder.NewGormStore(db, cfg.MaxRemindersPerSubject)
	a.reminders = reminder.NewService(store, a.directory, logger, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// notifier builds the configured transport. Missing credentials are reported once
// and yield a disabled notifier rather than an error.
func (a *app) notifier() (notify.Notifier, bool) {
	nc := a.cfg.Notifier
	switch nc.Channel {
	case "whatsapp":
		client, err := twilio.New(nc.TwilioAccountSID, nc.TwilioAuthToken, nc.TwilioWhatsAppNumber, a.cfg.Scheduler.NotifyTimeout)
		if err != nil {
			a.logger.WithError(err).Error("WhatsApp delivery disabled")
			return notify.Disabled{Logger: a.logger}, false
		}
		return notify.NewWhatsAppNotifier(client, a.cfg.LocalTimezone, a.logger), true
	default:
		n, err := notify.NewEmailNotifier(notify.EmailConfig{
			Host:     nc.SMTPHost,
			Port:     nc.SMTPPort,
			Username: nc.EmailUser,
			Password: nc.EmailPassword,
			From:     nc.EmailFrom,
			Location: a.cfg.LocalTimezone,
		}, myopenai.New(nc.OpenAIAPIKey), a.logger)
		if err != nil {
			a.logger.WithError(err).Error("Email delivery disabled")
			return notify.Disabled{Logger: a.logger}, false
		}
		return n, true
	}
}

func (a *app) dispatcher(notifier notify.Notifier, metrics *dispatch.Metrics) *dispatch.Dispatcher {
	sc := a.cfg.Scheduler
	return dispatch.New(a.reminders, a.directory, notifier, dispatch.Config{
		Window:          reminder.Window{Lookback: sc.Lookback, Lookahead: sc.Lookahead},
		StartupLookback: sc.StartupLookback,
		BatchSize:       sc.BatchSize,
		Concurrency:     sc.DispatchConcurrency,
		NotifyTimeout:   sc.NotifyTimeout,
		SendRate:        sc.SendRate,
	}, a.logger, dispatch.WithMetrics(metrics))
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := dispatch.MustNewMetrics(registry)

	notifier, enabled := a.notifier()
	driver := scheduler.New(a.dispatcher(notifier, metrics), scheduler.Config{
		Interval:   a.cfg.Scheduler.TickInterval,
		RunOnStart: a.cfg.Scheduler.RunOnStart,
	}, a.logger, scheduler.WithSkipRecorder(metrics))

	if enabled {
		if err := driver.Start(); err != nil {
			return fmt.Errorf("scheduler start: %w", err)
		}
	} else {
		a.logger.Warn("Reminder scheduler not started: delivery is disabled")
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           server.NewRouter(driver, registry, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Infof("ops server starting on :%s", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Fatal("ops server error")
		}
	}()

	waitForShutdown(srv, driver, a.logger)
	return nil
}

func waitForShutdown(srv *http.Server, driver *scheduler.Driver, logger logrus.FieldLogger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("ops server shutdown error")
	}
	if err := driver.Stop(ctx); err != nil {
		logger.WithError(err).Error("scheduler shutdown error")
	}
}

func runDispatchOnce(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	notifier, enabled := a.notifier()
	if !enabled {
		return errors.New("delivery is disabled, check notifier credentials")
	}

	summary := a.dispatcher(notifier, nil).RunOnce(ctx)
	return printJSON(summary)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
