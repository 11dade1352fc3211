package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"TICK_INTERVAL", "WINDOW_LOOKBACK", "WINDOW_LOOKAHEAD", "NOTIFIER", "EMAIL_USER", "EMAIL_FROM"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, time.Minute, cfg.Scheduler.TickInterval)
	require.Equal(t, 2*time.Minute, cfg.Scheduler.Lookback)
	require.Zero(t, cfg.Scheduler.Lookahead)
	require.True(t, cfg.Scheduler.RunOnStart)
	require.Equal(t, "email", cfg.Notifier.Channel)
	require.Equal(t, 3, cfg.MaxRemindersPerSubject)
	require.NoError(t, cfg.Validate())
}

func TestLoadLookaheadPolicy(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "5m")
	t.Setenv("WINDOW_LOOKBACK", "0")
	t.Setenv("WINDOW_LOOKAHEAD", "5m")
	t.Setenv("EMAIL_USER", " sender@example.com ")
	t.Setenv("EMAIL_FROM", "")

	cfg := Load()
	require.Equal(t, 5*time.Minute, cfg.Scheduler.TickInterval)
	require.Zero(t, cfg.Scheduler.Lookback)
	require.Equal(t, 5*time.Minute, cfg.Scheduler.Lookahead)
	require.Equal(t, "sender@example.com", cfg.Notifier.EmailUser)
	require.Equal(t, "sender@example.com", cfg.Notifier.EmailFrom)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyWindow(t *testing.T) {
	t.Setenv("WINDOW_LOOKBACK", "0s")
	t.Setenv("WINDOW_LOOKAHEAD", "0s")

	cfg := Load()
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownNotifier(t *testing.T) {
	t.Setenv("NOTIFIER", "pigeon")

	cfg := Load()
	require.ErrorContains(t, cfg.Validate(), "pigeon")
}

func TestParseEnvFallbacks(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	t.Setenv("SOME_DURATION", "soon")
	t.Setenv("SOME_BOOL", "maybe")

	require.Equal(t, 7, ParseIntEnv("SOME_INT", 7))
	require.Equal(t, time.Second, ParseDurationEnv("SOME_DURATION", time.Second))
	require.False(t, ParseBoolEnv("SOME_BOOL", false))
}
