package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port          string
	DatabaseURL   string
	SQLitePath    string
	RedisURL      string
	LogLevel      string
	LogFormat     string
	LocalTimezone *time.Location

	Scheduler SchedulerConfig
	Notifier  NotifierConfig

	MaxNoteLength          int
	MaxRemindersPerSubject int
}

// SchedulerConfig controls the tick cadence, the due window and the dispatch fan-out.
type SchedulerConfig struct {
	TickInterval        time.Duration
	Lookback            time.Duration
	Lookahead           time.Duration
	StartupLookback     time.Duration
	RunOnStart          bool
	NotifyTimeout       time.Duration
	DispatchConcurrency int
	BatchSize           int
	SendRate            float64
}

// NotifierConfig holds transport credentials. Channel is "email" or "whatsapp".
type NotifierConfig struct {
	Channel string

	SMTPHost      string
	SMTPPort      int
	EmailUser     string
	EmailPassword string
	EmailFrom     string

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string

	OpenAIAPIKey string
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Local")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}

	emailUser := strings.TrimSpace(os.Getenv("EMAIL_USER"))

	return &Config{
		Port:          getenvDefault("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getenvDefault("SQLITE_PATH", "reminders.db"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		LogFormat:     getenvDefault("LOG_FORMAT", "json"),
		LocalTimezone: location,
		Scheduler: SchedulerConfig{
			TickInterval:        ParseDurationEnv("TICK_INTERVAL", time.Minute),
			Lookback:            ParseDurationEnv("WINDOW_LOOKBACK", 2*time.Minute),
			Lookahead:           ParseDurationEnv("WINDOW_LOOKAHEAD", 0),
			StartupLookback:     ParseDurationEnv("STARTUP_LOOKBACK", 0),
			RunOnStart:          ParseBoolEnv("RUN_ON_START", true),
			NotifyTimeout:       ParseDurationEnv("NOTIFY_TIMEOUT", 30*time.Second),
			DispatchConcurrency: ParseIntEnv("DISPATCH_CONCURRENCY", 4),
			BatchSize:           ParseIntEnv("DISPATCH_BATCH_SIZE", 500),
			SendRate:            ParseFloatEnv("SEND_RATE", 5),
		},
		Notifier: NotifierConfig{
			Channel:              strings.ToLower(getenvDefault("NOTIFIER", "email")),
			SMTPHost:             getenvDefault("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:             ParseIntEnv("SMTP_PORT", 587),
			EmailUser:            emailUser,
			EmailPassword:        strings.TrimSpace(os.Getenv("EMAIL_PASSWORD")),
			EmailFrom:            getenvDefault("EMAIL_FROM", emailUser),
			TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
			OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		},
		MaxNoteLength:          ParseIntEnv("MAX_NOTE_LENGTH", 500),
		MaxRemindersPerSubject: ParseIntEnv("MAX_REMINDERS_PER_SUBJECT", 3),
	}
}

// Validate reports settings the scheduler cannot run with.
func (c *Config) Validate() error {
	s := c.Scheduler
	var errs []error
	if s.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be positive, got %s", s.TickInterval))
	}
	if s.Lookback < 0 || s.Lookahead < 0 || s.StartupLookback < 0 {
		errs = append(errs, errors.New("window durations must not be negative"))
	}
	if s.Lookback == 0 && s.Lookahead == 0 {
		errs = append(errs, errors.New("WINDOW_LOOKBACK and WINDOW_LOOKAHEAD are both zero"))
	}
	if s.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", s.NotifyTimeout))
	}
	if c.MaxRemindersPerSubject <= 0 {
		errs = append(errs, fmt.Errorf("MAX_REMINDERS_PER_SUBJECT must be positive, got %d", c.MaxRemindersPerSubject))
	}
	switch c.Notifier.Channel {
	case "email", "whatsapp":
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier.Channel))
	}
	return errors.Join(errs...)
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseFloatEnv returns the float value for an environment variable or the provided default.
func ParseFloatEnv(key string, def float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as float: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseDurationEnv accepts Go duration strings ("90s", "2m"). A bare "0" is zero.
func ParseDurationEnv(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as duration: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseBoolEnv returns the boolean value for an environment variable or the provided default.
func ParseBoolEnv(key string, def bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as bool: %v", key, value, err)
		return def
	}
	return parsed
}
