package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// previewLength is the note length above which a one-line summary is shown as preheader.
const previewLength = 80

// Summarizer shortens a long note into one line.
type Summarizer interface {
	SummarizeNote(ctx context.Context, note string) (string, error)
}

// EmailConfig describes the SMTP submission account.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Location *time.Location
}

// mailSender is the part of the go-mail client the notifier uses.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier delivers reminders over SMTP.
type EmailNotifier struct {
	cfg        EmailConfig
	summarizer Summarizer
	logger     logrus.FieldLogger
	newSender  func() (mailSender, error)
}

// NewEmailNotifier fails with ErrNotConfigured when the account credentials are absent.
// summarizer may be nil.
func NewEmailNotifier(cfg EmailConfig, summarizer Summarizer, logger logrus.FieldLogger) (*EmailNotifier, error) {
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("email: %w: EMAIL_USER or EMAIL_PASSWORD is empty", ErrNotConfigured)
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	n := &EmailNotifier{cfg: cfg, summarizer: summarizer, logger: logger}
	n.newSender = n.dial
	return n, nil
}

// go-mail clients hold connection state, so each send gets its own.
func (n *EmailNotifier) dial() (mailSender, error) {
	return mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
}

func (n *EmailNotifier) Send(ctx context.Context, msg Message) bool {
	log := n.logger.WithFields(logrus.Fields{"to": msg.To, "event": msg.EventTitle})
	if strings.TrimSpace(msg.To) == "" {
		log.Warn("Recipient has no email address")
		return false
	}

	m, err := n.buildMessage(ctx, msg)
	if err != nil {
		log.WithError(err).Error("Failed to build reminder email")
		return false
	}

	sender, err := n.newSender()
	if err != nil {
		log.WithError(err).Error("Failed to create SMTP client")
		return false
	}
	if err := sender.DialAndSendWithContext(ctx, m); err != nil {
		log.WithError(err).Warn("Failed to send reminder email")
		return false
	}

	log.Info("Reminder email sent")
	return true
}

func (n *EmailNotifier) buildMessage(ctx context.Context, msg Message) (*mail.Msg, error) {
	rendered, err := RenderEmail(msg, n.cfg.Location, n.preheader(ctx, msg.Note))
	if err != nil {
		return nil, err
	}

	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(rendered.Subject)
	m.SetBodyString(mail.TypeTextHTML, rendered.HTML)
	m.AddAlternativeString(mail.TypeTextPlain, rendered.Text)
	return m, nil
}

func (n *EmailNotifier) preheader(ctx context.Context, note string) string {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) <= previewLength {
		return ""
	}
	if n.summarizer != nil {
		summary, err := n.summarizer.SummarizeNote(ctx, note)
		if err == nil && summary != "" {
			return summary
		}
		if err != nil {
			n.logger.WithError(err).Debug("Note summary failed, truncating")
		}
	}
	return string([]rune(note)[:previewLength]) + "..."
}
