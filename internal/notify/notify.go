package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned by constructors when transport credentials are missing.
var ErrNotConfigured = errors.New("notifier credentials not configured")

// Message is everything a notifier needs to render and deliver one reminder.
type Message struct {
	To         string
	ToName     string
	Phone      string
	EventTitle string
	Note       string
	DueAt      time.Time
}

// Notifier delivers one reminder. Send reports delivery success and must not touch
// reminder storage. Transport failures and timeouts are reported as false, never panics.
type Notifier interface {
	Send(ctx context.Context, msg Message) bool
}

// Disabled is used when no transport is configured. Every delivery fails, so
// nothing is ever marked sent.
type Disabled struct {
	Logger logrus.FieldLogger
}

func (d Disabled) Send(_ context.Context, msg Message) bool {
	if d.Logger != nil {
		d.Logger.WithField("event", msg.EventTitle).Debug("Delivery disabled, reminder left unsent")
	}
	return false
}
