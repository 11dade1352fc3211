package notify

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// WhatsAppSender is satisfied by twilio.Client.
type WhatsAppSender interface {
	SendWhatsAppMessage(to, body string) (string, error)
}

// WhatsAppNotifier delivers reminders as WhatsApp messages to the user's phone.
type WhatsAppNotifier struct {
	sender   WhatsAppSender
	location *time.Location
	logger   logrus.FieldLogger
}

func NewWhatsAppNotifier(sender WhatsAppSender, loc *time.Location, logger logrus.FieldLogger) *WhatsAppNotifier {
	return &WhatsAppNotifier{sender: sender, location: loc, logger: logger}
}

func (n *WhatsAppNotifier) Send(_ context.Context, msg Message) bool {
	log := n.logger.WithFields(logrus.Fields{"event": msg.EventTitle})
	if strings.TrimSpace(msg.Phone) == "" {
		log.Warn("Recipient has no phone number")
		return false
	}

	// The Twilio SDK call takes no context. The client's HTTP timeout bounds it.
	sid, err := n.sender.SendWhatsAppMessage(msg.Phone, RenderText(msg, n.location))
	if err != nil {
		log.WithError(err).Warn("Failed to send WhatsApp reminder")
		return false
	}
	log.WithField("sid", sid).Info("WhatsApp reminder sent")
	return true
}
