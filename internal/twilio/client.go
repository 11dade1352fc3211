package twilio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned when the account credentials or sender number are missing.
var ErrNotConfigured = errors.New("twilio credentials not configured")

// Client wraps the Twilio messaging call used for WhatsApp reminders.
type Client struct {
	client       *twilio.RestClient
	fromWhatsApp string
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
// A positive timeout bounds every REST call, since the SDK takes no context.
func New(accountSID, authToken, fromWhatsApp string, timeout time.Duration) (*Client, error) {
	if accountSID == "" || authToken == "" || normalizeWhatsAppAddress(fromWhatsApp) == "" {
		return nil, ErrNotConfigured
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	if timeout > 0 {
		rest.SetTimeout(timeout)
	}
	return &Client{
		client:       rest,
		fromWhatsApp: fromWhatsApp,
	}, nil
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API and returns the message SID.
func (c *Client) SendWhatsAppMessage(to, body string) (string, error) {
	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return "", fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(normalizeWhatsAppAddress(c.fromWhatsApp))
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send message error: %w", err)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
