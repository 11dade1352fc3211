package twilio

import (
	"errors"
	"testing"
	"time"

	"github.com/twilio/twilio-go/client"
)

func TestNormalizeWhatsAppAddress(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                  "",
		"   ":               "",
		"+15551234567":      "whatsapp:+15551234567",
		"15551234567":       "whatsapp:+15551234567",
		" +4477 ":           "whatsapp:+4477",
		"whatsapp:+1555000": "whatsapp:+1555000",
	}
	for input, want := range cases {
		if got := normalizeWhatsAppAddress(input); got != want {
			t.Fatalf("normalizeWhatsAppAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := New("", "token", "+1555", 0); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for missing SID, got %v", err)
	}
	if _, err := New("sid", "token", " ", 0); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for missing sender, got %v", err)
	}
	if _, err := New("sid", "token", "+1555", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewAppliesTimeout(t *testing.T) {
	t.Parallel()

	c, err := New("sid", "token", "+1555", 30*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rest, ok := c.client.RequestHandler.Client.(*client.Client)
	if !ok {
		t.Fatalf("unexpected twilio client type %T", c.client.RequestHandler.Client)
	}
	if rest.HTTPClient == nil || rest.HTTPClient.Timeout != 30*time.Second {
		t.Fatalf("HTTP timeout not applied: %+v", rest.HTTPClient)
	}
}
