package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"time"
)

const dueLayout = "Mon, 02 Jan 2006 15:04 MST"

var emailHTML = htmltemplate.Must(htmltemplate.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  {{- if .Preheader}}
  <span style="display:none;">{{.Preheader}}</span>
  {{- end}}
  <div style="background: #667eea; padding: 20px; text-align: center; color: white;">
    <h1 style="margin: 0;">Event reminder</h1>
  </div>
  <div style="padding: 20px; background: #f9f9f9;">
    <p>Hello <strong>{{.Name}}</strong>,</p>
    <div style="background: white; padding: 15px; border-left: 4px solid #667eea; margin: 20px 0;">
      <h2 style="color: #333; margin-top: 0;">{{.Title}}</h2>
      <p><strong>Time:</strong> {{.Due}}</p>
      {{- if .Note}}
      <p><strong>Note:</strong> {{.Note}}</p>
      {{- end}}
    </div>
    <p style="color: #666; font-size: 14px;">This is an automated reminder. Check the event page for details.</p>
  </div>
</div>
`))

// Rendered is a message ready for an email transport.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type emailView struct {
	Name      string
	Title     string
	Due       string
	Note      string
	Preheader string
}

// RenderEmail builds subject and bodies for msg. Due times are shown in loc.
func RenderEmail(msg Message, loc *time.Location, preheader string) (Rendered, error) {
	if loc == nil {
		loc = time.UTC
	}
	view := emailView{
		Name:      fallback(msg.ToName, msg.To),
		Title:     msg.EventTitle,
		Due:       msg.DueAt.In(loc).Format(dueLayout),
		Note:      strings.TrimSpace(msg.Note),
		Preheader: preheader,
	}

	var html bytes.Buffer
	if err := emailHTML.Execute(&html, view); err != nil {
		return Rendered{}, fmt.Errorf("render reminder email: %w", err)
	}

	return Rendered{
		Subject: "Event reminder: " + msg.EventTitle,
		HTML:    html.String(),
		Text:    RenderText(msg, loc),
	}, nil
}

// RenderText is the plain-text form, also used for chat transports.
func RenderText(msg Message, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hello %s,\n\n", fallback(msg.ToName, msg.To)))
	sb.WriteString(fmt.Sprintf("Reminder: %s\n", msg.EventTitle))
	sb.WriteString(fmt.Sprintf("Time: %s\n", msg.DueAt.In(loc).Format(dueLayout)))
	if note := strings.TrimSpace(msg.Note); note != "" {
		sb.WriteString(fmt.Sprintf("Note: %s\n", note))
	}
	return sb.String()
}

func fallback(primary, secondary string) string {
	if strings.TrimSpace(primary) == "" {
		return secondary
	}
	return primary
}
