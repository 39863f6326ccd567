package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Reminder is the input for the "post before your slot ends" email.
type Reminder struct {
	UserID         string
	To             string
	SpeakerName    string
	CommunityName  string
	Time           string
	IncludeTips    bool
	UnsubscribeURL string
}

// Message is the rendered email handed to the mailer service.
type Message struct {
	Template  string `json:"template"`
	UserID    string `json:"userId"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	PlainText string `json:"plainText"`
	HTML      string `json:"html"`
}

const reminderTemplateName = "post-reminder"

var reminderHTML = template.Must(template.New(reminderTemplateName).Parse(`<p>Hi {{.SpeakerName}},</p>
<p>Your speaking slot in <strong>{{.CommunityName}}</strong> ends {{.Time}}. Share a post before it's over so the room has something to talk about.</p>
{{- if .IncludeTips}}
<p>A league is running in {{.CommunityName}} right now. Posts that ask a question or share a hot take tend to score best.</p>
{{- end}}
<p><a href="{{.UnsubscribeURL}}">Unsubscribe from these emails</a></p>
`))

// RenderReminder builds the subject and both bodies of a reminder email.
func RenderReminder(r Reminder) (Message, error) {
	var html bytes.Buffer
	if err := reminderHTML.Execute(&html, r); err != nil {
		return Message{}, fmt.Errorf("render reminder email: %w", err)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "Hi %s,\n\n", r.SpeakerName)
	fmt.Fprintf(&plain, "Your speaking slot in %s ends %s. Share a post before it's over so the room has something to talk about.\n", r.CommunityName, r.Time)
	if r.IncludeTips {
		fmt.Fprintf(&plain, "\nA league is running in %s right now. Posts that ask a question or share a hot take tend to score best.\n", r.CommunityName)
	}
	fmt.Fprintf(&plain, "\nUnsubscribe: %s\n", r.UnsubscribeURL)

	return Message{
		Template:  reminderTemplateName,
		UserID:    r.UserID,
		To:        r.To,
		Subject:   fmt.Sprintf("Your time on stage in %s is running out", r.CommunityName),
		PlainText: plain.String(),
		HTML:      html.String(),
	}, nil
}
