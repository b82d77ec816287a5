package remind

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"ytplan/internal/plan"
)

// Message is a rendered reminder ready for delivery.
type Message struct {
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

type messageData struct {
	Notice
	Playlist string
	SheetURL string
}

func (d messageData) Plural() string {
	if d.Deficit == 1 {
		return ""
	}
	return "s"
}

const textBody = `Hello {{.Participant.Name}},

You are {{.Deficit}} video{{.Plural}} behind schedule{{if .Playlist}} on {{.Playlist}}{{end}}: {{.Actual}} of {{.Expected}} due videos are marked done.
{{range .Overdue}}
- {{.Item.Title}} (was due on {{.Date}}){{if .Item.URL}}
  {{.Item.URL}}{{end}}{{end}}
{{if .SheetURL}}
Mark your progress in the tracker: {{.SheetURL}}
{{end}}
Take some time to catch up.
`

const htmlBody = `<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <p>Hello {{.Participant.Name}},</p>
    <p>You are <b>{{.Deficit}} video{{.Plural}}</b> behind schedule{{if .Playlist}} on <b>{{.Playlist}}</b>{{end}}: {{.Actual}} of {{.Expected}} due videos are marked done.</p>
    <ul>
{{- range .Overdue}}
      <li><b>{{.Item.Title}}</b> (was due on {{.Date}}){{if .Item.URL}}<br><a href="{{.Item.URL}}" style="color: #1a73e8;">Watch here</a>{{end}}</li>
{{- end}}
    </ul>
{{- if .SheetURL}}
    <p><a href="{{.SheetURL}}">Open the tracker</a> to mark your progress.</p>
{{- end}}
    <p>Take some time to catch up.</p>
  </body>
</html>
`

var (
	textTemplate = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

// Subject returns the reminder subject line for playlist.
func Subject(playlist string) string {
	if playlist == "" {
		return "REMINDER - Missed Deadline"
	}
	return "REMINDER - " + playlist + " - Missed Deadline"
}

// Render builds the message for n.
func Render(n Notice, playlist, sheetURL string) (Message, error) {
	data := messageData{Notice: n, Playlist: playlist, SheetURL: sheetURL}

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      strings.TrimSpace(n.Participant.Email),
		Name:    n.Participant.Name,
		Subject: Subject(playlist),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// overdueTitles is used in log lines.
func overdueTitles(entries []plan.ScheduleEntry) []string {
	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Item.Title
	}
	return titles
}
