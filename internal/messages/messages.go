// Package messages renders the two texts the operator pastes into a chat:
// a greeting keyed to the time of day and a follow-up about the account.
package messages

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/kingrea/callsheet/internal/worklist"
)

// GreetingWord picks the Indonesian time-of-day word for t's local hour.
func GreetingWord(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 4 && h < 10:
		return "pagi"
	case h >= 10 && h < 15:
		return "siang"
	case h >= 15 && h < 18:
		return "sore"
	default:
		return "malam"
	}
}

// Fields is the data both templates execute against.
type Fields struct {
	Greeting   string
	Name       string
	Phone      string
	ExternalID string
	LastLogin  string
	Site       string
}

// Rendered holds the two texts for one record.
type Rendered struct {
	Greeting string
	FollowUp string
}

// Renderer executes the configured templates.
type Renderer struct {
	site     string
	greeting *template.Template
	followUp *template.Template
}

// New parses the greeting and follow-up templates.
func New(site, greeting, followUp string) (*Renderer, error) {
	g, err := template.New("greeting").Option("missingkey=error").Parse(greeting)
	if err != nil {
		return nil, fmt.Errorf("messages: parse greeting: %w", err)
	}
	f, err := template.New("follow_up").Option("missingkey=error").Parse(followUp)
	if err != nil {
		return nil, fmt.Errorf("messages: parse follow_up: %w", err)
	}
	return &Renderer{site: site, greeting: g, followUp: f}, nil
}

// Render fills both templates for rec at time now.
func (r *Renderer) Render(rec worklist.Record, now time.Time) (Rendered, error) {
	fields := Fields{
		Greeting:   GreetingWord(now),
		Name:       rec.Name,
		Phone:      rec.Phone,
		ExternalID: rec.ExternalID,
		LastLogin:  rec.LastLogin,
		Site:       r.site,
	}
	greeting, err := execute(r.greeting, fields)
	if err != nil {
		return Rendered{}, err
	}
	followUp, err := execute(r.followUp, fields)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Greeting: greeting, FollowUp: followUp}, nil
}

func execute(tmpl *template.Template, fields Fields) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, fields); err != nil {
		return "", fmt.Errorf("messages: render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
