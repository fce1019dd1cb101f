// Package prompt turns raw text into the model request sent by the pipeline.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
)

//go:embed system.tmpl
var defaultSystem string

var defaultTemplate = template.Must(template.New("system").Parse(defaultSystem))

// TimeLayout is how the reference time is written into the instructions.
const TimeLayout = "2006-01-02T15:04:05-07:00"

// Builder renders model requests. It is safe for concurrent use.
type Builder struct {
	loc    *time.Location
	system *template.Template
	tool   string
}

// Option configures the Builder.
type Option func(*Builder)

// WithLocation renders the reference time in loc instead of the time's own location.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		b.loc = loc
	}
}

// WithTool changes the tool name the model is told to call.
func WithTool(name string) Option {
	return func(b *Builder) {
		b.tool = name
	}
}

// WithSystemTemplate replaces the system instructions template.
// The template receives .Now, .Weekday, .Zone and .Tool.
func WithSystemTemplate(t *template.Template) Option {
	return func(b *Builder) {
		b.system = t
	}
}

type templateData struct {
	Now     string
	Weekday string
	Zone    string
	Tool    string
}

// New creates a Builder. Custom templates are executed once against sample
// data so that Build never fails.
func New(opts ...Option) (*Builder, error) {
	b := &Builder{
		system: defaultTemplate,
		tool:   domain.ToolCreateCalendarReminder,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.system.Execute(&strings.Builder{}, b.data(time.Unix(0, 0))); err != nil {
		return nil, fmt.Errorf("invalid system template: %w", err)
	}
	return b, nil
}

func (b *Builder) data(now time.Time) templateData {
	if b.loc != nil {
		now = now.In(b.loc)
	}
	zone, _ := now.Zone()
	return templateData{
		Now:     now.Format(TimeLayout),
		Weekday: now.Weekday().String(),
		Zone:    zone,
		Tool:    b.tool,
	}
}

// Build returns the request for rawText. It is deterministic for a fixed now
// and accepts any string, including the empty one.
func (b *Builder) Build(rawText string, now time.Time) domain.ModelRequest {
	var system strings.Builder
	if err := b.system.Execute(&system, b.data(now)); err != nil {
		// Unreachable for templates validated in New.
		system.Reset()
		_ = defaultTemplate.Execute(&system, b.data(now))
	}

	return domain.ModelRequest{
		SystemInstructions: system.String(),
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: UserContent(rawText)},
		},
		ReferenceTime: now,
	}
}

// UserContent wraps the raw text in its <raw_body> section, unmodified.
func UserContent(rawText string) string {
	return "<raw_body>\n" + rawText + "\n</raw_body>"
}
