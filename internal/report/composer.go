// Package report builds and sends the daily activity digest.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/benvon/jotjot/internal/models"
)

// DisplayLayout renders timestamps as "March 01, 2024 at 08:05 AM"
const DisplayLayout = "January 02, 2006 at 03:04 PM"

// ErrMalformedTimestamp is returned when a stored timestamp is not ISO-8601
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// Accepted ISO-8601 shapes. Fractional seconds are accepted by time.Parse after the seconds field.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	models.DateLayout,
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.SkillName}} Daily Report for {{.Date}}</title></head>
<body>
<h1>{{.SkillName}} Daily Report for {{.Date}}</h1>
<p>Here's a summary of your activity from {{.Date}}:</p>
<ol>
{{- range .Lines}}
<li><strong>{{.Time}}</strong>: {{.Utterance}}</li>
{{- end}}
</ol>
<hr>
<p>To disable these reports from {{.SkillName}}, say 'stop sending reports' when using the skill.</p>
{{- if .FeedbackURL}}
<p><a href="{{.FeedbackURL}}">Send feedback about {{.SkillName}}</a></p>
{{- end}}
</body>
</html>
`

var reportTemplate = template.Must(template.New("daily_report").Parse(htmlTemplate))

// Composer renders daily reports
type Composer struct {
	skillName   string
	feedbackURL string
	loc         *time.Location
}

// NewComposer creates a composer. A nil loc renders timestamps in the wall
// clock they were stored with; otherwise zone-less timestamps are read as
// UTC and every timestamp is shown in loc.
func NewComposer(skillName, feedbackURL string, loc *time.Location) *Composer {
	return &Composer{skillName: skillName, feedbackURL: feedbackURL, loc: loc}
}

// Subject returns the email subject line
func (c *Composer) Subject() string {
	return c.skillName + " Report"
}

// Build turns entries, assumed sorted ascending, into a report. Any malformed
// timestamp fails the whole report.
func (c *Composer) Build(date string, entries []*models.LogEntry) (*models.DailyReport, error) {
	lines := make([]models.ReportLine, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		formatted, err := FormatTimestamp(e.Timestamp, c.loc)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.ReportLine{Time: formatted, Utterance: e.Utterance})
	}

	return &models.DailyReport{
		Date:        date,
		SkillName:   c.skillName,
		Lines:       lines,
		FeedbackURL: c.feedbackURL,
	}, nil
}

// Render produces the HTML body
func (c *Composer) Render(r *models.DailyReport) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// RenderText produces the plain-text alternative body
func (c *Composer) RenderText(r *models.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Daily Report for %s:\n\n", r.SkillName, r.Date)
	fmt.Fprintf(&b, "Here's a summary of your activity from %s:\n\n", r.Date)
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%s: %s\n", line.Time, line.Utterance)
	}
	fmt.Fprintf(&b, "\nTo disable these reports from %s, say 'stop sending reports' when using the skill.\n", r.SkillName)
	if r.FeedbackURL != "" {
		fmt.Fprintf(&b, "Feedback: %s\n", r.FeedbackURL)
	}
	return b.String()
}

// Compose builds and renders the HTML body in one step
func (c *Composer) Compose(date string, entries []*models.LogEntry) (string, error) {
	r, err := c.Build(date, entries)
	if err != nil {
		return "", err
	}
	return c.Render(r)
}

// ComposeText builds and renders the plain-text body in one step
func (c *Composer) ComposeText(date string, entries []*models.LogEntry) (string, error) {
	r, err := c.Build(date, entries)
	if err != nil {
		return "", err
	}
	return c.RenderText(r), nil
}

// ParseTimestamp parses an ISO-8601 timestamp. Zone-less timestamps are read as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, ts)
}

// FormatTimestamp parses an ISO-8601 timestamp and renders it with DisplayLayout
func FormatTimestamp(ts string, loc *time.Location) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DisplayLayout), nil
}
