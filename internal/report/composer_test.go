package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benvon/jotjot/internal/models"
)

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name    string
		ts      string
		loc     *time.Location
		want    string
		wantErr bool
	}{
		{name: "microseconds", ts: "2024-03-01T08:05:09.123456", want: "March 01, 2024 at 08:05 AM"},
		{name: "afternoon", ts: "2024-03-01T21:45:00", want: "March 01, 2024 at 09:45 PM"},
		{name: "offset keeps wall clock", ts: "2024-03-01T23:30:00+05:00", want: "March 01, 2024 at 11:30 PM"},
		{name: "space separator", ts: "2024-03-01 12:00:00", want: "March 01, 2024 at 12:00 PM"},
		{name: "minutes only", ts: "2024-03-01T00:07", want: "March 01, 2024 at 12:07 AM"},
		{name: "date only", ts: "2024-03-01", want: "March 01, 2024 at 12:00 AM"},
		{name: "zone-less read as UTC with location", ts: "2024-03-01T12:00:00", loc: newYork, want: "March 01, 2024 at 07:00 AM"},
		{name: "garbage", ts: "yesterday at noon", wantErr: true},
		{name: "empty", ts: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := FormatTimestamp(tt.ts, tt.loc)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTimestamp) {
					t.Errorf("expected ErrMalformedTimestamp, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatTimestamp() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatTimestamp(%q) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}

func TestComposeEmpty(t *testing.T) {
	t.Parallel()

	c := NewComposer("Daily Log", "https://example.com/feedback", nil)
	body, err := c.Compose("2024-03-01", nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<h1>Daily Log Daily Report for 2024-03-01</h1>",
		"<ol>",
		"</ol>",
		"stop sending reports",
		`href="https://example.com/feedback"`,
		"</html>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "<li>") {
		t.Errorf("empty report must not contain list items:\n%s", body)
	}
}

func TestComposeOrdersAndEscapes(t *testing.T) {
	t.Parallel()

	c := NewComposer("Daily Log", "", nil)
	entries := []*models.LogEntry{
		{Timestamp: "2024-03-01T07:00:00", Utterance: "took <b>vitamins</b>"},
		{Timestamp: "2024-03-01T20:30:00", Utterance: "applying the balm"},
	}
	body, err := c.Compose("2024-03-01", entries)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	first := strings.Index(body, "March 01, 2024 at 07:00 AM")
	second := strings.Index(body, "March 01, 2024 at 08:30 PM")
	if first < 0 || second < 0 || first > second {
		t.Errorf("entries not rendered in given order:\n%s", body)
	}
	if strings.Contains(body, "<b>vitamins</b>") {
		t.Error("utterance HTML must be escaped")
	}
	if strings.Contains(body, "<a href") {
		t.Error("feedback link must be omitted when no URL is configured")
	}
	if strings.Count(body, "<li>") != 2 {
		t.Errorf("expected 2 list items:\n%s", body)
	}
}

func TestComposeMalformedTimestamp(t *testing.T) {
	t.Parallel()

	c := NewComposer("Daily Log", "", nil)
	_, err := c.Compose("2024-03-01", []*models.LogEntry{{Timestamp: "03/01/2024 7am", Utterance: "x"}})
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("expected ErrMalformedTimestamp, got %v", err)
	}
}

func TestComposeText(t *testing.T) {
	t.Parallel()

	c := NewComposer("Med Log", "mailto:a@b.c", nil)
	text, err := c.ComposeText("2024-03-01", []*models.LogEntry{{Timestamp: "2024-03-01T09:15:00", Utterance: "took aspirin"}})
	if err != nil {
		t.Fatalf("ComposeText() error = %v", err)
	}
	for _, want := range []string{
		"Med Log Daily Report for 2024-03-01:",
		"March 01, 2024 at 09:15 AM: took aspirin\n",
		"say 'stop sending reports'",
		"Feedback: mailto:a@b.c",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	if got := c.Subject(); got != "Med Log Report" {
		t.Errorf("Subject() = %q", got)
	}
}
