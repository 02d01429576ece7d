package models

import (
	"strings"
	"time"
)

const (
	// TimestampLayout is the local ISO-8601 layout used for log entry timestamps (no zone)
	TimestampLayout = "2006-01-02T15:04:05.000000"
	// UTCTimestampLayout is used for preference bookkeeping timestamps
	UTCTimestampLayout = "2006-01-02T15:04:05.000000-07:00"
	// DateLayout is the calendar date layout used for the date index
	DateLayout = "2006-01-02"
)

// LogEntry represents one logged utterance for a user
type LogEntry struct {
	UserID     string            `json:"user_id"`
	Timestamp  string            `json:"timestamp"`
	Date       string            `json:"date"`
	Utterance  string            `json:"utterance"`
	ParsedData map[string]string `json:"parsed_data"`
}

// NewLogEntry builds a log entry whose Date is the date portion of timestamp
func NewLogEntry(userID, timestamp, utterance string, parsed ParsedFields) *LogEntry {
	return &LogEntry{
		UserID:     userID,
		Timestamp:  timestamp,
		Date:       DateFromTimestamp(timestamp),
		Utterance:  utterance,
		ParsedData: parsed.Map(),
	}
}

// DateFromTimestamp returns everything before the first "T" of an ISO-8601 timestamp
func DateFromTimestamp(timestamp string) string {
	date, _, _ := strings.Cut(timestamp, "T")
	return date
}

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
