// Package alexa holds the request and response envelopes exchanged with the
// voice platform, limited to the fields the skill reads or writes.
package alexa

import (
	"encoding/json"
	"strings"
)

// Request types
const (
	RequestLaunch       = "LaunchRequest"
	RequestIntent       = "IntentRequest"
	RequestSessionEnded = "SessionEndedRequest"
)

// RequestEnvelope is the inbound skill request
type RequestEnvelope struct {
	Version string   `json:"version"`
	Session *Session `json:"session,omitempty"`
	Context *Context `json:"context,omitempty"`
	Request Request  `json:"request"`
}

// Session describes the dialog session
type Session struct {
	New         bool           `json:"new"`
	SessionID   string         `json:"sessionId"`
	Application Application    `json:"application"`
	User        User           `json:"user"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Application identifies the skill
type Application struct {
	ApplicationID string `json:"applicationId"`
}

// User identifies the skill user
type User struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken,omitempty"`
}

// Context carries device and system state
type Context struct {
	System System `json:"System"`
}

// System holds the API endpoint and token for calling platform services
type System struct {
	Application    Application `json:"application"`
	User           User        `json:"user"`
	APIEndpoint    string      `json:"apiEndpoint"`
	APIAccessToken string      `json:"apiAccessToken"`
}

// Request is the typed request body
type Request struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	Timestamp string  `json:"timestamp"`
	Locale    string  `json:"locale,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Intent    *Intent `json:"intent,omitempty"`
}

// Intent is a classified voice command
type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// Slot is one intent slot value
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// UserID returns the user id from context.System, falling back to the session
func (e *RequestEnvelope) UserID() string {
	if e.Context != nil && e.Context.System.User.UserID != "" {
		return e.Context.System.User.UserID
	}
	if e.Session != nil {
		return e.Session.User.UserID
	}
	return ""
}

// IntentName returns the intent name, or "" for non-intent requests
func (e *RequestEnvelope) IntentName() string {
	if e.Request.Intent == nil {
		return ""
	}
	return e.Request.Intent.Name
}

// SlotValue returns the trimmed value of the named slot
func (e *RequestEnvelope) SlotValue(name string) string {
	if e.Request.Intent == nil {
		return ""
	}
	return strings.TrimSpace(e.Request.Intent.Slots[name].Value)
}

// APIEndpoint returns the platform API base URL for this request
func (e *RequestEnvelope) APIEndpoint() string {
	if e.Context == nil {
		return ""
	}
	return e.Context.System.APIEndpoint
}

// APIAccessToken returns the per-request platform API token
func (e *RequestEnvelope) APIAccessToken() string {
	if e.Context == nil {
		return ""
	}
	return e.Context.System.APIAccessToken
}

// IsSkillRequest reports whether raw looks like a skill request envelope
func IsSkillRequest(raw json.RawMessage) bool {
	var probe struct {
		Request *struct {
			Type string `json:"type"`
		} `json:"request"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Request != nil && probe.Request.Type != ""
}

// ResponseEnvelope is the outbound skill response
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

// Response is the spoken and visual output
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession *bool         `json:"shouldEndSession,omitempty"`
}

// OutputSpeech is plain-text speech
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reprompt is spoken when the user does not answer
type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

// Card is a companion-app card
type Card struct {
	Type        string   `json:"type"`
	Title       string   `json:"title,omitempty"`
	Content     string   `json:"content,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}
