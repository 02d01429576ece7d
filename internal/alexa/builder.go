package alexa

const (
	speechTypePlainText = "PlainText"
	cardTypeSimple      = "Simple"
	cardTypePermissions = "AskForPermissionsConsent"
	responseVersion     = "1.0"
)

// ResponseBuilder assembles a ResponseEnvelope
type ResponseBuilder struct {
	resp Response
}

// NewResponseBuilder starts an empty response
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Speak sets the spoken output
func (b *ResponseBuilder) Speak(text string) *ResponseBuilder {
	b.resp.OutputSpeech = &OutputSpeech{Type: speechTypePlainText, Text: text}
	return b
}

// Ask sets the reprompt and keeps the session open
func (b *ResponseBuilder) Ask(text string) *ResponseBuilder {
	b.resp.Reprompt = &Reprompt{OutputSpeech: OutputSpeech{Type: speechTypePlainText, Text: text}}
	return b.EndSession(false)
}

// EndSession sets shouldEndSession explicitly
func (b *ResponseBuilder) EndSession(end bool) *ResponseBuilder {
	b.resp.ShouldEndSession = &end
	return b
}

// WithSimpleCard adds a title/content card
func (b *ResponseBuilder) WithSimpleCard(title, content string) *ResponseBuilder {
	b.resp.Card = &Card{Type: cardTypeSimple, Title: title, Content: content}
	return b
}

// WithPermissionsCard asks the user to grant the given permissions in the companion app
func (b *ResponseBuilder) WithPermissionsCard(permissions ...string) *ResponseBuilder {
	b.resp.Card = &Card{Type: cardTypePermissions, Permissions: permissions}
	return b
}

// Build returns the envelope
func (b *ResponseBuilder) Build() *ResponseEnvelope {
	return &ResponseEnvelope{Version: responseVersion, Response: b.resp}
}
