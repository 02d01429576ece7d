// Package mailer sends report emails.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const charset = "UTF-8"

// ErrInvalidMessage is returned when a message lacks a sender, recipient or body
var ErrInvalidMessage = errors.New("invalid email message")

// Message is one outbound email
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Validate checks the fields every transport needs
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.From) == "":
		return fmt.Errorf("%w: missing sender", ErrInvalidMessage)
	case strings.TrimSpace(m.To) == "":
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	case m.HTMLBody == "" && m.TextBody == "":
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a message and returns the provider message id
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SESAPI is the subset of the SES client used here
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

var _ SESAPI = (*ses.Client)(nil)

// SESMailer sends through Amazon SES
type SESMailer struct {
	client SESAPI
	logger *zap.Logger
}

var _ Sender = (*SESMailer)(nil)

// NewSESMailer creates an SES backed sender
func NewSESMailer(client SESAPI, log *zap.Logger) *SESMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SESMailer{client: client, logger: log}
}

// Send delivers msg with HTML and plain-text parts when present
func (m *SESMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	body := &types.Body{}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Charset: aws.String(charset), Data: aws.String(msg.HTMLBody)}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{Charset: aws.String(charset), Data: aws.String(msg.TextBody)}
	}

	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String(charset), Data: aws.String(msg.Subject)},
			Body:    body,
		},
	})
	if err != nil {
		m.logger.Error("email_send_failed",
			zap.String("to", logger.MaskEmail(msg.To)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return "", fmt.Errorf("email send failed: %w", err)
	}

	id := aws.ToString(out.MessageId)
	m.logger.Info("email_sent",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("message_id", id),
	)
	return id, nil
}

// LogMailer logs messages instead of sending them. Used for dry runs and
// when no sender address is configured.
type LogMailer struct {
	logger *zap.Logger
}

var _ Sender = (*LogMailer)(nil)

// NewLogMailer creates a sender that only logs
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{logger: log}
}

// Send logs the would-be message and returns a synthetic id
func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	body := msg.TextBody
	if body == "" {
		body = msg.HTMLBody
	}
	m.logger.Info("email_logged",
		zap.String("message_id", id),
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", logger.SanitizeString(msg.Subject, logger.MaxGeneralStringLength)),
		zap.String("body", logger.SanitizeDebugContent(body)),
	)
	return id, nil
}
