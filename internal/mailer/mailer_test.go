package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

type mockSES struct {
	sendEmailFunc func(ctx context.Context, in *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

var _ SESAPI = (*mockSES)(nil)

func (m *mockSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, in)
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{name: "valid", msg: Message{From: "a@b.c", To: "d@e.f", HTMLBody: "<p>x</p>"}},
		{name: "text only", msg: Message{From: "a@b.c", To: "d@e.f", TextBody: "x"}},
		{name: "no sender", msg: Message{To: "d@e.f", TextBody: "x"}, wantErr: true},
		{name: "no recipient", msg: Message{From: "a@b.c", TextBody: "x"}, wantErr: true},
		{name: "no body", msg: Message{From: "a@b.c", To: "d@e.f"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestSESMailerSend(t *testing.T) {
	t.Parallel()

	var got *ses.SendEmailInput
	api := &mockSES{sendEmailFunc: func(_ context.Context, in *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
		got = in
		return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
	}}

	id, err := NewSESMailer(api, nil).Send(context.Background(), Message{
		From:     "reports@example.com",
		To:       "user@example.com",
		Subject:  "Daily Log Report",
		HTMLBody: "<html></html>",
		TextBody: "plain",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "msg-1" {
		t.Errorf("id = %q, want msg-1", id)
	}
	if aws.ToString(got.Source) != "reports@example.com" {
		t.Errorf("Source = %q", aws.ToString(got.Source))
	}
	if len(got.Destination.ToAddresses) != 1 || got.Destination.ToAddresses[0] != "user@example.com" {
		t.Errorf("ToAddresses = %v", got.Destination.ToAddresses)
	}
	if got.Message.Body.Html == nil || got.Message.Body.Text == nil {
		t.Error("expected both HTML and text parts")
	}
	if aws.ToString(got.Message.Subject.Charset) != "UTF-8" {
		t.Errorf("Charset = %q", aws.ToString(got.Message.Subject.Charset))
	}
}

func TestSESMailerSendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("MessageRejected")
	api := &mockSES{sendEmailFunc: func(context.Context, *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
		return nil, boom
	}}

	_, err := NewSESMailer(api, nil).Send(context.Background(), Message{From: "a@b.c", To: "d@e.f", TextBody: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped SES error, got %v", err)
	}
}

func TestSESMailerRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	api := &mockSES{sendEmailFunc: func(context.Context, *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
		t.Error("SendEmail must not be called for an invalid message")
		return nil, nil
	}}
	if _, err := NewSESMailer(api, nil).Send(context.Background(), Message{To: "d@e.f", TextBody: "x"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestLogMailer(t *testing.T) {
	t.Parallel()

	id, err := NewLogMailer(nil).Send(context.Background(), Message{To: "d@e.f", HTMLBody: "<p>x</p>"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.HasPrefix(id, "log-") {
		t.Errorf("id = %q, want log- prefix", id)
	}
}
