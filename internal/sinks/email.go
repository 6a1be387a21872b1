package sinks

import (
	"context"
	"fmt"

	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/resend/resend-go/v2"
)

const EmailSinkName = "email"

// EmailSink delivers notifications as transactional email via Resend.
type EmailSink struct {
	client    *resend.Client
	fromEmail string
	directory RecipientDirectory
}

// NewEmailSink builds the Resend-backed email sink.
func NewEmailSink(apiKey, fromEmail string, directory RecipientDirectory) *EmailSink {
	return &EmailSink{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		directory: directory,
	}
}

func (s *EmailSink) Name() string { return EmailSinkName }

func (s *EmailSink) Deliver(ctx context.Context, n *models.Notification) error {
	to, err := s.directory.EmailAddress(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: n.Title,
		Html:    fmt.Sprintf("<p>%s</p>", n.Message),
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
