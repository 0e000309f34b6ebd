// Package mailer sends batched alert emails.
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Sender is the interface for delivering one email.
type Sender interface {
	Send(ctx context.Context, from, to, subject, htmlBody string) error
}

// Resend implements Sender on the Resend transactional email API.
type Resend struct {
	client *resend.Client
}

// NewResend creates a Resend sender.
func NewResend(apiKey string) *Resend {
	return &Resend{client: resend.NewClient(apiKey)}
}

// Send delivers one email to a single recipient.
func (r *Resend) Send(ctx context.Context, from, to, subject, htmlBody string) error {
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
