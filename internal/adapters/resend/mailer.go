// Package resend delivers transactional email through the Resend HTTP API.
package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/ports"
)

// Mailer implements ports.Mailer.
type Mailer struct {
	client *resend.Client
	from   string
}

func NewMailer(apiKey, from string) *Mailer {
	return &Mailer{client: resend.NewClient(apiKey), from: from}
}

func (m *Mailer) Send(ctx context.Context, msg ports.Email) error {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.WithFields(log.Fields{"id": sent.Id, "subject": msg.Subject}).Debug("email sent")
	return nil
}

// LogMailer records that a message would have been sent. Used when no API key
// is configured. Bodies carry verification and reset links and are never logged.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg ports.Email) error {
	log.WithFields(log.Fields{"to": msg.To, "subject": msg.Subject}).Info("email not sent, no mail API key")
	return nil
}
