package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"github.com/nurtureai/nurture-go/internal/config"
)

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// Compile-time check that SMTPMailer implements Mailer.
var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer from configuration.
func NewSMTPMailer(cfg config.Config) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUser),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.FromEmail}, nil
}

// Send delivers one message and returns its generated Message-ID.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	mm := gomail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return "", fmt.Errorf("set from: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return "", fmt.Errorf("set to: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(gomail.TypeTextPlain, msg.Body)
	mm.SetMessageID()
	if msg.InReplyTo != "" {
		mm.SetGenHeader(gomail.HeaderInReplyTo, msg.InReplyTo)
		mm.SetGenHeader(gomail.HeaderReferences, msg.InReplyTo)
	}

	messageID := mm.GetMessageID()

	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return "", fmt.Errorf("send to %s: %w", msg.To, err)
	}

	slog.Info("email sent", "to", msg.To, "subject", msg.Subject, "message_id", messageID)
	return messageID, nil
}
