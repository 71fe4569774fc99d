// Package mail provides the outbound SMTP mailer and the IMAP inbox
// reader that captures customer replies.
package mail

import "context"

// Message is one outbound email.
type Message struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string // Message-ID being replied to, for threading
}

// Mailer sends email. Implementations return the generated Message-ID so
// later replies can be threaded back. Failures are the caller's to log;
// the reply pipeline never retries sends.
type Mailer interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}
