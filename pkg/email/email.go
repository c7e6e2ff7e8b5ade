// Package email sends mail through SMTP accounts, rotating across a pool so
// throttling on one account falls through to the next.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Account is a single SMTP sending identity.
type Account struct {
	Address  string
	Password string
	Host     string
	Port     int
	// Quiet excludes the account from sending without removing it from the
	// pool configuration.
	Quiet bool
}

// ValidAddress reports whether the address parses as an RFC 5322 mailbox.
func ValidAddress(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	// ParseAddress accepts local-only addresses; require a domain.
	return strings.Contains(parsed.Address, "@")
}

// Message is a single email to deliver.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a message from a specific account. Implementations wrap a
// mail transport; the default uses net/smtp with PLAIN auth.
type Sender interface {
	SendFrom(ctx context.Context, account Account, msg *Message) error
}

// SMTPSender sends mail over SMTP with PLAIN authentication.
type SMTPSender struct {
	logger zerolog.Logger
}

// NewSMTPSender creates the default SMTP-backed sender.
func NewSMTPSender(logger zerolog.Logger) *SMTPSender {
	return &SMTPSender{logger: logger.With().Str("component", "SMTPSender").Logger()}
}

// SendFrom delivers the message from the given account. The context is
// currently advisory; net/smtp does not support cancellation mid-session.
func (s *SMTPSender) SendFrom(_ context.Context, account Account, msg *Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", account.Address)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", account.Host, account.Port)
	auth := smtp.PlainAuth("", account.Address, account.Password, account.Host)
	if err := smtp.SendMail(addr, auth, account.Address, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send via %s failed: %w", addr, err)
	}

	s.logger.Debug().Str("from", account.Address).Strs("to", msg.To).Msg("Email sent.")
	return nil
}
