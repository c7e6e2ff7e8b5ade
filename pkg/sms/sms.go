// Package sms delivers short messages to recipients over Twilio or Telegram.
// The WindowedSender wrapper adds per-recipient send windows so messages
// queue up outside a recipient's configured hours.
package sms

import "context"

// Sender delivers a single message to a recipient. The recipient format is
// implementation-specific: a phone number for Twilio, a chat ID or channel
// title for Telegram.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}
