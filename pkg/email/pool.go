package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Pool tries a message from each configured account in order until one
// succeeds. Quiet accounts are skipped. Rotating across accounts spreads load
// when a provider throttles a single sender.
type Pool struct {
	accounts []Account
	sender   Sender
	logger   zerolog.Logger
}

// NewPool creates a pool over the given accounts. Every account address must
// be valid; a nil sender uses the default SMTPSender.
func NewPool(accounts []Account, sender Sender, logger zerolog.Logger) (*Pool, error) {
	if len(accounts) == 0 {
		return nil, errors.New("at least one account is required")
	}
	for _, account := range accounts {
		if !ValidAddress(account.Address) {
			return nil, fmt.Errorf("invalid account address: %q", account.Address)
		}
		if account.Password == "" {
			return nil, fmt.Errorf("account %s is missing a password", account.Address)
		}
	}
	if sender == nil {
		sender = NewSMTPSender(logger)
	}
	return &Pool{
		accounts: accounts,
		sender:   sender,
		logger:   logger.With().Str("component", "Pool").Logger(),
	}, nil
}

// Send delivers the message from the first account that accepts it. It
// returns an error only when every account fails or is quiet.
func (p *Pool) Send(ctx context.Context, msg *Message) error {
	for _, to := range msg.To {
		if !ValidAddress(to) {
			return fmt.Errorf("invalid recipient address: %q", to)
		}
	}

	var lastErr error
	for _, account := range p.accounts {
		if account.Quiet {
			continue
		}
		if err := p.sender.SendFrom(ctx, account, msg); err != nil {
			p.logger.Warn().Err(err).Str("from", account.Address).Msg("Account failed to send; trying next.")
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("all accounts failed to send: %w", lastErr)
	}
	return errors.New("no active accounts available to send")
}
