package sms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// queuedMessage is a message held until its recipient's window opens.
type queuedMessage struct {
	to   string
	body string
}

// sendWindow is a recipient's allowed send period, in minutes of the day in
// the recipient's timezone.
type sendWindow struct {
	startMinute int
	endMinute   int
	location    *time.Location
}

// WindowedSenderConfig holds settings for the windowing wrapper.
type WindowedSenderConfig struct {
	// PacingDelay is the pause between consecutive sends when a queue is
	// flushed.
	PacingDelay time.Duration
	// Now is an injectable clock. Nil uses time.Now.
	Now func() time.Time
}

// WindowedSender wraps a Sender with per-recipient send windows. Messages to
// a recipient outside their window are queued; the queue is flushed on the
// next send attempt that lands inside the window, oldest first, with a pacing
// delay between messages. Recipients without a configured window send
// immediately.
type WindowedSender struct {
	sender Sender
	config *WindowedSenderConfig
	logger zerolog.Logger
	now    func() time.Time

	mu           sync.Mutex
	queues       map[string][]queuedMessage
	windows      map[string]sendWindow
	ignoreWindow map[string]bool
}

// NewWindowedSender wraps the given sender.
func NewWindowedSender(cfg *WindowedSenderConfig, sender Sender, logger zerolog.Logger) (*WindowedSender, error) {
	if sender == nil {
		return nil, fmt.Errorf("wrapped sender cannot be nil")
	}
	if cfg == nil {
		cfg = &WindowedSenderConfig{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &WindowedSender{
		sender:       sender,
		config:       cfg,
		logger:       logger.With().Str("component", "WindowedSender").Logger(),
		now:          now,
		queues:       make(map[string][]queuedMessage),
		windows:      make(map[string]sendWindow),
		ignoreWindow: make(map[string]bool),
	}, nil
}

// SetWindow configures a recipient's send window as minutes of the day
// (e.g. 8*60 to 18*60) in the named IANA timezone.
func (w *WindowedSender) SetWindow(to string, startMinute, endMinute int, timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	w.mu.Lock()
	w.windows[to] = sendWindow{startMinute: startMinute, endMinute: endMinute, location: loc}
	w.mu.Unlock()

	w.logger.Debug().
		Str("to", to).
		Str("window", fmt.Sprintf("%02d:%02d-%02d:%02d %s", startMinute/60, startMinute%60, endMinute/60, endMinute%60, timezone)).
		Msg("Updated send window.")
	return nil
}

// SetIgnoreWindow overrides windowing for a recipient; when true their
// messages always send immediately.
func (w *WindowedSender) SetIgnoreWindow(to string, ignore bool) {
	w.mu.Lock()
	w.ignoreWindow[to] = ignore
	w.mu.Unlock()
}

// QueuedCount reports how many messages are held for a recipient.
func (w *WindowedSender) QueuedCount(to string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queues[to])
}

// Send queues the message and flushes the recipient's queue if their window
// permits sending now.
func (w *WindowedSender) Send(ctx context.Context, to, body string) error {
	w.mu.Lock()
	w.queues[to] = append(w.queues[to], queuedMessage{to: to, body: body})
	canSend := w.canSendLocked(to)
	var pending []queuedMessage
	if canSend {
		pending = w.queues[to]
		w.queues[to] = nil
	}
	w.mu.Unlock()

	if !canSend {
		w.logger.Debug().Str("to", to).Msg("Recipient outside send window; message queued.")
		return nil
	}
	return w.deliver(ctx, to, pending)
}

// Flush attempts delivery of a recipient's queued messages, applying the same
// window check as Send.
func (w *WindowedSender) Flush(ctx context.Context, to string) error {
	w.mu.Lock()
	canSend := w.canSendLocked(to)
	var pending []queuedMessage
	if canSend {
		pending = w.queues[to]
		w.queues[to] = nil
	}
	w.mu.Unlock()

	if !canSend {
		return nil
	}
	return w.deliver(ctx, to, pending)
}

func (w *WindowedSender) canSendLocked(to string) bool {
	if w.ignoreWindow[to] {
		return true
	}
	window, ok := w.windows[to]
	if !ok {
		return true
	}
	local := w.now().In(window.location)
	minute := local.Hour()*60 + local.Minute()
	return window.startMinute <= minute && minute <= window.endMinute
}

// deliver sends queued messages oldest first. Delivery of the remainder stops
// on the first error; undelivered messages are re-queued.
func (w *WindowedSender) deliver(ctx context.Context, to string, pending []queuedMessage) error {
	for i, msg := range pending {
		if i > 0 && w.config.PacingDelay > 0 {
			select {
			case <-time.After(w.config.PacingDelay):
			case <-ctx.Done():
				w.requeue(to, pending[i:])
				return ctx.Err()
			}
		}
		if err := w.sender.Send(ctx, msg.to, msg.body); err != nil {
			w.requeue(to, pending[i:])
			return fmt.Errorf("failed to deliver queued message: %w", err)
		}
	}
	return nil
}

func (w *WindowedSender) requeue(to string, remaining []queuedMessage) {
	w.mu.Lock()
	w.queues[to] = append(append([]queuedMessage{}, remaining...), w.queues[to]...)
	w.mu.Unlock()
}
