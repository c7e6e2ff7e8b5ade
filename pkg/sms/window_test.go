package sms_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-integrations/pkg/sms"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSender records sent messages and can be told to fail.
type mockSender struct {
	SendFn func(ctx context.Context, to, body string) error

	mu   sync.Mutex
	sent []string
}

func (m *mockSender) Send(ctx context.Context, to, body string) error {
	if m.SendFn != nil {
		if err := m.SendFn(ctx, to, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, body)
	m.mu.Unlock()
	return nil
}

func (m *mockSender) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.sent...)
}

// fixedClock returns a Now func pinned at the given UTC hour and minute.
func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 15, hour, minute, 0, 0, time.UTC)
	}
}

func newWindowedSender(t *testing.T, now func() time.Time, inner sms.Sender) *sms.WindowedSender {
	t.Helper()
	sender, err := sms.NewWindowedSender(&sms.WindowedSenderConfig{Now: now}, inner, zerolog.Nop())
	require.NoError(t, err)
	return sender
}

func TestWindowedSender_NoWindowSendsImmediately(t *testing.T) {
	inner := &mockSender{}
	sender := newWindowedSender(t, fixedClock(3, 0), inner)

	require.NoError(t, sender.Send(context.Background(), "+15550001", "hello"))

	assert.Equal(t, []string{"hello"}, inner.Sent())
	assert.Zero(t, sender.QueuedCount("+15550001"))
}

func TestWindowedSender_OutsideWindowQueues(t *testing.T) {
	inner := &mockSender{}
	sender := newWindowedSender(t, fixedClock(3, 0), inner)
	require.NoError(t, sender.SetWindow("+15550001", 8*60, 18*60, "UTC"))

	require.NoError(t, sender.Send(context.Background(), "+15550001", "early"))

	assert.Empty(t, inner.Sent())
	assert.Equal(t, 1, sender.QueuedCount("+15550001"))
}

func TestWindowedSender_InsideWindowFlushesQueue(t *testing.T) {
	inner := &mockSender{}
	current := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	sender := newWindowedSender(t, func() time.Time { return current }, inner)
	require.NoError(t, sender.SetWindow("+15550001", 8*60, 18*60, "UTC"))

	require.NoError(t, sender.Send(context.Background(), "+15550001", "first"))
	require.NoError(t, sender.Send(context.Background(), "+15550001", "second"))
	require.Equal(t, 2, sender.QueuedCount("+15550001"))
	require.Empty(t, inner.Sent())

	// A send inside the window delivers the backlog along with the new
	// message, oldest first.
	current = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sender.Send(context.Background(), "+15550001", "third"))

	assert.Equal(t, []string{"first", "second", "third"}, inner.Sent())
	assert.Zero(t, sender.QueuedCount("+15550001"))
}

func TestWindowedSender_FlushDeliversOldestFirst(t *testing.T) {
	inner := &mockSender{}
	clock := fixedClock(3, 0)
	current := clock()
	now := func() time.Time { return current }

	sender := newWindowedSender(t, now, inner)
	require.NoError(t, sender.SetWindow("+15550001", 8*60, 18*60, "UTC"))

	require.NoError(t, sender.Send(context.Background(), "+15550001", "first"))
	require.NoError(t, sender.Send(context.Background(), "+15550001", "second"))
	require.Empty(t, inner.Sent())

	// Advance the clock into the window and flush.
	current = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sender.Flush(context.Background(), "+15550001"))

	assert.Equal(t, []string{"first", "second"}, inner.Sent())
	assert.Zero(t, sender.QueuedCount("+15550001"))
}

func TestWindowedSender_IgnoreWindowOverride(t *testing.T) {
	inner := &mockSender{}
	sender := newWindowedSender(t, fixedClock(3, 0), inner)
	require.NoError(t, sender.SetWindow("+15550001", 8*60, 18*60, "UTC"))
	sender.SetIgnoreWindow("+15550001", true)

	require.NoError(t, sender.Send(context.Background(), "+15550001", "urgent"))

	assert.Equal(t, []string{"urgent"}, inner.Sent())
}

func TestWindowedSender_TimezoneConversion(t *testing.T) {
	inner := &mockSender{}
	// 16:00 UTC is 08:00 in Los Angeles (PDT), inside an 8:00-18:00 window.
	sender := newWindowedSender(t, fixedClock(16, 0), inner)
	require.NoError(t, sender.SetWindow("+15550001", 8*60, 18*60, "America/Los_Angeles"))

	require.NoError(t, sender.Send(context.Background(), "+15550001", "morning"))
	assert.Equal(t, []string{"morning"}, inner.Sent())

	// 04:00 UTC the same day is 21:00 PDT the previous evening, outside.
	late := newWindowedSender(t, fixedClock(4, 0), inner)
	require.NoError(t, late.SetWindow("+15550002", 8*60, 18*60, "America/Los_Angeles"))
	require.NoError(t, late.Send(context.Background(), "+15550002", "night"))
	assert.Equal(t, 1, late.QueuedCount("+15550002"))
}

func TestWindowedSender_InvalidTimezone(t *testing.T) {
	sender := newWindowedSender(t, fixedClock(3, 0), &mockSender{})
	require.Error(t, sender.SetWindow("+15550001", 0, 0, "Not/AZone"))
}

func TestWindowedSender_FailedDeliveryRequeues(t *testing.T) {
	inner := &mockSender{SendFn: func(ctx context.Context, to, body string) error {
		return errors.New("carrier unavailable")
	}}
	sender := newWindowedSender(t, fixedClock(10, 0), inner)

	err := sender.Send(context.Background(), "+15550001", "hello")
	require.Error(t, err)
	assert.Equal(t, 1, sender.QueuedCount("+15550001"), "undelivered messages stay queued")
}
