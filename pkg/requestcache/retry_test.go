package requestcache_test

import (
	"testing"
	"time"

	"github.com/illmade-knight/go-integrations/pkg/requestcache"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_BackoffSchedule(t *testing.T) {
	policy := requestcache.RetryPolicy{
		MaxAttempts:    6,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
	}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, policy.Backoff(i+1), "backoff after attempt %d", i+1)
	}
}

func TestRetryPolicy_BackoffMonotone(t *testing.T) {
	policy := requestcache.DefaultRetryPolicy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		wait := policy.Backoff(attempt)
		assert.GreaterOrEqual(t, wait, prev, "the schedule never decreases")
		assert.LessOrEqual(t, wait, policy.MaxBackoff, "the cap is never exceeded")
		prev = wait
	}
}
