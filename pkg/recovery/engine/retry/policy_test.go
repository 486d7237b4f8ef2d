package retry_test

import (
	"errors"
	"io"
	"testing"
	"time"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	"github.com/tigerroll/tidal/pkg/recovery/engine/retry"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"

	"github.com/stretchr/testify/assert"
)

func newTestPolicy() retry.RetryPolicy {
	factory := retry.NewDefaultRetryPolicyFactory()
	return factory.Create(config.MonitorConfig{
		Retry: config.RetryConfig{
			MaxAttempts:     5,
			InitialInterval: 500,
			MaxInterval:     5000,
			Factor:          2.0,
		},
		RetryableExceptions: []string{"io.EOF"},
	})
}

func TestShouldRetry(t *testing.T) {
	policy := newTestPolicy()

	assert.False(t, policy.ShouldRetry(nil))

	retryable := exception.NewRecoveryError("monitor", "throttled by remote service", nil, true)
	assert.True(t, policy.ShouldRetry(retryable))

	permanent := exception.NewRecoveryError("monitor", "job definition rejected", nil, false)
	assert.False(t, policy.ShouldRetry(permanent))

	// Errors from the configured exception list are retryable even without the flag.
	assert.True(t, policy.ShouldRetry(io.EOF))

	assert.False(t, policy.ShouldRetry(errors.New("unknown failure")))
}

// withinJitter asserts the interval lands inside the ±25% band around base,
// never exceeding the configured cap.
func withinJitter(t *testing.T, base, cap, actual time.Duration) {
	t.Helper()
	low := time.Duration(float64(base) * 0.75)
	high := time.Duration(float64(base) * 1.25)
	if high > cap {
		high = cap
	}
	assert.GreaterOrEqual(t, actual, low, "interval below jitter band for base %v", base)
	assert.LessOrEqual(t, actual, high, "interval above jitter band for base %v", base)
}

func TestGetBackoffInterval_ExponentialWithCap(t *testing.T) {
	policy := newTestPolicy()
	cap := 5000 * time.Millisecond

	withinJitter(t, cap, cap, policy.GetBackoffInterval(5))
	withinJitter(t, cap, cap, policy.GetBackoffInterval(10))

	// Attempt numbers below 1 are clamped to the first interval.
	withinJitter(t, 500*time.Millisecond, cap, policy.GetBackoffInterval(0))
}

func TestGetBackoffInterval_JitteredGrowth(t *testing.T) {
	policy := newTestPolicy()
	cap := 5000 * time.Millisecond

	bases := []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
	}
	for attempt, base := range bases {
		for i := 0; i < 20; i++ {
			withinJitter(t, base, cap, policy.GetBackoffInterval(attempt+1))
		}
	}
}

func TestGetMaxAttempts(t *testing.T) {
	policy := newTestPolicy()
	assert.Equal(t, 5, policy.GetMaxAttempts())
}
