// Package retry provides the retry policy used by components that call the remote
// job service.
package retry

import (
	"math"
	"math/rand"
	"time"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
)

// RetryPolicy is an interface that defines retry logic.
// It provides methods to determine if a specific error is retryable, and to determine
// the backoff interval between retries.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the backoff interval for a given attempt number
	// (starting from 1).
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the maximum number of attempts.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory is a factory for creating RetryPolicy instances based on
// configuration.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create creates a new RetryPolicy instance from the monitor configuration.
func (f *DefaultRetryPolicyFactory) Create(cfg config.MonitorConfig) RetryPolicy {
	return &defaultRetryPolicy{
		maxAttempts:         cfg.Retry.MaxAttempts,
		initialInterval:     time.Duration(cfg.Retry.InitialInterval) * time.Millisecond,
		maxInterval:         time.Duration(cfg.Retry.MaxInterval) * time.Millisecond,
		factor:              cfg.Retry.Factor,
		retryableExceptions: cfg.RetryableExceptions,
	}
}

// defaultRetryPolicy is the default implementation of RetryPolicy. It applies
// exponential backoff capped at maxInterval.
type defaultRetryPolicy struct {
	maxAttempts         int
	initialInterval     time.Duration
	maxInterval         time.Duration
	factor              float64
	retryableExceptions []string
}

// GetMaxAttempts returns the maximum number of attempts.
func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry determines if an error is retryable.
// The determination is based on the IsRetryable flag of RecoveryError, or by matching
// against the configured list of retryable exceptions.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// 1. Check the RecoveryError flag.
	if exception.IsRecoveryError(err) && exception.IsTemporary(err) {
		return true
	}

	// 2. Match against the configured retryable exceptions list.
	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}

	return false
}

// backoffJitterFraction bounds the random spread applied to each backoff interval.
const backoffJitterFraction = 0.25

// GetBackoffInterval returns the backoff interval for the given attempt number.
// The interval grows by factor per attempt, is capped at maxInterval, and carries
// up to ±25% random jitter.
func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.factor
	if factor < 1 {
		factor = 1
	}
	interval := time.Duration(float64(p.initialInterval) * math.Pow(factor, float64(attempt-1)))
	if p.maxInterval > 0 && interval > p.maxInterval {
		interval = p.maxInterval
	}
	spread := 1 - backoffJitterFraction + 2*backoffJitterFraction*rand.Float64()
	jittered := time.Duration(float64(interval) * spread)
	if p.maxInterval > 0 && jittered > p.maxInterval {
		jittered = p.maxInterval
	}
	return jittered
}

// Verify interfaces
var _ RetryPolicy = (*defaultRetryPolicy)(nil)
