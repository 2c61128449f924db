package shared

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPRequestRateLimiter enforces a minimum delay between requests to a device
// that can only serve one capture at a time
type HTTPRequestRateLimiter struct {
	minimumDelay    time.Duration // Minimum delay between requests
	lastRequestTime time.Time     // Timestamp of the last request
	mutex           sync.Mutex    // Ensures thread-safe access
	requestCount    int64         // Total number of requests processed
}

// NewHTTPRequestRateLimiter creates a new rate limiter with the specified minimum delay
func NewHTTPRequestRateLimiter(minimumDelay time.Duration) *HTTPRequestRateLimiter {
	return &HTTPRequestRateLimiter{
		minimumDelay: minimumDelay,
	}
}

// Wait blocks until the minimum delay has elapsed since the last request or
// the context is done
func (limiter *HTTPRequestRateLimiter) Wait(ctx context.Context) error {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	elapsedTime := time.Since(limiter.lastRequestTime)
	if !limiter.lastRequestTime.IsZero() && elapsedTime < limiter.minimumDelay {
		remainingDelay := limiter.minimumDelay - elapsedTime

		logrus.WithFields(logrus.Fields{
			"component":       "HTTPRequestRateLimiter",
			"elapsed_time":    elapsedTime,
			"minimum_delay":   limiter.minimumDelay,
			"remaining_delay": remainingDelay,
			"request_count":   limiter.requestCount + 1,
		}).Debug("Enforcing rate limit delay")

		timer := time.NewTimer(remainingDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	limiter.lastRequestTime = time.Now()
	limiter.requestCount++
	return nil
}

// GetRequestCount returns the total number of requests processed
func (limiter *HTTPRequestRateLimiter) GetRequestCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.requestCount
}

// Reset resets the rate limiter state
func (limiter *HTTPRequestRateLimiter) Reset() {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	limiter.lastRequestTime = time.Time{}
	limiter.requestCount = 0

	logrus.WithField("component", "HTTPRequestRateLimiter").Debug("Reset rate limiter state")
}
