package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, 10*time.Millisecond, 100*time.Millisecond)
	cases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 0, false},
		{"server error", &StatusError{Code: http.StatusBadGateway}, 0, true},
		{"too many requests", fmt.Errorf("wrapped: %w", &StatusError{Code: http.StatusTooManyRequests}), 1, true},
		{"not found", &StatusError{Code: http.StatusNotFound}, 0, false},
		{"attempts exhausted", &StatusError{Code: http.StatusBadGateway}, 2, false},
		{"canceled", context.Canceled, 0, false},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), 0, true},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), 0, true},
		{"plain error", errors.New("connection refused"), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, p.ShouldRetry(tc.err, tc.attempt))
		})
	}
}

func TestExponentialRetryPolicyDisabled(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	assert.False(t, p.ShouldRetry(&StatusError{Code: http.StatusServiceUnavailable}, 0))
}

func TestExponentialRetryPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 10*time.Millisecond, 40*time.Millisecond)
	for attempt := 0; attempt < 6; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}
}
