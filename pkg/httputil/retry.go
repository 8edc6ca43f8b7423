package httputil

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// RetryTransport retries transient failures (network errors, 429, 5xx) with
// jittered exponential backoff. It is only installed when the caller opts in
// through configuration.
type RetryTransport struct {
	base   http.RoundTripper
	config RetryConfig
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

func NewRetryTransport(base http.RoundTripper, config RetryConfig) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay == 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier == 0 {
		config.Multiplier = 2.0
	}

	return &RetryTransport{
		base:   base,
		config: config,
	}
}

// NewClient wraps the transport in an http.Client with the given timeout.
func NewClient(config RetryConfig, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewRetryTransport(nil, config),
		Timeout:   timeout,
	}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	delay := t.config.InitialDelay

	for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
		attemptReq := req
		if attempt > 0 {
			if req.Body != nil && req.Body != http.NoBody {
				if req.GetBody == nil {
					return resp, err
				}
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					if resp != nil {
						_ = resp.Body.Close()
					}
					return nil, bodyErr
				}
				attemptReq = req.Clone(req.Context())
				attemptReq.Body = body
			}

			if sleepErr := sleep(req.Context(), applyJitter(delay)); sleepErr != nil {
				if resp != nil {
					_ = resp.Body.Close()
				}
				return nil, sleepErr
			}
			delay = min(time.Duration(float64(delay)*t.config.Multiplier), t.config.MaxDelay)
		}

		if resp != nil {
			_ = resp.Body.Close()
		}

		resp, err = t.base.RoundTrip(attemptReq)
		if !shouldRetry(resp, err) {
			return resp, err
		}
	}

	return resp, err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return true
		}
		var dnsErr *net.DNSError
		return errors.As(err, &dnsErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}

	return resp.StatusCode >= 500 && resp.StatusCode < 600
}

func applyJitter(delay time.Duration) time.Duration {
	jitterFactor := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(delay) * jitterFactor)
}
