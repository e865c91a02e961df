// Package transport provides the HTTP round tripper shared by the REST
// providers.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// DefaultRetryWait is used when a 429 response carries no usable Retry-After.
const DefaultRetryWait = time.Second

// RetryTransport retries requests answered with 429 Too Many Requests,
// honouring the Retry-After header, up to MaxRetries times.
type RetryTransport struct {
	base       http.RoundTripper
	maxRetries int
	logger     *log.Logger
}

// WithRetries wraps base (http.DefaultTransport when nil).
func WithRetries(base http.RoundTripper, maxRetries int, logger *log.Logger) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RetryTransport{base: base, maxRetries: maxRetries, logger: logger}
}

// NewClient returns an HTTP client using a RetryTransport. No client timeout
// is set because streamed replies can take arbitrarily long; cancel through
// the request context instead.
func NewClient(maxRetries int, logger *log.Logger) *http.Client {
	return &http.Client{Transport: WithRetries(nil, maxRetries, logger)}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Preserve the original request body for retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			return nil, fmt.Errorf("failed to close request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.maxRetries {
			return resp, nil
		}

		wait := retryAfter(resp.Header.Get("Retry-After"))
		if err := resp.Body.Close(); err != nil {
			return nil, fmt.Errorf("failed to close response body: %w", err)
		}

		t.logger.Printf("rate limited by %s, retry %d/%d in %s", req.URL.Host, attempt+1, t.maxRetries, wait)
		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
func retryAfter(value string) time.Duration {
	if value == "" {
		return DefaultRetryWait
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryWait
}
