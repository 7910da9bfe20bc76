// Package httpds reads CSV inputs over HTTP(S).
//
// A download is retried on transport errors, 429 and 5xx until the response
// headers of a 2xx arrive. From then on the body is the input stream and a
// broken connection is an ordinary source failure.
package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultHeaderTimeout  = 30 * time.Second
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultUserAgent      = "ysv"

	// drainLimit bounds how much of a rejected body is read so the
	// connection can be reused.
	drainLimit = 4 << 10
)

// Config configures the client. Zero durations get package defaults.
type Config struct {
	// HeaderTimeout bounds the wait for response headers only; input bodies
	// can be arbitrarily large.
	HeaderTimeout time.Duration

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Header    http.Header
	UserAgent string

	Transport http.RoundTripper
}

// Client downloads input files.
type Client struct {
	hc      *http.Client
	retries int
	backoff struct{ initial, max time.Duration }
	header  http.Header
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) *Client {
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = defaultHeaderTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	rt := cfg.Transport
	if rt == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = cfg.HeaderTimeout
		rt = tr
	}

	h := cfg.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get("User-Agent") == "" {
		ua := cfg.UserAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		h.Set("User-Agent", ua)
	}

	c := &Client{
		hc:      &http.Client{Transport: rt},
		retries: max(cfg.MaxRetries, 0),
		header:  h,
		now:     time.Now,
		sleep:   sleepWithContext,
	}
	c.backoff.initial, c.backoff.max = cfg.InitialBackoff, cfg.MaxBackoff
	return c
}

// StatusError is a final non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Get returns the body of a 2xx response for url. The caller closes it.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, wait, err := c.try(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if wait < 0 || attempt >= c.retries {
			return nil, lastErr
		}
		if wait == 0 {
			wait = backoffDuration(c.backoff.initial, attempt, c.backoff.max)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// try issues one request. On failure wait is negative for a permanent error,
// zero for the default backoff, or the delay the server asked for.
func (c *Client) try(ctx context.Context, url string) (body io.ReadCloser, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("httpds: build request: %w", err)
	}
	req.Header = c.header.Clone()

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpds: GET %s: %w", url, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp.Body, 0, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
	serr := &StatusError{URL: url, StatusCode: resp.StatusCode}
	if !isRetryableStatus(resp.StatusCode) {
		return nil, -1, serr
	}
	if d, ok := retryAfter(resp.Header.Get("Retry-After"), c.now()); ok {
		return nil, min(d, c.backoff.max), serr
	}
	return nil, 0, serr
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// retryAfter parses a Retry-After value, either delay-seconds or an HTTP date.
// A date in the past yields a zero delay with ok false.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, false
}

// backoffDuration returns initial * 2^attempt, clamped to limit.
func backoffDuration(initial time.Duration, attempt int, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return limit
	}
	if d := initial << attempt; d > 0 && d <= limit {
		return d
	}
	return limit
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
