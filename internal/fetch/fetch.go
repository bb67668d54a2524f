package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Kind classifies why an outbound call failed.
type Kind string

const (
	KindConnectivity Kind = "connectivity"
	KindRateLimited  Kind = "rate_limited"
	KindTimeout      Kind = "timeout"
	KindServer       Kind = "server"
	KindMalformed    Kind = "malformed"
)

// Error is the typed failure surfaced to adapters after all retries are
// spent. Kind reflects the last concrete cause.
type Error struct {
	Kind     Kind
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts (%s): %v", e.URL, e.Attempts, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain, or "" if the error
// did not come from this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Options control the retry envelope of a Client.
type Options struct {
	Retries     int
	BaseTimeout time.Duration
	MaxTimeout  time.Duration
	BaseDelay   time.Duration
	DelayCap    time.Duration
	MaxJitter   time.Duration
	Header      http.Header
	// RateBurst caps outbound requests to a politeness budget: at most
	// RateBurst in-flight starts, refilling one every RatePeriod. Zero
	// leaves the client unthrottled.
	RateBurst  int
	RatePeriod time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.BaseTimeout <= 0 {
		o.BaseTimeout = 2500 * time.Millisecond
	}
	if o.MaxTimeout <= 0 {
		o.MaxTimeout = 10 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 250 * time.Millisecond
	}
	if o.DelayCap <= 0 {
		o.DelayCap = 5 * time.Second
	}
	if o.MaxJitter <= 0 {
		o.MaxJitter = time.Second
	}
	return o
}

// Client performs a single outbound GET or POST with bounded retries,
// growing per-attempt timeouts, exponential backoff with jitter, and an
// advisory endpoint-substitution cache for unreachable hosts.
type Client struct {
	client *http.Client
	tracer trace.Tracer
	opts   Options

	limiter *RateLimiter

	mu         sync.Mutex
	alternates map[string]string

	jitter func(max time.Duration) time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewClient(tracer trace.Tracer, opts Options) *Client {
	opts = opts.withDefaults()
	var limiter *RateLimiter
	if opts.RateBurst > 0 && opts.RatePeriod > 0 {
		limiter = NewRateLimiter(opts.RateBurst, opts.RatePeriod)
	}
	return &Client{
		// The transport-level timeout stays off: each attempt owns its
		// own context deadline instead.
		client:     &http.Client{Transport: opts.Transport},
		tracer:     tracer,
		opts:       opts,
		limiter:    limiter,
		alternates: make(map[string]string),
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// RegisterAlternate records a last-known-good substitute host for a primary
// hostname. The cache is advisory: it is consulted only after a
// connectivity failure and is safe to discard at any time.
func (c *Client) RegisterAlternate(host, alternate string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alternates[host] = alternate
}

func (c *Client) alternateFor(host string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	alt, ok := c.alternates[host]
	return alt, ok
}

// Get fetches the URL body, retrying per the client options.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodGet, rawURL, nil)
}

// Post sends a JSON body and returns the response payload, retrying per the
// client options.
func (c *Client) Post(ctx context.Context, rawURL string, body []byte) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodPost, rawURL, body)
}

// GetJSON fetches the URL and decodes the payload into out. A body that
// fails to decode counts as a malformed response.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindMalformed, URL: rawURL, Attempts: 1, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

// PostJSON sends a JSON body and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	resp, err := c.Post(ctx, rawURL, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return &Error{Kind: KindMalformed, URL: rawURL, Attempts: 1, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	_, span := c.tracer.Start(ctx, "fetch.round-trip")
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method))

	target := rawURL
	backoff := NewBackoffState(c.opts.BaseDelay, c.opts.DelayCap)

	var lastErr error
	var lastKind Kind

	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &Error{Kind: KindTimeout, URL: rawURL, Attempts: attempt, Err: err}
			}
		}
		payload, kind, err := c.attempt(ctx, method, target, body, c.attemptTimeout(attempt))
		if err == nil {
			span.SetAttributes(attribute.Int("fetch.attempts", attempt))
			return payload, nil
		}
		lastErr = err
		lastKind = kind

		if kind == KindConnectivity {
			if next, ok := c.substituteHost(target); ok {
				target = next
			}
		}

		if attempt == c.opts.Retries {
			break
		}
		backoff = backoff.Next()
		delay := backoff.Delay + c.jitter(c.opts.MaxJitter)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			lastKind = KindTimeout
			break
		}
	}

	span.SetAttributes(attribute.Int("fetch.attempts", c.opts.Retries), attribute.String("fetch.failure_kind", string(lastKind)))
	return nil, &Error{Kind: lastKind, URL: rawURL, Attempts: c.opts.Retries, Err: lastErr}
}

// attemptTimeout grows with the attempt index: congested or rate-limited
// endpoints tend to need more headroom on later tries.
func (c *Client) attemptTimeout(attempt int) time.Duration {
	t := c.opts.BaseTimeout * time.Duration(attempt)
	if t > c.opts.MaxTimeout {
		t = c.opts.MaxTimeout
	}
	return t
}

func (c *Client) attempt(ctx context.Context, method, target string, body []byte, timeout time.Duration) ([]byte, Kind, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return nil, KindConnectivity, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() != nil {
			return nil, KindTimeout, err
		}
		return nil, KindConnectivity, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, KindConnectivity, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return payload, "", nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, KindRateLimited, fmt.Errorf("upstream rate limited (%d): %s", resp.StatusCode, truncate(payload, 200))
	default:
		return nil, KindServer, fmt.Errorf("upstream error %d: %s", resp.StatusCode, truncate(payload, 200))
	}
}

func (c *Client) substituteHost(target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	alt, ok := c.alternateFor(u.Hostname())
	if !ok {
		return "", false
	}
	u.Host = alt
	return u.String(), true
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
