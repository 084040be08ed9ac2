// Package policyclient implements the Policy Client: CREATE and UPDATE
// requests against the Policy API's single endpoint (spec §4.4). It
// supports normal, dry-run, and mock modes and applies fail-open
// semantics on network failure, 5xx, or timeout.
package policyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/subluminal/hookmediator/internal/hookevent"
	"github.com/subluminal/hookmediator/internal/payload"
)

// dryRunWriter is where dry-run payloads print; a var so tests can swap
// it for a buffer.
var dryRunWriter io.Writer = os.Stderr

// Client is the Policy Client. Its shape — a struct holding the base
// URL and an *http.Client with a fixed timeout, configured through
// functional options — follows the pack's AnthropicProvider pattern.
type Client struct {
	baseURL     string
	client      *http.Client
	dryRun      bool
	mockMode    bool
	blockTokens []string
	failOpen    bool

	// retryLimiter bounds the single retried UPDATE call so a flapping
	// upstream cannot turn one invocation into an unbounded retry storm.
	retryLimiter *rate.Limiter
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides the HTTP client's request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithDryRun enables dry-run mode: payloads print to stderr and a
// synthetic passed verdict is returned, no network call occurs.
func WithDryRun(v bool) Option {
	return func(c *Client) { c.dryRun = v }
}

// WithMockMode enables mock mode: no network call occurs; the verdict is
// blocked if any configured token occurs as a substring of the content.
func WithMockMode(v bool, blockTokens []string) Option {
	return func(c *Client) {
		c.mockMode = v
		c.blockTokens = blockTokens
	}
}

// WithFailOpen sets the fail-open policy for network/5xx/timeout errors.
func WithFailOpen(v bool) Option {
	return func(c *Client) { c.failOpen = v }
}

// New constructs a Client for the given Policy API base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 15 * time.Second},
		failOpen:     true,
		retryLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create performs the CREATE operation (spec §4.4). CREATE is never
// retried, to avoid duplicate opens on a flaky upstream.
func (c *Client) Create(ctx context.Context, req payload.Request) (hookevent.Verdict, error) {
	if c.mockMode {
		verdict := c.mockVerdict(req.Input, "")
		if !verdict.Blocked() {
			verdict.EventID = uuid.NewString()
		}
		return verdict, nil
	}
	if c.dryRun {
		c.printPayload("CREATE", req)
		return hookevent.Verdict{Result: hookevent.ResultPassed, EventID: uuid.NewString()}, nil
	}
	return c.post(ctx, req, false)
}

// Update performs the UPDATE operation (spec §4.4). UPDATE may retry
// once, since event_id makes the request idempotent.
func (c *Client) Update(ctx context.Context, req payload.Request) (hookevent.Verdict, error) {
	if c.mockMode {
		return c.mockVerdict(req.Input, req.Output), nil
	}
	if c.dryRun {
		c.printPayload("UPDATE", req)
		return hookevent.Verdict{Result: hookevent.ResultPassed}, nil
	}
	return c.post(ctx, req, true)
}

func (c *Client) mockVerdict(input, output string) hookevent.Verdict {
	for _, token := range c.blockTokens {
		if token == "" {
			continue
		}
		if strings.Contains(input, token) || strings.Contains(output, token) {
			return hookevent.Verdict{Result: hookevent.ResultBlocked, Reason: "mock-block-token: " + token}
		}
	}
	return hookevent.Verdict{Result: hookevent.ResultPassed}
}

func (c *Client) printPayload(op string, req payload.Request) {
	data, _ := json.Marshal(req)
	fmt.Fprintf(dryRunWriter, "[dry-run %s] %s\n", op, string(data))
}

func (c *Client) post(ctx context.Context, req payload.Request, retryable bool) (hookevent.Verdict, error) {
	verdict, err := c.postOnce(ctx, req)
	if err == nil {
		return verdict, nil
	}

	if retryable && c.retryLimiter.Allow() {
		verdict, err = c.postOnce(ctx, req)
		if err == nil {
			return verdict, nil
		}
	}

	// Network failure, 5xx, or timeout: resolve per fail-open (spec
	// §4.4, §7). 4xx responses are surfaced via the same path by
	// postOnce returning an error with the status embedded.
	if c.failOpen {
		return hookevent.Verdict{Result: hookevent.ResultPassed, Reason: "upstream-unavailable"}, nil
	}
	return hookevent.Verdict{Result: hookevent.ResultRejected}, nil
}

func (c *Client) postOnce(ctx context.Context, req payload.Request) (hookevent.Verdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return hookevent.Verdict{}, fmt.Errorf("policyclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return hookevent.Verdict{}, fmt.Errorf("policyclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return hookevent.Verdict{}, fmt.Errorf("policyclient: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return hookevent.Verdict{}, fmt.Errorf("policyclient: upstream status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// 4xx: log and fail-open per spec §4.4, not a transport-level
		// error, but the caller's fail-open path handles it uniformly.
		return hookevent.Verdict{}, fmt.Errorf("policyclient: client error status %d", resp.StatusCode)
	}

	var verdict hookevent.Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return hookevent.Verdict{}, fmt.Errorf("policyclient: decode response: %w", err)
	}
	return verdict, nil
}
