// Package policyclient implements the outbound HTTP client for the three
// policy-service endpoints of §4.2a/§6.2: init_tools, inspect_policy_request,
// inspect_policy_response, and record_user_confirmation.
package policyclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
)

// maxResponseBodySize bounds how much of a policy-service response this
// client will read, guarding against an unbounded or malicious response.
const maxResponseBodySize = 4 * 1024 * 1024 // 4MB

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every /inspect/* and /confirm call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.http != nil {
			c.http.Timeout = d
		}
	}
}

// WithInitDebounce sets the minimum interval between successive /init
// sends for an unchanged tool list (§4.3.3). Default 60s.
func WithInitDebounce(d time.Duration) Option {
	return func(c *Client) { c.initDebounce = d }
}

// Client is the outbound adapter to the remote policy service. All
// inspection methods are fail-closed: a transport error or non-2xx status
// never surfaces as a Go error, it is synthesized into a block Verdict via
// enforce.SecurityAPIUnavailable (§4.2a) so the caller always gets a
// verdict it can Enforce against.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger

	initDebounce time.Duration
	initMu       sync.Mutex
	lastInit     time.Time
	lastToolsKey string
}

// New creates a policy-service client. baseURL is the service's base URL
// (e.g. "https://api.mcpower.dev"); apiKey authenticates this wrapper
// instance.
func New(baseURL, apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		initDebounce: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InitTools sends POST /init, debounced to at most once per InitDebounce
// interval for an unchanged tool list (§4.3.3). Failures are logged only;
// init_tools never blocks or fails the operation pipeline.
func (c *Client) InitTools(ctx context.Context, req InitRequest) {
	key := req.SessionID + "|" + toolsKey(req.Tools)

	c.initMu.Lock()
	now := time.Now()
	if key == c.lastToolsKey && now.Sub(c.lastInit) < c.initDebounce {
		c.initMu.Unlock()
		return
	}
	c.lastToolsKey = key
	c.lastInit = now
	c.initMu.Unlock()

	if err := c.post(ctx, "/init", req, nil); err != nil {
		c.logger.Warn("policy service init_tools failed", "error", err)
	}
}

func toolsKey(tools []ToolInfo) string {
	var b bytes.Buffer
	for _, t := range tools {
		b.WriteString(t.Name)
		b.WriteByte(';')
	}
	return b.String()
}

// InspectRequest calls POST /inspect/request (inspect_policy_request). It
// never returns a transport error: any failure synthesizes a fail-closed
// block Verdict (§4.2a).
func (c *Client) InspectRequest(ctx context.Context, req PolicyRequest) enforce.Verdict {
	var wire verdictWire
	if err := c.post(ctx, "/inspect/request", req, &wire); err != nil {
		c.logger.Error("policy service inspect_policy_request failed", "error", err)
		return enforce.SecurityAPIUnavailable(err)
	}
	return toVerdict(wire)
}

// InspectResponse calls POST /inspect/response (inspect_policy_response).
// Same fail-closed contract as InspectRequest.
func (c *Client) InspectResponse(ctx context.Context, req PolicyResponse) enforce.Verdict {
	var wire verdictWire
	if err := c.post(ctx, "/inspect/response", req, &wire); err != nil {
		c.logger.Error("policy service inspect_policy_response failed", "error", err)
		return enforce.SecurityAPIUnavailable(err)
	}
	return toVerdict(wire)
}

// RecordUserConfirmation calls POST /confirm (record_user_confirmation),
// fire-and-forget: errors are logged only and never surfaced to the
// pipeline (§4.2a).
func (c *Client) RecordUserConfirmation(ctx context.Context, confirmation UserConfirmation) {
	if err := c.post(ctx, "/confirm", confirmation, nil); err != nil {
		c.logger.Warn("policy service record_user_confirmation failed", "error", err)
	}
}

func toVerdict(w verdictWire) enforce.Verdict {
	return enforce.Verdict{
		Decision:   enforce.Decision(w.Decision),
		Severity:   enforce.ParseSeverity(w.Severity),
		Reasons:    w.Reasons,
		NeedFields: w.NeedFields,
		CallType:   w.CallType,
	}
}

// post marshals body, issues a POST against baseURL+path, and unmarshals
// the response into out (when non-nil). Non-2xx statuses and transport
// failures are returned as an error for the caller to act on per its own
// fail-closed contract.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
