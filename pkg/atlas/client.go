// Package atlas is a client for the Atlas credential issuance endpoint.
//
// A Client posts caller-supplied JSON to {baseURL}/v1/vrc/issue and hands the
// response body back verbatim. Payloads are never parsed and HTTP status codes
// are never turned into errors: the only failure is a transport failure.
package atlas

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/atlas-sanctum/vrc-issuer/pkg/httpclient"
	"github.com/atlas-sanctum/vrc-issuer/pkg/logging"
)

const (
	// IssuePath is the credential issuance path relative to the base URL.
	IssuePath = "/v1/vrc/issue"

	// ContentTypeJSON is sent with every issue request.
	ContentTypeJSON = "application/json; charset=utf-8"
)

// Client issues credentials against a single Atlas base URL. Its configuration
// is fixed at construction and it is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	transport httpclient.Client
	log       Logger
}

// Response is the raw outcome of an issue call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// IsSuccess reports whether the server answered with a 2xx status.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// New builds a Client for baseURL. An empty apiKey means no Authorization
// header is sent.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		log:     logging.Nop{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.transport == nil {
		c.transport = httpclient.NewRestyClientWith(c.http, c.timeout)
	}
	return c, nil
}

// MustNew is like New but panics on option errors.
func MustNew(baseURL, apiKey string, opts ...Option) *Client {
	c, err := New(baseURL, apiKey, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// HasAPIKey reports whether requests carry a bearer token.
func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// IssueURL returns the absolute issuance endpoint.
func (c *Client) IssueURL() string { return c.baseURL + IssuePath }

// IssueCredential posts payload to the issuance endpoint and returns the
// response body as text, whatever the HTTP status.
func (c *Client) IssueCredential(ctx context.Context, payload string) (string, error) {
	resp, err := c.IssueCredentialResponse(ctx, payload)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// IssueCredentialResponse is IssueCredential with the status code and headers
// kept, for callers that want to inspect non-2xx replies themselves.
func (c *Client) IssueCredentialResponse(ctx context.Context, payload string) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	url := c.IssueURL()

	start := time.Now()
	resp, err := c.transport.Post(ctx, url, c.headers(), []byte(payload))
	if err != nil {
		c.log.DebugObj("atlas issue failed", "atlas_issue", map[string]any{
			"url":        url,
			"elapsed_ms": time.Since(start).Milliseconds(),
			"error":      err.Error(),
		})
		return nil, &TransportError{Op: "issue", URL: url, Err: err}
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       string(resp.Body()),
	}
	c.log.DebugObj("atlas issue completed", "atlas_issue", map[string]any{
		"url":         url,
		"status":      out.StatusCode,
		"body_bytes":  len(out.Body),
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"bearer_auth": c.HasAPIKey(),
	})
	return out, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Content-Type": ContentTypeJSON,
	}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	if c.userAgent != "" {
		h["User-Agent"] = c.userAgent
	}
	return h
}
