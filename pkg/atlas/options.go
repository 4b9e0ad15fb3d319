package atlas

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atlas-sanctum/vrc-issuer/pkg/httpclient"
	"github.com/atlas-sanctum/vrc-issuer/pkg/logging"
)

// Option mutates the Client during New().
type Option func(*Client) error

// WithHTTPClient makes the client share hc's transport and connection pool.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("nil http client")
		}
		c.http = hc
		return nil
	}
}

// WithTimeout bounds each request. Without it the transport's defaults apply.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("negative timeout %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = strings.TrimSpace(ua)
		return nil
	}
}

// WithLogger enables debug logging of every call.
func WithLogger(l Logger) Option {
	return func(c *Client) error {
		c.log = logging.Ensure(l)
		return nil
	}
}

// WithTransport replaces the HTTP layer entirely, mostly for tests.
func WithTransport(t httpclient.Client) Option {
	return func(c *Client) error {
		if t == nil {
			return fmt.Errorf("nil transport")
		}
		c.transport = t
		return nil
	}
}
