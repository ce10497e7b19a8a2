// Package api talks to the repository content endpoints: it fetches tree
// and blob documents, decodes them into model.Payload and derives the
// related tree/raw URLs.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vanderheijden86/repoview/pkg/metrics"
	"github.com/vanderheijden86/repoview/pkg/version"
)

// DefaultTimeout bounds a single content request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response is read into memory.
const maxBodySize = 32 << 20

const tokenHeader = "PRIVATE-TOKEN"

// Common errors.
var (
	ErrStatus   = errors.New("unexpected response status")
	ErrNotFound = errors.New("content not found")
	ErrTooLarge = errors.New("response body too large")
)

// StatusError describes a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets errors.Is match ErrStatus, and ErrNotFound for 404s.
func (e *StatusError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{ErrStatus, ErrNotFound}
	}
	return []error{ErrStatus}
}

// RawFetcher returns the undecoded body stored at a URL.
type RawFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sends the token in the PRIVATE-TOKEN header.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets a logger for request tracing.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client fetches repository documents over HTTP. Relative URLs are resolved
// against the base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	logger *log.Logger
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL is empty")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}

	// The token must not follow a redirect to another server.
	hc := *c.http
	next := hc.CheckRedirect
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !c.sameOrigin(req.URL) {
			req.Header.Del(tokenHeader)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	c.http = &hc
	return c, nil
}

// sameOrigin reports whether u lives on the base URL's scheme and host.
func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.base.Scheme) && strings.EqualFold(u.Host, c.base.Host)
}

// Resolve turns a possibly relative resource URL into an absolute one.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", ref, err)
	}
	return c.base.ResolveReference(u).String(), nil
}

// Fetch performs a GET and returns the response body.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	defer metrics.Timer(metrics.Fetch)()

	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" && c.sameOrigin(req.URL) {
		req.Header.Set(tokenHeader, c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	c.logger.Printf("GET %s -> %d (%v)", target, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("reading %s: %w", target, ErrTooLarge)
	}
	return body, nil
}
