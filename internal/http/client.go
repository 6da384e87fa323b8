package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultUserAgent is sent with every request unless WithUserAgent overrides it.
const DefaultUserAgent = "dlqueue/1.0"

// maxBodySize caps in-memory downloads; thumbnails are far below it.
const maxBodySize = 32 << 20

// Client wraps net/http with the proxy, timeout and User-Agent a job was
// submitted with.
//
//	client, err := NewClient(WithProxy(job.Options.Proxy))
//	thumb, err := client.DownloadBytes(ctx, job.Metadata.Thumbnail)
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

type clientConfig struct {
	timeout   time.Duration
	userAgent string
	proxy     *url.URL
	transport http.RoundTripper
}

// WithTimeout sets the overall request timeout (default 60s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		c.timeout = d
		return nil
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

// WithProxy routes requests through proxy (http, https or socks5 URL).
// An empty string means no proxy.
func WithProxy(proxy string) ClientOption {
	return func(c *clientConfig) error {
		if proxy == "" {
			return nil
		}
		u, err := url.Parse(proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy %q: %w", proxy, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
		c.proxy = u
		return nil
	}
}

// WithTransport replaces the round tripper, mainly for tests.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) error {
		c.transport = rt
		return nil
	}
}

// NewClient creates a Client. It fails only on an invalid proxy.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{timeout: 60 * time.Second, userAgent: DefaultUserAgent}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	transport := cfg.transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.proxy != nil {
			t.Proxy = http.ProxyURL(cfg.proxy)
		}
		transport = t
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.timeout, Transport: transport},
		userAgent:  cfg.userAgent,
	}, nil
}

// ProgressWriter counts bytes written through it and reports them to OnUpdate.
type ProgressWriter struct {
	Writer   io.Writer
	Total    int64 // -1 when unknown
	Written  int64
	OnUpdate func(written, total int64)
}

// Write implements io.Writer.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return resp, nil
}

// Get performs a GET request and returns the body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", rawURL, maxBodySize)
	}
	return body, nil
}

// GetFileSize returns the Content-Length reported by a HEAD request.
func (c *Client) GetFileSize(ctx context.Context, rawURL string) (int64, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("no Content-Length header for %s", rawURL)
	}
	return resp.ContentLength, nil
}

// DownloadFile streams the body of rawURL into destPath. onProgress may be nil.
// A partially written file is removed on failure.
func (c *Client) DownloadFile(ctx context.Context, rawURL, destPath string, onProgress func(written, total int64)) (err error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, file.Close())
		if err != nil {
			os.Remove(destPath)
		}
	}()

	var w io.Writer = file
	if onProgress != nil {
		w = &ProgressWriter{Writer: file, Total: resp.ContentLength, OnUpdate: onProgress}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// DownloadBytes downloads a small resource such as a thumbnail into memory.
func (c *Client) DownloadBytes(ctx context.Context, rawURL string) ([]byte, error) {
	return c.Get(ctx, rawURL)
}
