// Package webhook triggers a configured URL with a single GET per call.
package webhook

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/notify"
)

// UserAgent is sent with every request.
const UserAgent = "garage-door-alerter"

// maxBody caps how much of the response is read back.
const maxBody = 15000

// DefaultTimeout bounds one exchange.
const DefaultTimeout = 10 * time.Second

// Config describes the webhook target.
type Config struct {
	TLS     bool
	Host    string
	Port    int
	Path    string
	Timeout time.Duration
}

// URL builds the request URL from the config.
func (c Config) URL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	host := c.Host
	if c.Port != 0 {
		host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	path := c.Path
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return scheme + "://" + host + path
}

// Client triggers the webhook. A single idle connection is kept open and reused.
type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

// New creates a Client for cfg.
func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		url:  cfg.URL(),
		http: &http.Client{Timeout: timeout, Transport: transport},
		log:  log,
	}
}

// Trigger performs one GET and returns the response body unexamined.
// Any HTTP response counts as Success; only a failed exchange is ConnectionFailed.
func (c *Client) Trigger(ctx context.Context) (string, notify.Result) {
	body, err := c.get(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("url", c.url).Msg("webhook failed")
		return "", notify.ConnectionFailed
	}
	c.log.Debug().Str("url", c.url).Int("body_len", len(body)).Msg("webhook triggered")
	return body, notify.Success
}

func (c *Client) get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return string(data), nil
}
