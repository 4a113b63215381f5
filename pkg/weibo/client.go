package weibo

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/retry"
)

// Client fetches search pages and pictures. Every call is a fresh
// round trip with a per-attempt timeout and a fixed-delay retry
// policy; after the attempts run out the error is returned as a value
// and the caller treats the URL as unavailable.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	maxRetries int
	retryDelay time.Duration
	debugFile  string
	logger     logger.Logger
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Timeout    time.Duration
	MaxRetries int // additional attempts after the first
	RetryDelay time.Duration
	Cookie     string
	UserAgent  string
	Referer    string
	DebugFile  string // last fetched body lands here; empty disables
}

// NewClient creates a search client.
func NewClient(opts ClientOptions, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}
	if opts.Referer != "" {
		headers["Referer"] = opts.Referer
	}
	if opts.Cookie != "" {
		headers["Cookie"] = opts.Cookie
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		headers:    headers,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		debugFile:  opts.DebugFile,
		logger:     log,
	}
}

// SetHeader sets a custom request header.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch performs one logical GET of a search page and returns the
// body. It retries transient failures maxRetries times with the fixed
// delay, then gives up.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return "", err
	}

	c.saveDebugArtifact(body)
	return string(body), nil
}

// DownloadPicture fetches a picture asset under the same retry policy.
func (c *Client) DownloadPicture(ctx context.Context, url string) ([]byte, error) {
	return c.getWithRetry(ctx, url)
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.Do(func() error {
		var opErr error
		body, opErr = c.get(ctx, url)
		return opErr
	}, &retry.Config{
		MaxAttempts: c.maxRetries + 1,
		Backoff:     &retry.ConstantBackoff{Delay: c.retryDelay},
		Context:     ctx,
		Logger:      c.logger.WithField("url", url),
	})
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Error("request failed, giving up")
		return nil, err
	}
	return body, nil
}

// get performs a single attempt.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		}).Warn("HTTP request failed")
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("HTTP request completed")

	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromStatusCode(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}
	return body, nil
}

// saveDebugArtifact keeps the most recently fetched body around for
// post-hoc inspection. Best effort; a write failure only logs.
func (c *Client) saveDebugArtifact(body []byte) {
	if c.debugFile == "" {
		return
	}
	if err := os.WriteFile(c.debugFile, body, 0o644); err != nil {
		c.logger.WithError(err).WithField("path", c.debugFile).Warn("failed to save debug artifact")
	}
}

// WorstCaseLatency is the upper bound on one logical fetch:
// timeout*(maxRetries+1) + retryDelay*maxRetries.
func (c *Client) WorstCaseLatency() time.Duration {
	attempts := time.Duration(c.maxRetries + 1)
	return c.httpClient.Timeout*attempts + c.retryDelay*time.Duration(c.maxRetries)
}
