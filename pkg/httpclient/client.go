// Package httpclient provides the uniform HTTP client used by every vendor
// integration. It wraps hashicorp/go-retryablehttp with a fixed per-call
// timeout, structured logging, and error classification into transport errors.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
)

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client issues JSON requests against vendor APIs.
type Client struct {
	inner  *retryablehttp.Client
	logger *zap.Logger
}

// New creates a client. Defaults: 30s timeout, 2 retries, 1s-5s backoff.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 2
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = 1 * time.Second
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = 5 * time.Second
	}

	inner := retryablehttp.NewClient()
	inner.Logger = nil
	inner.HTTPClient.Timeout = cfg.Timeout
	inner.RetryMax = cfg.RetryMax
	inner.RetryWaitMin = cfg.RetryWaitMin
	inner.RetryWaitMax = cfg.RetryWaitMax

	return &Client{inner: inner, logger: logger}
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string, out interface{}) error {
	return c.do(ctx, http.MethodGet, rawURL, headers, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, rawURL string, headers map[string]string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, rawURL, headers, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, rawURL string, headers map[string]string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, rawURL, headers, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string, headers map[string]string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, rawURL, headers, nil, out)
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body, out interface{}) error {
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.inner.Do(req)
	if err != nil {
		terr := apperrors.NewTransportError(method, rawURL, 0, err)
		c.logger.Warn("vendor request failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Int("effective_status", terr.EffectiveStatus()),
			zap.Error(err))
		return terr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTransportError(method, rawURL, 0, err)
	}

	c.logger.Debug("vendor request completed",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewTransportError(method, rawURL, resp.StatusCode, nil)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decoding %s %s: %v", apperrors.ErrDataShape, method, rawURL, err)
		}
	}
	return nil
}
