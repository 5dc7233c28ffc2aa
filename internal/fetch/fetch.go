// Package fetch downloads dataset files over HTTP with timeouts, a response
// size cap, and retry with exponential backoff.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/retry"
)

// Downloader fetches dataset payloads from upstream data services.
type Downloader struct {
	client          *http.Client
	log             *logger.Logger
	userAgent       string
	maxResponseSize int64
	retryCfg        retry.Config
}

// NewDownloader creates a Downloader from the fetch configuration.
func NewDownloader(cfg config.FetchConfig, log *logger.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		log:             log,
		userAgent:       cfg.UserAgent,
		maxResponseSize: cfg.MaxResponseSize,
		retryCfg: retry.Config{
			MaxAttempts: cfg.MaxAttempts,
		},
	}
}

// Download fetches url and returns the full payload. Retryable failures
// (timeouts, 5xx, connection errors) are retried with backoff; the response
// is rejected if it exceeds the configured size cap.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}

	var payload []byte
	err := retry.Do(ctx, func() error {
		body, err := d.fetchOnce(ctx, url)
		if err != nil {
			d.log.Warn("dataset download attempt failed",
				logger.Field{Key: "url", Value: url},
				logger.Field{Key: "reason", Value: err.Error()})
			return err
		}
		payload = body
		return nil
	}, d.retryCfg)
	if err != nil {
		return nil, err
	}

	return payload, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	if resp.ContentLength > d.maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes exceeds %d bytes limit",
			resp.ContentLength, d.maxResponseSize)
	}

	// Read one byte past the cap so truncation is detectable.
	limitReader := io.LimitReader(resp.Body, d.maxResponseSize+1)
	body, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if int64(len(body)) > d.maxResponseSize {
		return nil, fmt.Errorf("response truncated: exceeds %d bytes limit", d.maxResponseSize)
	}

	return body, nil
}
