package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

func testDownloader(t *testing.T, cfg config.FetchConfig) *Downloader {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 5
	}
	if cfg.MaxResponseSize == 0 {
		cfg.MaxResponseSize = 1 << 20
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "test-agent"
	}
	return NewDownloader(cfg, log)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("Country,Amount\nKenya,100\n"))
	}))
	defer srv.Close()

	d := testDownloader(t, config.FetchConfig{})
	payload, err := d.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Country,Amount\nKenya,100\n", string(payload))
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := testDownloader(t, config.FetchConfig{MaxAttempts: 5})
	// Shrink the backoff so the test stays fast.
	d.retryCfg.InitialBackoff = 1
	d.retryCfg.MaxBackoff = 1

	payload, err := d.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(payload))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := testDownloader(t, config.FetchConfig{MaxAttempts: 5})

	_, err := d.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDownloadEnforcesSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	d := testDownloader(t, config.FetchConfig{MaxResponseSize: 1024})

	_, err := d.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1024 bytes limit")
}

func TestDownloadRejectsBadScheme(t *testing.T) {
	d := testDownloader(t, config.FetchConfig{})
	_, err := d.Download(context.Background(), "ftp://example.org/data.csv")
	assert.Error(t, err)
}
