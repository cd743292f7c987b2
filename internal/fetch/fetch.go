// Package fetch is the HTTP & I/O fabric of spec §4.B: a shared,
// keep-alive HTTP client gated by bounded concurrency, retry-with-hash
// verification, atomic downloads, and zip/icon helpers. Bounded
// concurrency uses golang.org/x/sync/semaphore; zip streaming uses
// github.com/mholt/archives.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Config controls retry count and concurrency gates (spec §4.B, §5).
type Config struct {
	MaxRetries       int
	RequestTimeout   time.Duration
	HTTPConcurrency  int64
	IOConcurrency    int64 // 0 == unlimited (guarded by OS handle limits only)
	KeepAliveTimeout time.Duration
	UserAgent        string
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		RequestTimeout:   30 * time.Second,
		HTTPConcurrency:  7,
		IOConcurrency:    0,
		KeepAliveTimeout: 15 * time.Second,
		UserAgent:        "OneLauncher/dev",
	}
}

// Client is the single shared HTTP & I/O fabric. Construct one at
// process start and share it; it holds the connection pool and the two
// bounded-concurrency gates described in spec §4.B/§5.
type Client struct {
	cfg        Config
	httpClient *http.Client
	httpGate   *semaphore.Weighted
	ioGate     *semaphore.Weighted // nil == unlimited
}

func New(cfg Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		httpGate: semaphore.NewWeighted(maxInt64(cfg.HTTPConcurrency, 1)),
	}
	if cfg.IOConcurrency > 0 {
		c.ioGate = semaphore.NewWeighted(cfg.IOConcurrency)
	}
	return c
}

func maxInt64(v, min int64) int64 {
	if v < min {
		return min
	}
	return v
}

// AcquireIO acquires the I/O gate permit, if one is configured. It is
// exported so installer/bundle packages can guard disk writes that
// don't go through Download.
func (c *Client) AcquireIO(ctx context.Context) (release func(), err error) {
	if c.ioGate == nil {
		return func() {}, nil
	}
	if err := c.ioGate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { c.ioGate.Release(1) }, nil
}

// Fetch performs an HTTP request with retry, per spec §4.B: up to
// cfg.MaxRetries attempts, retrying only connect/timeout errors (never
// 4xx), verifying expectedHash if given.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, body []byte, expectedHash string) ([]byte, error) {
	if err := c.httpGate.Acquire(ctx, 1); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindCancelled, err, "acquire http gate")
	}
	defer c.httpGate.Release(1)

	var lastErr error
	attempts := c.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		data, retryable, err := c.doOnce(ctx, method, url, headers, body)
		if err == nil {
			if expectedHash != "" {
				if got := sha1Hex(data); got != expectedHash {
					return nil, onelauncher.HashMismatch(expectedHash, got)
				}
			}
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, onelauncher.Wrap(onelauncher.KindCancelled, ctx.Err(), "fetch cancelled")
		case <-time.After(backoff(attempt)):
		}
	}
	return nil, lastErr
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt+1) * 250 * time.Millisecond
	if d > 4*time.Second {
		d = 4 * time.Second
	}
	return d
}

// doOnce performs a single attempt. retryable is true only for
// connect/timeout-class failures, per spec's "do not retry on 4xx".
func (c *Client) doOnce(ctx context.Context, method, url string, headers map[string]string, body []byte) (data []byte, retryable bool, err error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, false, onelauncher.Wrap(onelauncher.KindIO, err, "build request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, onelauncher.Wrap(onelauncher.KindCancelled, err, "request cancelled")
		}
		// net/http wraps connect and timeout errors without a stable
		// sentinel; treat any transport-level failure as retryable,
		// matching spec's "retry only on connect or timeout errors".
		return nil, true, onelauncher.Wrap(onelauncher.KindNetwork, err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, false, onelauncher.HTTPStatus(resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, onelauncher.Wrap(onelauncher.KindNetwork, err, "read body")
	}
	return data, false, nil
}

// Download streams a GET to a temp file in dest's directory, verifies
// expectedHash (if given) before an atomic rename into place, per spec
// §4.B. report, if non-nil, receives fractional progress.
func (c *Client) Download(ctx context.Context, url, dest, expectedHash string, report func(delta float64)) ([]byte, error) {
	release, err := c.AcquireIO(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.httpGate.Acquire(ctx, 1); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindCancelled, err, "acquire http gate")
	}
	defer c.httpGate.Release(1)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, dest)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".onelauncher-dl-*")
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, dest)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tmp.Close()
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, "build request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tmp.Close()
		return nil, onelauncher.Wrap(onelauncher.KindNetwork, err, url)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		tmp.Close()
		return nil, onelauncher.HTTPStatus(resp.StatusCode)
	}

	hasher := sha1.New()
	writer := io.MultiWriter(tmp, hasher)

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 64*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := writer.Write(buf[:n]); werr != nil {
				tmp.Close()
				return nil, onelauncher.Wrap(onelauncher.KindIO, werr, tmpPath)
			}
			written += int64(n)
			if report != nil && total > 0 {
				report(float64(n) / float64(total))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmp.Close()
			return nil, onelauncher.Wrap(onelauncher.KindNetwork, rerr, url)
		}
	}
	if err := tmp.Close(); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if expectedHash != "" && got != expectedHash {
		return nil, onelauncher.HashMismatch(expectedHash, got)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, dest)
	}

	return os.ReadFile(dest)
}

// FetchFromMirrors tries each URL in order, returning the first success
// or the last error, per spec §4.B.
func (c *Client) FetchFromMirrors(ctx context.Context, urls []string, expectedHash string) ([]byte, error) {
	var lastErr error
	for _, url := range urls {
		data, err := c.Fetch(ctx, http.MethodGet, url, nil, nil, expectedHash)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = onelauncher.New(onelauncher.KindNetwork, "no mirrors provided")
	}
	return nil, lastErr
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Sha1File hashes a file already on disk.
func Sha1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteIcon hashes body and writes it to <caches>/icons/<sha1>.<ext>,
// returning the canonical path. Idempotent: an existing file with the
// same hash is left untouched, per spec §4.B.
func WriteIcon(iconsDir string, body []byte, ext string) (string, error) {
	sum := sha1.Sum(body)
	hash := hex.EncodeToString(sum[:])
	if ext == "" {
		ext = "png"
	}
	path := filepath.Join(iconsDir, fmt.Sprintf("%s.%s", hash, ext))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(iconsDir, 0o755); err != nil {
		return "", onelauncher.Wrap(onelauncher.KindIO, err, iconsDir)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	return path, nil
}
