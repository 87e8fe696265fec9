// Package fetch is the shared outbound HTTP layer for source connectors.
// Every catalog request goes through one Client, which stacks a disk
// response cache, a per source rate limiter, and a robots.txt gate in
// front of the network
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	perr "openshelf/internal/platform/errors"
	"openshelf/internal/platform/logger"
)

const (
	defaultUA      = "openshelf-ingest"
	defaultTimeout = 30 * time.Second

	// maxBodyBytes caps in-memory responses, not streamed downloads
	maxBodyBytes = 32 << 20
)

// Options configures the Client
type Options struct {
	UserAgent string
	Timeout   time.Duration
	CacheDir  string
	Interval  time.Duration
}

// Client issues catalog requests for connectors
type Client struct {
	http    *http.Client
	ua      string
	cache   *ResponseCache
	limiter *Limiter
	robots  *robotsGate
	log     logger.Logger
}

// New creates a Client with sane defaults
func New(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.CacheDir == "" {
		o.CacheDir = filepath.Join(os.TempDir(), "openshelf-cache")
	}
	hc := &http.Client{Timeout: o.Timeout}
	return &Client{
		http:    hc,
		ua:      o.UserAgent,
		cache:   NewResponseCache(o.CacheDir),
		limiter: NewLimiter(o.Interval),
		robots:  newRobotsGate(hc, o.UserAgent),
		log:     *logger.Named("fetch"),
	}
}

// GetBytes fetches url, serving from the response cache when the entry is
// still fresh for key's kind. Fresh fetches are rate limited per source and
// gated on robots.txt
func (c *Client) GetBytes(ctx context.Context, key Key, url string) ([]byte, error) {
	if payload, ok := c.cache.Get(key); ok {
		c.log.Debug().Str("source", key.Source).Str("kind", string(key.Kind)).Msg("cache hit")
		return payload, nil
	}
	if err := c.limiter.Acquire(ctx, key.Source); err != nil {
		return nil, err
	}
	if !c.robots.allowed(ctx, url) {
		return nil, perr.NotAvailablef("fetch blocked by robots policy: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "fetch new request failed")
	}
	req.Header.Set("User-Agent", c.ua)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Networkf("fetch %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug().
		Str("source", key.Source).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("fetched")

	if resp.StatusCode == http.StatusNotFound {
		return nil, perr.NotFoundf("fetch %s: not found", url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, perr.Networkf("fetch %s: status %d", url, resp.StatusCode)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, perr.Networkf("fetch %s: read body: %v", url, err)
	}
	if err := c.cache.Put(key, payload); err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("cache write failed")
	}
	return payload, nil
}

// GetJSON fetches url through GetBytes and decodes the payload into out
func (c *Client) GetJSON(ctx context.Context, key Key, url string, out any) error {
	payload, err := c.GetBytes(ctx, key, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return perr.Parsef("fetch %s: decode json: %v", url, err)
	}
	return nil
}

// Download streams url to dest, writing a .part file first and renaming it
// into place on success. Returns the number of bytes written
func (c *Client) Download(ctx context.Context, source, url, dest string) (int64, error) {
	if err := c.limiter.Acquire(ctx, source); err != nil {
		return 0, err
	}
	if !c.robots.allowed(ctx, url) {
		return 0, perr.NotAvailablef("download blocked by robots policy: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnknown, "download new request failed")
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, perr.Networkf("download %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, perr.Networkf("download %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, perr.Networkf("download %s: %v", url, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	c.log.Info().Str("source", source).Str("url", url).Int64("bytes", n).Str("dest", dest).Msg("downloaded")
	return n, nil
}
