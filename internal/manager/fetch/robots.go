package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRobotsTimeout = 10 * time.Second
	maxRobotsBytes       = 512 * 1024
)

// robotsEntry is a cached policy. A nil data field means everything is allowed.
type robotsEntry struct {
	data *robotstxt.RobotsData
}

// RobotsCache loads robots.txt once per host for the lifetime of the process.
// Hosts whose policy cannot be fetched are treated as fully allowed.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	mu        sync.RWMutex
	entries   map[string]*robotsEntry
	group     singleflight.Group
	loads     atomic.Int64
	logger    zerolog.Logger
}

// NewRobotsCache creates a cache. client may be nil.
func NewRobotsCache(client *http.Client, userAgent string) *RobotsCache {
	if client == nil {
		client = &http.Client{}
	}
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		timeout:   defaultRobotsTimeout,
		entries:   make(map[string]*robotsEntry),
		logger:    util.NewLogger(util.LevelFromEnv()),
	}
}

// Allowed reports whether userAgent may fetch u.
func (c *RobotsCache) Allowed(ctx context.Context, u *url.URL, userAgent string) bool {
	entry := c.entry(ctx, u)
	if entry == nil || entry.data == nil {
		return true
	}
	if userAgent == "" {
		userAgent = c.userAgent
	}
	path := u.RequestURI()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, userAgent)
}

// Sitemaps returns the Sitemap: lines of the host's robots.txt.
func (c *RobotsCache) Sitemaps(ctx context.Context, u *url.URL) []string {
	entry := c.entry(ctx, u)
	if entry == nil || entry.data == nil {
		return nil
	}
	return entry.data.Sitemaps
}

// Loads reports how many robots.txt documents were requested.
func (c *RobotsCache) Loads() int64 {
	return c.loads.Load()
}

func (c *RobotsCache) entry(ctx context.Context, u *url.URL) *robotsEntry {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, cacheable := c.load(ctx, key)
		if cacheable {
			c.mu.Lock()
			c.entries[key] = loaded
			c.mu.Unlock()
		}
		return loaded, nil
	})

	entry, _ = v.(*robotsEntry)
	return entry
}

// load fetches robots.txt for origin. The second return is false when the
// caller's context ended, so the next caller tries again.
func (c *RobotsCache) load(ctx context.Context, origin string) (*robotsEntry, bool) {
	c.loads.Add(1)

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("origin", origin).Msg("failed to build robots request")
		return &robotsEntry{}, true
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("origin", origin).Msg("robots fetch failed, allowing all")
		return &robotsEntry{}, ctx.Err() == nil
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	// Server errors are fetch failures, which allow everything.
	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Warn().Int("status_code", resp.StatusCode).Str("origin", origin).Msg("robots fetch failed, allowing all")
		return &robotsEntry{}, true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		c.logger.Warn().Err(err).Str("origin", origin).Msg("failed to read robots body, allowing all")
		return &robotsEntry{}, true
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("origin", origin).Msg("failed to parse robots, allowing all")
		return &robotsEntry{}, true
	}

	c.logger.Debug().Str("origin", origin).Int("sitemaps", len(data.Sitemaps)).Msg("Loaded robots policy")
	return &robotsEntry{data: data}, true
}
