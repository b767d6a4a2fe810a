// Package fetch downloads court documents politely: robots policy, per-host
// rate limits, bounded retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/retry"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const (
	defaultUserAgent    = "caselaw-go/0.1"
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 64 << 20
)

// Config holds fetcher defaults.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
	Retry         retry.Policy
	MaxBodyBytes  int64
}

// Fetcher implements interfaces.Fetcher over net/http.
type Fetcher struct {
	client  *http.Client
	robots  *RobotsCache
	limiter *HostLimiter
	config  Config
	logger  zerolog.Logger
}

var _ interfaces.Fetcher = (*Fetcher)(nil)

// NewFetcher builds a fetcher. robots and limiter are normally process-wide
// singletons; nil values get private instances.
func NewFetcher(cfg Config, client *http.Client, robots *RobotsCache, limiter *HostLimiter) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{}
	}
	if robots == nil {
		robots = NewRobotsCache(client, cfg.UserAgent)
	}
	if limiter == nil {
		limiter = NewHostLimiter(0, 1)
	}

	return &Fetcher{
		client:  client,
		robots:  robots,
		limiter: limiter,
		config:  cfg,
		logger:  util.NewLogger(util.LevelFromEnv()),
	}
}

// Robots exposes the shared robots cache, which also knows sitemap locations.
func (f *Fetcher) Robots() *RobotsCache {
	return f.robots
}

// Fetch downloads rawURL. 4xx responses fail at once; network errors and
// 5xx responses are retried with backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts *interfaces.FetchOptions) (*models.FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Err: ErrInvalidURL}
	}

	userAgent := f.config.UserAgent
	timeout := f.config.Timeout
	if opts != nil {
		if opts.UserAgent != "" {
			userAgent = opts.UserAgent
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
	}

	if f.config.RespectRobots && !f.robots.Allowed(ctx, u, userAgent) {
		f.logger.Debug().Str("url", rawURL).Msg("Blocked by robots policy")
		return nil, &FetchError{URL: rawURL, Err: ErrRobotsDisallowed}
	}

	var result *models.FetchResult
	attempts, err := retry.Do(ctx, f.config.Retry, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return retry.Permanent(err)
		}
		res, err := f.do(ctx, rawURL, userAgent, timeout)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		f.logger.Warn().
			Err(err).
			Str("url", rawURL).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Fetch attempt failed, retrying")
	})
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: StatusCode(err), Attempts: attempts, Err: err}
	}

	result.Attempts = attempts
	return result, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL, userAgent string, timeout time.Duration) (*models.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &statusError{code: resp.StatusCode, kind: ErrServerStatus}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, retry.Permanent(&statusError{code: resp.StatusCode, kind: ErrClientStatus})
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, retry.Permanent(&statusError{code: resp.StatusCode, kind: ErrUnexpectedStatus})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, retry.Permanent(ErrBodyTooLarge)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &models.FetchResult{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// IsRobotsDisallowed reports whether err came from a robots denial.
func IsRobotsDisallowed(err error) bool {
	return errors.Is(err, ErrRobotsDisallowed)
}
