package discoverers

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/fetch"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const maxSitemapBytes = 256 << 20

var probePaths = []string{"sitemap.xml", "sitemap_index.xml", "sitemap.xml.gz", "sitemap_index.xml.gz"}

// SitemapLocator reports sitemap URLs announced by a host's robots policy.
type SitemapLocator interface {
	Sitemaps(ctx context.Context, u *url.URL) []string
}

// SitemapHarvester enumerates decisions from XML sitemaps, newest first. It
// collects at most the run's page budget of document URLs.
type SitemapHarvester struct {
	locator SitemapLocator
	logger  zerolog.Logger
}

var _ interfaces.Discoverer = (*SitemapHarvester)(nil)

// NewSitemapHarvester takes an optional locator; without one only explicit
// sitemap seeds and well-known paths are tried.
func NewSitemapHarvester(locator SitemapLocator) *SitemapHarvester {
	return &SitemapHarvester{
		locator: locator,
		logger:  util.NewLogger(util.LevelFromEnv()),
	}
}

func (s *SitemapHarvester) GetStrategyName() string {
	return StrategySitemap
}

type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapEntry `xml:"url"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type sitemapURL struct {
	loc     string
	rawMod  string
	lastmod *time.Time
}

func (s *SitemapHarvester) Discover(
	ctx context.Context,
	fetcher interfaces.Fetcher,
	source *models.Source,
	args *models.IngestArgs,
	emit interfaces.EmitFunc,
) error {
	matcher, err := newLinkMatcher(source)
	if err != nil {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategySitemap, Err: err}
	}
	seeds := seedURLs(source)
	if len(seeds) == 0 {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategySitemap, Err: ErrNoStartURLs}
	}

	_, maxPages := crawlLimits(args)
	queue := s.locations(ctx, seeds)
	seen := make(map[string]bool, len(queue))
	for _, loc := range queue {
		seen[loc] = true
	}

	var (
		entries   []sitemapURL
		collected = make(map[string]bool)
		readable  int
		fetched   int
		exhausted bool
	)
	for len(queue) > 0 && fetched < maxPages && len(entries) < maxPages {
		if err := ctx.Err(); err != nil {
			return err
		}
		loc := queue[0]
		queue = queue[1:]

		res, err := fetcher.Fetch(ctx, loc, nil)
		fetched++
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, fetch.ErrPageBudgetExhausted) {
				exhausted = true
				break
			}
			s.logger.Debug().Err(err).Str("source_id", source.ID).Str("url", loc).Msg("Sitemap not available")
			continue
		}

		doc, err := parseSitemap(res.Body)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", loc).Msg("Not a sitemap")
			continue
		}
		readable++

		for _, child := range doc.Sitemaps {
			childLoc := strings.TrimSpace(child.Loc)
			if childLoc == "" || seen[childLoc] {
				continue
			}
			seen[childLoc] = true
			queue = append(queue, childLoc)
		}
		for _, u := range doc.URLs {
			if len(entries) >= maxPages {
				break
			}
			loc := strings.TrimSpace(u.Loc)
			parsed, err := url.Parse(loc)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				continue
			}
			if !matcher.IsDocument(parsed, "") && !looksLikeDownload(parsed) {
				continue
			}
			raw := strings.TrimSpace(u.LastMod)
			lastmod := parseLastMod(raw)
			if lastmod != nil && !args.InWindow(lastmod) {
				continue
			}
			key := normalizeURL(loc)
			if collected[key] {
				continue
			}
			collected[key] = true
			entries = append(entries, sitemapURL{loc: loc, rawMod: raw, lastmod: lastmod})
		}
	}

	if readable == 0 {
		if exhausted {
			return fetch.ErrPageBudgetExhausted
		}
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategySitemap, Err: ErrNoSitemap}
	}

	// newest first, undated last
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].lastmod, entries[j].lastmod
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})

	for _, e := range entries {
		meta := map[string]any{"discovery": StrategySitemap}
		if e.rawMod != "" {
			meta["sitemap_lastmod"] = e.rawMod
		}
		if err := emit(&models.Candidate{
			URL:           e.loc,
			PublishedDate: e.lastmod,
			Meta:          meta,
		}); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("source_id", source.ID).
		Int("sitemaps", readable).
		Int("candidates", len(entries)).
		Msg("Sitemap harvest finished")
	return nil
}

// locations lists sitemap URLs to try: explicit XML seeds, robots
// announcements, and well-known paths when neither yields anything.
func (s *SitemapHarvester) locations(ctx context.Context, seeds []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(loc string) {
		if loc != "" && !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}

	var parsed []*url.URL
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		if err != nil || u.Host == "" {
			continue
		}
		parsed = append(parsed, u)
		lower := strings.ToLower(u.Path)
		if strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz") {
			add(seed)
		}
	}
	if s.locator != nil {
		for _, u := range parsed {
			for _, loc := range s.locator.Sitemaps(ctx, u) {
				add(loc)
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, u := range parsed {
		origin := u.Scheme + "://" + u.Host
		for _, p := range probePaths {
			add(origin + "/" + p)
		}
		if seg := firstSegment(u.Path); seg != "" {
			for _, p := range probePaths[:2] {
				add(origin + "/" + seg + "/" + p)
			}
		}
	}
	return out
}

func firstSegment(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	seg, _, _ := strings.Cut(path, "/")
	if strings.Contains(seg, ".") {
		return ""
	}
	return seg
}

func parseSitemap(body []byte) (*sitemapDoc, error) {
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		body, err = io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
		if err != nil {
			return nil, err
		}
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.XMLName.Local != "urlset" && doc.XMLName.Local != "sitemapindex" {
		return nil, ErrInvalidSitemap
	}
	return &doc, nil
}

func parseLastMod(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return util.DatePtr(t)
		}
	}
	return nil
}
