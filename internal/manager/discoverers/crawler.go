package discoverers

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/extractors"
	"github.com/code-sleuth/caselaw-go/internal/manager/fetch"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

// Strategy names.
const (
	StrategyCrawler = "crawler"
	StrategySitemap = "sitemap"
	StrategySearch  = "search"
)

const (
	defaultMaxDepth = 3
	defaultMaxPages = 2000
)

// Crawler walks listing pages breadth-first from the source's start URLs,
// staying on the seed hosts and the source's allowed_hosts, and emits links
// on those hosts that look like decisions.
type Crawler struct {
	logger zerolog.Logger
}

var _ interfaces.Discoverer = (*Crawler)(nil)

func NewCrawler() *Crawler {
	return &Crawler{logger: util.NewLogger(util.LevelFromEnv())}
}

func (c *Crawler) GetStrategyName() string {
	return StrategyCrawler
}

type crawlItem struct {
	url   string
	depth int
}

func (c *Crawler) Discover(
	ctx context.Context,
	fetcher interfaces.Fetcher,
	source *models.Source,
	args *models.IngestArgs,
	emit interfaces.EmitFunc,
) error {
	matcher, err := newLinkMatcher(source)
	if err != nil {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategyCrawler, Err: err}
	}

	seeds := seedURLs(source)
	if len(seeds) == 0 {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategyCrawler, Err: ErrNoStartURLs}
	}

	maxDepth, maxPages := crawlLimits(args)
	allowedHosts := make(map[string]bool)
	for _, h := range source.AllowedHosts {
		allowedHosts[strings.ToLower(h)] = true
	}
	visited := make(map[string]bool)
	emitted := make(map[string]bool)
	var queue []crawlItem
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		if err != nil || u.Host == "" {
			c.logger.Warn().Str("source_id", source.ID).Str("url", seed).Msg("Skipping invalid seed")
			continue
		}
		allowedHosts[strings.ToLower(u.Hostname())] = true
		key := normalizeURL(seed)
		if !visited[key] {
			visited[key] = true
			queue = append(queue, crawlItem{url: seed, depth: 0})
		}
	}
	if len(queue) == 0 {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategyCrawler, Err: ErrNoStartURLs}
	}

	fetched := 0
	for len(queue) > 0 && fetched < maxPages {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := queue[0]
		queue = queue[1:]

		res, err := fetcher.Fetch(ctx, item.url, nil)
		fetched++
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, fetch.ErrPageBudgetExhausted) {
				return err
			}
			c.logger.Warn().Err(err).Str("source_id", source.ID).Str("url", item.url).Msg("Skipping listing page")
			continue
		}

		if extractors.IsPDF(res.ContentType, res.Body) {
			if !emitted[normalizeURL(res.FinalURL)] {
				emitted[normalizeURL(res.FinalURL)] = true
				if err := emit(&models.Candidate{
					URL:      res.FinalURL,
					Depth:    item.depth,
					Meta:     map[string]any{"discovery": StrategyCrawler},
					Response: res,
				}); err != nil {
					return err
				}
			}
			continue
		}

		base, err := url.Parse(res.FinalURL)
		if err != nil {
			continue
		}
		for _, l := range extractLinks(base, res.Body) {
			if !allowedHosts[strings.ToLower(l.URL.Hostname())] {
				continue
			}
			key := normalizeURL(l.URL.String())
			if matcher.IsDocument(l.URL, l.Text) {
				if emitted[key] {
					continue
				}
				emitted[key] = true
				candidate := &models.Candidate{
					URL:      l.URL.String(),
					Referrer: res.FinalURL,
					Depth:    item.depth + 1,
					Title:    l.Text,
					Docket:   extractors.ExtractDocket(l.Text),
					Meta:     map[string]any{"discovery": StrategyCrawler},
				}
				if err := emit(candidate); err != nil {
					return err
				}
				continue
			}

			if item.depth >= maxDepth || visited[key] {
				continue
			}
			visited[key] = true
			queue = append(queue, crawlItem{url: l.URL.String(), depth: item.depth + 1})
		}
	}

	c.logger.Info().
		Str("source_id", source.ID).
		Int("pages_fetched", fetched).
		Int("candidates", len(emitted)).
		Msg("Crawl finished")
	return nil
}

// PageBudget is the number of fetches a run of args may issue, listing pages
// and documents together.
func PageBudget(args *models.IngestArgs) int {
	_, maxPages := crawlLimits(args)
	return maxPages
}

func crawlLimits(args *models.IngestArgs) (maxDepth, maxPages int) {
	maxDepth, maxPages = defaultMaxDepth, defaultMaxPages
	if args == nil {
		return maxDepth, maxPages
	}
	if args.MaxDepth >= 0 {
		maxDepth = args.MaxDepth
	}
	if args.MaxPages > 0 {
		maxPages = args.MaxPages
	}
	return maxDepth, maxPages
}
