package discoverers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/code-sleuth/caselaw-go/internal/manager/extractors"
	"github.com/code-sleuth/caselaw-go/internal/manager/fetch"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const (
	defaultPageParam  = "page"
	defaultDateLayout = "2006-01-02"
)

// SearchWalker pages through a court's query endpoint, filling the date
// window into the query, until the result list runs dry.
type SearchWalker struct {
	logger zerolog.Logger
}

var _ interfaces.Discoverer = (*SearchWalker)(nil)

func NewSearchWalker() *SearchWalker {
	return &SearchWalker{logger: util.NewLogger(util.LevelFromEnv())}
}

func (w *SearchWalker) GetStrategyName() string {
	return StrategySearch
}

func (w *SearchWalker) Discover(
	ctx context.Context,
	fetcher interfaces.Fetcher,
	source *models.Source,
	args *models.IngestArgs,
	emit interfaces.EmitFunc,
) error {
	cfg := source.Search
	if cfg == nil || cfg.Endpoint == "" {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategySearch, Err: ErrNoSearchConfig}
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Host == "" {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategySearch, Err: ErrInvalidEndpoint}
	}

	var linkRe *regexp.Regexp
	if cfg.LinkPattern != "" {
		if linkRe, err = regexp.Compile(cfg.LinkPattern); err != nil {
			return &DiscoveryError{
				SourceID: source.ID,
				Strategy: StrategySearch,
				Err:      fmt.Errorf("%w %q: %v", ErrInvalidPattern, cfg.LinkPattern, err),
			}
		}
	}
	matcher, err := newLinkMatcher(source)
	if err != nil {
		return &DiscoveryError{SourceID: source.ID, Strategy: StrategySearch, Err: err}
	}

	_, maxPages := crawlLimits(args)
	baseQuery := searchQuery(cfg, args)
	pageParam := cfg.PageParam
	if pageParam == "" {
		pageParam = defaultPageParam
	}

	seen := make(map[string]bool)
	pages := 0
	for page := cfg.FirstPage; pages < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		q := cloneValues(baseQuery)
		q.Set(pageParam, strconv.Itoa(page))
		pageURL := *endpoint
		pageURL.RawQuery = q.Encode()

		res, err := fetcher.Fetch(ctx, pageURL.String(), nil)
		pages++
		if err != nil {
			if status := fetch.StatusCode(err); status >= http.StatusBadRequest && status < http.StatusInternalServerError {
				w.logger.Debug().Str("source_id", source.ID).Int("page", page).Int("status", status).Msg("Result pages exhausted")
				break
			}
			return &DiscoveryError{SourceID: source.ID, Strategy: StrategySearch, Err: err}
		}

		base, err := url.Parse(res.FinalURL)
		if err != nil {
			base = &pageURL
		}

		fresh := 0
		for _, l := range extractLinks(base, res.Body) {
			if linkRe != nil {
				if !linkRe.MatchString(l.URL.String()) {
					continue
				}
			} else if !matcher.IsDocument(l.URL, l.Text) {
				continue
			}

			key := normalizeURL(l.URL.String())
			if seen[key] {
				continue
			}
			seen[key] = true
			fresh++

			docket := ""
			if cfg.DocketParam != "" {
				docket = l.URL.Query().Get(cfg.DocketParam)
			}
			if docket == "" {
				docket = extractors.ExtractDocket(l.Text)
			}
			if err := emit(&models.Candidate{
				URL:          l.URL.String(),
				Referrer:     pageURL.String(),
				Title:        l.Text,
				Docket:       docket,
				DecisionDate: extractors.ExtractDate(l.Text),
				Meta:         map[string]any{"discovery": StrategySearch, "page": page},
			}); err != nil {
				return err
			}
		}

		if fresh == 0 {
			break
		}
		if cfg.EndMarker != "" && bytes.Contains(res.Body, []byte(cfg.EndMarker)) {
			break
		}
	}

	w.logger.Info().
		Str("source_id", source.ID).
		Int("pages_fetched", pages).
		Int("candidates", len(seen)).
		Msg("Search walk finished")
	return nil
}

// searchQuery merges the static params with the effective date window.
func searchQuery(cfg *models.SearchConfig, args *models.IngestArgs) url.Values {
	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	layout := cfg.DateLayout
	if layout == "" {
		layout = defaultDateLayout
	}
	if since := args.EffectiveSince(); since != nil && cfg.SinceParam != "" {
		q.Set(cfg.SinceParam, since.Format(layout))
	}
	if until := args.EffectiveUntil(); until != nil && cfg.UntilParam != "" {
		q.Set(cfg.UntilParam, until.Format(layout))
	}
	return q
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
