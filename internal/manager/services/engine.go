package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/code-sleuth/caselaw-go/internal/manager/discoverers"
	"github.com/code-sleuth/caselaw-go/internal/manager/extractors"
	"github.com/code-sleuth/caselaw-go/internal/manager/fetch"
	"github.com/code-sleuth/caselaw-go/internal/manager/fingerprint"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/repository"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultConcurrency  = 10
	defaultMinTextChars = 300
)

var (
	// Registration errors.
	ErrDiscovererAlreadyRegistered = errors.New("discoverer already registered for strategy")

	// Processing errors.
	ErrUnknownStrategy = errors.New("no discoverer registered for strategy")
	ErrTextTooShort    = errors.New("extracted text below minimum length")
	ErrNoResponse      = errors.New("candidate has no response")
)

// EngineConfig bounds an ingestion run.
type EngineConfig struct {
	// Concurrency caps in-flight fetches per source, discovery included.
	Concurrency  int
	MinTextChars int
}

// IngestEngine runs discovery, fetching, extraction, dedup and indexing for
// configured sources and records one ingestion run per source pass.
type IngestEngine struct {
	discoverers map[string]interfaces.Discoverer
	store       interfaces.Store
	fetcher     interfaces.Fetcher
	extractor   interfaces.Extractor
	indexer     *Indexer
	locks       *util.KeyedMutex
	config      EngineConfig
	now         func() time.Time
	logger      zerolog.Logger
	mu          sync.RWMutex
}

// NewIngestEngine creates an engine. indexer may be nil, in which case
// decisions are persisted without chunks.
func NewIngestEngine(
	store interfaces.Store,
	fetcher interfaces.Fetcher,
	extractor interfaces.Extractor,
	indexer *Indexer,
	cfg EngineConfig,
) *IngestEngine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = defaultMinTextChars
	}
	return &IngestEngine{
		discoverers: make(map[string]interfaces.Discoverer),
		store:       store,
		fetcher:     fetcher,
		extractor:   extractor,
		indexer:     indexer,
		locks:       util.NewKeyedMutex(),
		config:      cfg,
		now:         time.Now,
		logger:      util.NewLogger(util.LevelFromEnv()),
	}
}

// RegisterDiscoverer adds a discovery strategy to the engine.
func (e *IngestEngine) RegisterDiscoverer(discoverer interfaces.Discoverer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy := discoverer.GetStrategyName()
	if _, exists := e.discoverers[strategy]; exists {
		e.logger.Error().Str("strategy", strategy).Msg("Discoverer already registered")
		return ErrDiscovererAlreadyRegistered
	}

	e.discoverers[strategy] = discoverer
	e.logger.Info().Str("strategy", strategy).Msg("Registered discoverer")
	return nil
}

func (e *IngestEngine) discoverer(strategy string) (interfaces.Discoverer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.discoverers[strategy]
	return d, ok
}

// ValidateSources fails fast on sources naming an unregistered strategy or
// carrying an unusable strategy configuration.
func (e *IngestEngine) ValidateSources(sources []*models.Source) error {
	var errs []error
	for _, source := range sources {
		if _, ok := e.discoverer(source.Strategy); !ok {
			errs = append(errs, fmt.Errorf("source %s: %w: %q", source.ID, ErrUnknownStrategy, source.Strategy))
			continue
		}
		if err := discoverers.ValidateSource(source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunSources ingests sources with at most parallel sources in flight. Every
// source gets its own run record; a failed source does not stop the others.
func (e *IngestEngine) RunSources(
	ctx context.Context,
	sources []*models.Source,
	args *models.IngestArgs,
	parallel int,
) ([]*models.IngestionRun, error) {
	if parallel <= 0 {
		parallel = 1
	}

	runs := make([]*models.IngestionRun, len(sources))
	errs := make([]error, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(parallel)
	for i, source := range sources {
		g.Go(func() error {
			runs[i], errs[i] = e.RunSource(ctx, source, args)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*models.IngestionRun, 0, len(runs))
	for _, run := range runs {
		if run != nil {
			out = append(out, run)
		}
	}
	return out, errors.Join(errs...)
}

// runStats are the live counters of one run.
type runStats struct {
	found             atomic.Int64
	imported          atomic.Int64
	skipped           atomic.Int64
	updated           atomic.Int64
	errors            atomic.Int64
	outOfRange        atomic.Int64
	robotsBlocked     atomic.Int64
	embeddingDeferred atomic.Int64
	overBudget        atomic.Int64
}

// limitedFetcher shares one concurrency limit and one page budget between
// discovery and the document workers of a run.
type limitedFetcher struct {
	next   interfaces.Fetcher
	sem    *semaphore.Weighted
	budget int64
	pages  atomic.Int64
}

func (f *limitedFetcher) Fetch(ctx context.Context, url string, opts *interfaces.FetchOptions) (*models.FetchResult, error) {
	if f.pages.Add(1) > f.budget {
		f.pages.Add(-1)
		return nil, fetch.ErrPageBudgetExhausted
	}
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)
	return f.next.Fetch(ctx, url, opts)
}

func (f *limitedFetcher) exhausted() bool {
	return f.pages.Load() >= f.budget
}

// RunSource runs one discovery pass over source. The returned run is always
// the terminal record; the error is the discovery failure, if any.
func (e *IngestEngine) RunSource(
	ctx context.Context,
	source *models.Source,
	args *models.IngestArgs,
) (*models.IngestionRun, error) {
	if args == nil {
		args = &models.IngestArgs{MaxDepth: -1}
	}
	discoverer, ok := e.discoverer(source.Strategy)
	if !ok {
		e.logger.Error().Str("source_id", source.ID).Str("strategy", source.Strategy).Msg("No discoverer for source")
		return nil, fmt.Errorf("source %s: %w: %q", source.ID, ErrUnknownStrategy, source.Strategy)
	}

	sourceID := source.ID
	run := &models.IngestionRun{
		ID:          uuid.New().String(),
		ScraperName: source.ID,
		SourceID:    &sourceID,
		StartedAt:   e.now().UTC(),
		Status:      models.RunStatusRunning,
		FromDate:    args.EffectiveSince(),
		ToDate:      args.EffectiveUntil(),
		Details: map[string]any{
			"strategy":   source.Strategy,
			"historical": args.Historical,
		},
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		e.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to create run")
		return nil, err
	}

	logger := e.logger.With().Str("source_id", source.ID).Str("run_id", run.ID).Logger()
	logger.Info().Str("strategy", source.Strategy).Bool("historical", args.Historical).Msg("Starting run")

	stats := &runStats{}
	fetcher := &limitedFetcher{
		next:   e.fetcher,
		sem:    semaphore.NewWeighted(int64(e.config.Concurrency)),
		budget: int64(discoverers.PageBudget(args)),
	}
	candidates := make(chan *models.Candidate, e.config.Concurrency*2)

	var wg sync.WaitGroup
	for i := 0; i < e.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range candidates {
				e.processCandidate(ctx, fetcher, source, args, cand, stats, logger)
			}
		}()
	}

	emit := func(cand *models.Candidate) error {
		if cand.DecisionDate != nil && !args.InWindow(cand.DecisionDate) {
			stats.outOfRange.Add(1)
			return nil
		}
		if cand.Response == nil && fetcher.exhausted() {
			return fetch.ErrPageBudgetExhausted
		}
		stats.found.Add(1)
		select {
		case candidates <- cand:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	discoverErr := discoverer.Discover(ctx, fetcher, source, args, emit)
	close(candidates)
	wg.Wait()
	if errors.Is(discoverErr, fetch.ErrPageBudgetExhausted) {
		logger.Info().Int64("budget", fetcher.budget).Msg("Page budget exhausted, ending discovery")
		run.Details["budget_exhausted"] = true
		discoverErr = nil
	}
	if discoverErr == nil {
		discoverErr = ctx.Err()
	}

	e.finishRun(ctx, run, stats, fetcher.pages.Load(), discoverErr)
	if discoverErr != nil {
		logger.Error().Err(discoverErr).Msg("Run failed")
		return run, discoverErr
	}
	logger.Info().
		Int("found", run.DecisionsFound).
		Int("imported", run.DecisionsImported).
		Int("skipped", run.DecisionsSkipped).
		Int("updated", run.DecisionsUpdated).
		Int("errors", run.Errors).
		Msg("Run completed")
	return run, nil
}

func (e *IngestEngine) finishRun(
	ctx context.Context,
	run *models.IngestionRun,
	stats *runStats,
	pages int64,
	runErr error,
) {
	completed := e.now().UTC()
	duration := completed.Sub(run.StartedAt).Seconds()
	run.CompletedAt = &completed
	run.DurationSeconds = &duration
	run.DecisionsFound = int(stats.found.Load())
	run.DecisionsImported = int(stats.imported.Load())
	run.DecisionsSkipped = int(stats.skipped.Load())
	run.DecisionsUpdated = int(stats.updated.Load())
	run.Errors = int(stats.errors.Load())
	run.Details["out_of_range"] = stats.outOfRange.Load()
	run.Details["robots_blocked"] = stats.robotsBlocked.Load()
	run.Details["embedding_deferred"] = stats.embeddingDeferred.Load()
	run.Details["pages_fetched"] = pages
	run.Details["over_budget"] = stats.overBudget.Load()

	run.Status = models.RunStatusCompleted
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = util.StringPtr(runErr.Error())
	}

	// the record is written even when the caller gave up on the run
	if err := e.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to finish run")
	}
}

func (e *IngestEngine) processCandidate(
	ctx context.Context,
	fetcher interfaces.Fetcher,
	source *models.Source,
	args *models.IngestArgs,
	cand *models.Candidate,
	stats *runStats,
	logger zerolog.Logger,
) {
	if ctx.Err() != nil {
		return
	}

	outcome, err := e.ingestCandidate(ctx, fetcher, source, args, cand)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, fetch.ErrPageBudgetExhausted) {
			stats.overBudget.Add(1)
			return
		}
		stats.errors.Add(1)
		if fetch.IsRobotsDisallowed(err) {
			stats.robotsBlocked.Add(1)
		}
		if errors.Is(err, ErrEmbeddingDeferred) {
			stats.embeddingDeferred.Add(1)
		}
		logger.Warn().Err(err).Str("url", cand.URL).Msg("Candidate failed")
	}

	switch outcome {
	case models.OutcomeImported:
		stats.imported.Add(1)
	case models.OutcomeUpdated:
		stats.updated.Add(1)
	case models.OutcomeSkipped:
		stats.skipped.Add(1)
	case outcomeOutOfRange:
		stats.outOfRange.Add(1)
	}
}

const outcomeOutOfRange = "out_of_range"

// ingestCandidate returns the dedup outcome. An outcome together with an
// error means the decision was stored but indexing was deferred.
func (e *IngestEngine) ingestCandidate(
	ctx context.Context,
	fetcher interfaces.Fetcher,
	source *models.Source,
	args *models.IngestArgs,
	cand *models.Candidate,
) (string, error) {
	res := cand.Response
	if res == nil {
		var err error
		if res, err = fetcher.Fetch(ctx, cand.URL, nil); err != nil {
			return "", err
		}
	}
	if res == nil {
		return "", ErrNoResponse
	}

	extracted, err := e.extractor.Extract(res.Body, res.ContentType, res.FinalURL)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", res.FinalURL, err)
	}
	if utf8.RuneCountInString(extracted.Text) < e.config.MinTextChars {
		return "", fmt.Errorf("%s: %w (%d chars)", res.FinalURL, ErrTextTooShort, utf8.RuneCountInString(extracted.Text))
	}

	decision := e.buildDecision(source, cand, res, extracted)
	if cand.DecisionDate == nil && decision.DecisionDate != nil && !args.InWindow(decision.DecisionDate) {
		return outcomeOutOfRange, nil
	}

	outcome, err := e.persist(ctx, decision)
	if err != nil {
		return "", err
	}
	if outcome == models.OutcomeSkipped || e.indexer == nil {
		return outcome, nil
	}

	if _, err := e.indexer.Index(ctx, decision.ID, decision.ContentText); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (e *IngestEngine) buildDecision(
	source *models.Source,
	cand *models.Candidate,
	res *models.FetchResult,
	extracted *models.Extracted,
) *models.Decision {
	finalURL := res.FinalURL
	if finalURL == "" {
		finalURL = cand.URL
	}
	text := extracted.Text

	docket := cand.Docket
	if docket == "" {
		docket = extractors.ExtractDocket(text)
	}
	decisionDate := cand.DecisionDate
	if decisionDate == nil {
		decisionDate = extractors.ExtractDate(text)
	}
	title := extracted.Title
	if title == "" {
		title = cand.Title
	}
	language := extractors.DetectLanguage(text)
	if language == "" && len(source.Languages) == 1 {
		language = source.Languages[0]
	}

	meta := make(map[string]any, len(cand.Meta)+3)
	for k, v := range cand.Meta {
		meta[k] = v
	}
	if cand.Referrer != "" {
		meta["referrer"] = cand.Referrer
	}
	if extracted.Method != "" {
		meta["extraction"] = extracted.Method
	}
	if cand.URL != "" && cand.URL != finalURL {
		meta["requested_url"] = cand.URL
	}

	var pdfURL *string
	if extractors.ReadAsPDF(res.ContentType, res.Body, finalURL) {
		pdfURL = util.StringPtr(finalURL)
	}

	return &models.Decision{
		ID:            fingerprint.StableID(finalURL),
		SourceID:      source.ID,
		SourceName:    source.Name,
		Level:         source.Level,
		Canton:        source.Canton,
		Court:         source.Court,
		Docket:        util.NilIfEmpty(docket),
		DecisionDate:  decisionDate,
		PublishedDate: cand.PublishedDate,
		Title:         util.NilIfEmpty(title),
		Language:      util.NilIfEmpty(language),
		URL:           finalURL,
		PDFURL:        pdfURL,
		ContentText:   text,
		ContentHash:   fingerprint.ContentHash(text),
		Meta:          meta,
		IndexedAt:     e.now().UTC(),
	}
}

// persist applies the dedup policy under the decision's lock.
func (e *IngestEngine) persist(ctx context.Context, decision *models.Decision) (string, error) {
	unlock := e.locks.Lock(decision.ID)
	defer unlock()

	stored, found, err := e.store.GetContentHash(ctx, decision.ID)
	if err != nil {
		return "", err
	}

	outcome := fingerprint.Decide(stored, found, decision.ContentHash)
	switch outcome {
	case models.OutcomeSkipped:
		return outcome, nil
	case models.OutcomeUpdated:
		if err := e.store.UpdateDecision(ctx, decision); err != nil {
			return "", err
		}
		return outcome, nil
	}

	err = e.store.InsertDecision(ctx, decision)
	if err == nil {
		return outcome, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return "", err
	}

	// another writer got there first
	e.logger.Debug().Str("decision_id", decision.ID).Msg("Insert conflict, re-reading")
	stored, found, err = e.store.GetContentHash(ctx, decision.ID)
	if err != nil {
		return "", err
	}
	if found && stored == decision.ContentHash {
		return models.OutcomeSkipped, nil
	}
	if err := e.store.UpdateDecision(ctx, decision); err != nil {
		return "", err
	}
	return models.OutcomeUpdated, nil
}
