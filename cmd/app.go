package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/code-sleuth/caselaw-go/internal/manager/cache"
	"github.com/code-sleuth/caselaw-go/internal/manager/chunkers"
	"github.com/code-sleuth/caselaw-go/internal/manager/config"
	"github.com/code-sleuth/caselaw-go/internal/manager/discoverers"
	"github.com/code-sleuth/caselaw-go/internal/manager/embedders"
	"github.com/code-sleuth/caselaw-go/internal/manager/extractors"
	"github.com/code-sleuth/caselaw-go/internal/manager/fetch"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/llms"
	"github.com/code-sleuth/caselaw-go/internal/manager/repository"
	"github.com/code-sleuth/caselaw-go/internal/manager/services"
	"github.com/code-sleuth/caselaw-go/pkg/db"
	"github.com/code-sleuth/caselaw-go/pkg/retry"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	database *db.DB
	store    interfaces.Store
	embedder interfaces.Embedder
	cache    *cache.QueryEmbeddings
	logger   zerolog.Logger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := util.NewLogger(util.LevelFromString(cfg.LogLevel))

	database, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store, err := repository.New(database)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	a := &app{cfg: cfg, database: database, store: store, logger: logger}

	a.embedder, err = embedders.New(cfg.EmbeddingsProvider, cfg.EmbeddingsModel, cfg.EmbeddingsDim)
	switch {
	case errors.Is(err, embedders.ErrProviderNotConfig):
		logger.Warn().Msg("No embeddings provider configured, chunks are stored without vectors")
	case err != nil:
		a.Close()
		return nil, err
	}

	if cfg.RedisURL != "" && a.embedder != nil {
		a.cache, err = cache.Open(ctx, cfg.RedisURL, cfg.QueryCacheTTL)
		if err != nil {
			// retrieval works without the cache
			logger.Warn().Err(err).Msg("Query cache unavailable")
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close query cache")
		}
	}
	if err := a.database.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database connection")
	}
}

func (a *app) registry() (*config.Registry, error) {
	return config.LoadSources(a.cfg.SourcesFile)
}

func (a *app) indexer() (*services.Indexer, error) {
	chunker, err := chunkers.NewParagraphChunker(a.cfg.ChunkMaxChars, a.cfg.ChunkOverlapChars)
	if err != nil {
		return nil, err
	}
	return services.NewIndexer(chunker, a.embedder, a.store), nil
}

// engine builds the ingestion engine with every built-in discovery strategy.
func (a *app) engine() (*services.IngestEngine, error) {
	indexer, err := a.indexer()
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	robots := fetch.NewRobotsCache(client, a.cfg.UserAgent)
	fetcher := fetch.NewFetcher(fetch.Config{
		UserAgent:     a.cfg.UserAgent,
		Timeout:       a.cfg.Timeout,
		RespectRobots: a.cfg.RespectRobots,
		Retry:         retry.DefaultPolicy(),
	}, client, robots, fetch.NewHostLimiter(a.cfg.RateLimitRPS, a.cfg.RateBurst))

	engine := services.NewIngestEngine(a.store, fetcher, extractors.NewExtractor(), indexer, services.EngineConfig{
		Concurrency:  a.cfg.Concurrency,
		MinTextChars: a.cfg.MinTextChars,
	})
	for _, d := range discoverers.Defaults(robots) {
		if err := engine.RegisterDiscoverer(d); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func (a *app) searchService() *services.SearchService {
	var qc interfaces.QueryCache
	if a.cache != nil {
		qc = a.cache
	}
	return services.NewSearchService(a.store, a.embedder, qc)
}

func (a *app) answerService(search *services.SearchService) (*services.AnswerService, error) {
	llm, err := llms.New(a.cfg.LLMProvider, a.cfg.LLMModel)
	if err != nil {
		return nil, err
	}
	return services.NewAnswerService(search, llm, a.cfg.AnswerMaxHits)
}
