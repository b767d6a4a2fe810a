package cmd

import (
	"errors"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/services"

	"github.com/spf13/cobra"
)

var (
	reindexMissing  bool
	reindexLimit    int
	reindexFilters  models.SearchFilters
	reindexDateFrom string
	reindexDateTo   string
)

// reindexCmd represents the reindex command.
var reindexCmd = &cobra.Command{
	Use:   "reindex [decision-id...]",
	Short: "Rebuild chunks and embeddings of stored decisions",
	Long: `Rebuild the chunk set of stored decisions and embed it with the configured provider.

Examples:
  # Backfill vectors for decisions ingested while the provider was down
  caselaw reindex --missing-embeddings

  # Rechunk two decisions
  caselaw reindex 1f0c... 9a7e...

  # Rechunk every cantonal decision from Zurich
  caselaw reindex --level cantonal --canton ZH`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().BoolVar(&reindexMissing, "missing-embeddings", false,
		"Only decisions whose chunks are missing, lack vectors or are stale")
	reindexCmd.Flags().IntVarP(&reindexLimit, "limit", "n", 0, "Maximum decisions for --missing-embeddings (0 for all)")
	addFilterFlags(reindexCmd, &reindexFilters, &reindexDateFrom, &reindexDateTo)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	indexer, err := a.indexer()
	if err != nil {
		return err
	}

	var stats *services.ReindexStats
	switch {
	case len(args) > 0:
		stats = &services.ReindexStats{}
		for _, id := range args {
			n, err := indexer.ReindexDecision(ctx, id)
			switch {
			case err == nil:
				stats.Decisions++
				stats.Chunks += n
			case errors.Is(err, services.ErrEmbeddingDeferred):
				a.logger.Warn().Err(err).Str("decision_id", id).Msg("Chunks stored without vectors")
				stats.Deferred++
			default:
				a.logger.Error().Err(err).Str("decision_id", id).Msg("Reindex failed")
				stats.Failed++
			}
		}
	case reindexMissing:
		stats, err = indexer.ReindexMissing(ctx, reindexLimit)
	default:
		filters, ferr := cliFilters(reindexFilters, reindexDateFrom, reindexDateTo)
		if ferr != nil {
			return ferr
		}
		stats, err = indexer.ReindexAll(ctx, filters)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stats)
}
