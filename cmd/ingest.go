package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// unsetDepth leaves the crawl depth to INGEST_MAX_DEPTH; 0 is a valid depth.
const unsetDepth = -1

var (
	ingestSources    []string
	ingestSince      string
	ingestUntil      string
	ingestHistorical bool
	ingestMaxPages   int
	ingestMaxDepth   int
	ingestParallel   int
	ingestTimeout    time.Duration
)

// ingestCmd represents the ingest command.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Discover, fetch and index decisions from configured sources",
	Long: `Run one ingestion pass per selected source. Each pass discovers candidate documents,
fetches and extracts them, stores new or changed decisions and indexes their chunks.

Examples:
  # Every federal court, decisions from 2024 on
  caselaw ingest --sources federal --since 2024-01-01

  # Two sources, whole archive, crawl bounds raised
  caselaw ingest --sources bger,zh_obergericht --historical --max-pages 10000 --max-depth 5`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringSliceVarP(&ingestSources, "sources", "s", []string{"all"},
		"Source ids or groups (all, federal, cantonal)")
	ingestCmd.Flags().StringVar(&ingestSince, "since", "", "Earliest decision date (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestUntil, "until", "", "Latest decision date (YYYY-MM-DD, default today when --since is set)")
	ingestCmd.Flags().BoolVar(&ingestHistorical, "historical", false, "Ignore the date window and walk the whole archive")
	ingestCmd.Flags().IntVar(&ingestMaxPages, "max-pages", 0, "Page budget per source (default INGEST_MAX_PAGES_PER_SOURCE)")
	ingestCmd.Flags().IntVar(&ingestMaxDepth, "max-depth", unsetDepth,
		"Crawl depth, 0 reads only the start pages (default INGEST_MAX_DEPTH)")
	ingestCmd.Flags().IntVarP(&ingestParallel, "parallel", "p", 2, "Sources processed in parallel")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 0, "Abort the whole ingestion after this long (0 for no limit)")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ingestTimeout)
		defer cancel()
	}

	args, err := ingestArgs()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if args.MaxPages == 0 {
		args.MaxPages = a.cfg.MaxPages
	}
	if args.MaxDepth == unsetDepth {
		args.MaxDepth = a.cfg.MaxDepth
	}

	registry, err := a.registry()
	if err != nil {
		return err
	}
	sources, err := registry.Select(ingestSources)
	if err != nil {
		return err
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}
	if err := engine.ValidateSources(sources); err != nil {
		return err
	}

	a.logger.Info().
		Int("sources", len(sources)).
		Bool("historical", args.Historical).
		Int("max_pages", args.MaxPages).
		Int("max_depth", args.MaxDepth).
		Msg("Starting ingestion")

	runs, runErr := engine.RunSources(ctx, sources, args, ingestParallel)
	if err := printJSON(cmd.OutOrStdout(), runs); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("ingestion finished with failures: %w", runErr)
	}
	return nil
}

func ingestArgs() (*models.IngestArgs, error) {
	args := &models.IngestArgs{
		Historical: ingestHistorical,
		MaxPages:   ingestMaxPages,
		MaxDepth:   ingestMaxDepth,
	}
	var err error
	if args.Since, err = parseDateFlag("since", ingestSince); err != nil {
		return nil, err
	}
	if args.Until, err = parseDateFlag("until", ingestUntil); err != nil {
		return nil, err
	}
	if args.Since != nil && args.Until != nil && args.Until.Before(*args.Since) {
		return nil, fmt.Errorf("--until %s is before --since %s", ingestUntil, ingestSince)
	}
	if args.MaxPages < 0 || args.MaxDepth < unsetDepth {
		return nil, fmt.Errorf("--max-pages and --max-depth cannot be negative")
	}
	return args, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return &t, nil
}
