package cmd

import (
	"github.com/spf13/cobra"
)

var (
	sourcesLevel string
	runsLimit    int
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect configured sources",
	Long:  `Inspect the configured court sources, validate them and list their ingestion runs.`,
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		registry, err := a.registry()
		if err != nil {
			return err
		}
		selection := []string{"all"}
		if sourcesLevel != "" {
			selection = []string{sourcesLevel}
		}
		sources, err := registry.Select(selection)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			a.logger.Warn().Msg("No sources found")
		}
		return printJSON(cmd.OutOrStdout(), sources)
	},
}

var sourcesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every source against the discovery strategies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		registry, err := a.registry()
		if err != nil {
			return err
		}
		engine, err := a.engine()
		if err != nil {
			return err
		}
		if err := engine.ValidateSources(registry.All()); err != nil {
			return err
		}
		cmd.Printf("%d sources valid\n", len(registry.All()))
		return nil
	},
}

var sourcesRunsCmd = &cobra.Command{
	Use:   "runs [source-id]",
	Short: "List recent ingestion runs, optionally for one source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sourceID := ""
		if len(args) == 1 {
			sourceID = args[0]
		}
		runs, err := a.store.ListRuns(cmd.Context(), sourceID, runsLimit)
		if err != nil {
			a.logger.Error().Err(err).Str("source_id", sourceID).Msg("Failed to list runs")
			return err
		}
		return printJSON(cmd.OutOrStdout(), runs)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesValidateCmd)
	sourcesCmd.AddCommand(sourcesRunsCmd)

	sourcesListCmd.Flags().StringVar(&sourcesLevel, "level", "", "Only federal or cantonal sources")
	sourcesRunsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list")
}
