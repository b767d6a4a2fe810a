package cmd

import (
	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"github.com/spf13/cobra"
)

var (
	decisionFilters   models.SearchFilters
	decisionsLimit    int
	decisionsOffset   int
	decisionsDateFrom string
	decisionsDateTo   string
	showChunks        bool
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect stored decisions",
	Long:  `Inspect stored decisions - list and get.`,
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decisions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters, err := cliFilters(decisionFilters, decisionsDateFrom, decisionsDateTo)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		decisions, err := a.store.ListDecisions(cmd.Context(), filters, decisionsLimit, decisionsOffset)
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to list decisions")
			return err
		}
		// listings leave the body out
		for _, d := range decisions {
			d.ContentText = ""
		}
		return printJSON(cmd.OutOrStdout(), decisions)
	},
}

var decisionsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get a decision by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		decision, err := a.store.GetDecision(cmd.Context(), args[0])
		if err != nil {
			a.logger.Error().Err(err).Str("decision_id", args[0]).Msg("Failed to get decision")
			return err
		}
		if !showChunks {
			return printJSON(cmd.OutOrStdout(), decision)
		}

		chunks, err := a.store.GetChunks(cmd.Context(), decision.ID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			*models.Decision
			Chunks []*models.Chunk `json:"chunks"`
		}{decision, chunks})
	},
}

func init() {
	rootCmd.AddCommand(decisionsCmd)
	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsGetCmd)

	addFilterFlags(decisionsListCmd, &decisionFilters, &decisionsDateFrom, &decisionsDateTo)
	decisionsListCmd.Flags().IntVarP(&decisionsLimit, "limit", "n", 20, "Maximum decisions to list")
	decisionsListCmd.Flags().IntVar(&decisionsOffset, "offset", 0, "Decisions to skip")
	decisionsGetCmd.Flags().BoolVar(&showChunks, "chunks", false, "Include the stored chunks")
}

// addFilterFlags binds the structured search filters to cmd.
func addFilterFlags(cmd *cobra.Command, f *models.SearchFilters, dateFrom, dateTo *string) {
	cmd.Flags().StringSliceVar(&f.SourceIDs, "source", nil, "Restrict to source ids")
	cmd.Flags().StringVar(&f.Level, "level", "", "federal or cantonal")
	cmd.Flags().StringVar(&f.Canton, "canton", "", "Canton code, e.g. ZH")
	cmd.Flags().StringVar(&f.Language, "language", "", "Decision language, e.g. de")
	cmd.Flags().StringVar(dateFrom, "date-from", "", "Earliest decision date (YYYY-MM-DD)")
	cmd.Flags().StringVar(dateTo, "date-to", "", "Latest decision date (YYYY-MM-DD)")
}

func cliFilters(f models.SearchFilters, dateFrom, dateTo string) (*models.SearchFilters, error) {
	var err error
	if f.DateFrom, err = parseDateFlag("date-from", dateFrom); err != nil {
		return nil, err
	}
	if f.DateTo, err = parseDateFlag("date-to", dateTo); err != nil {
		return nil, err
	}
	return &f, nil
}
