package cmd

import (
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"github.com/spf13/cobra"
)

var (
	searchFilters  models.SearchFilters
	searchDateFrom string
	searchDateTo   string
	searchSort     string
	searchLimit    int
	searchOffset   int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored decisions",
	Long: `Search stored decisions with fused full-text and semantic ranking.
Without a query the newest decisions matching the filters are listed.

Examples:
  caselaw search Mietzinserhöhung Formular --level federal
  caselaw search --canton ZH --sort date_desc --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := cliFilters(searchFilters, searchDateFrom, searchDateTo)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.searchService().Search(cmd.Context(), &models.SearchRequest{
			Query:   strings.Join(args, " "),
			Filters: *filters,
			Sort:    searchSort,
			Limit:   searchLimit,
			Offset:  searchOffset,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	addFilterFlags(searchCmd, &searchFilters, &searchDateFrom, &searchDateTo)
	searchCmd.Flags().StringVar(&searchSort, "sort", models.SortRelevance, "relevance, date_desc or date_asc")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum hits")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Hits to skip")
}
