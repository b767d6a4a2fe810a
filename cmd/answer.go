package cmd

import (
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"github.com/spf13/cobra"
)

var (
	answerFilters  models.SearchFilters
	answerDateFrom string
	answerDateTo   string
)

var answerCmd = &cobra.Command{
	Use:   "answer [question]",
	Short: "Answer a question from stored decisions with citations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := cliFilters(answerFilters, answerDateFrom, answerDateTo)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		answers, err := a.answerService(a.searchService())
		if err != nil {
			return err
		}
		answer, err := answers.Answer(cmd.Context(), strings.Join(args, " "), *filters)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), answer)
	},
}

func init() {
	rootCmd.AddCommand(answerCmd)
	addFilterFlags(answerCmd, &answerFilters, &answerDateFrom, &answerDateTo)
}
