package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "caselaw",
	Short: "Ingest, index and search Swiss court decisions",
	Long: `caselaw discovers decisions on court publication sites, stores them deduplicated,
indexes them for hybrid full-text and semantic retrieval, and answers questions with citations.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(zerolog.ErrorLevel)
		logger.Fatal().Err(err).Msg("Command failed")
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	logger := util.NewLogger(util.LevelFromEnv())
	// the environment alone is a valid configuration
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("Failed to load .env file")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
