package cmd

import (
	"github.com/code-sleuth/caselaw-go/pkg/migrations"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the schema for the configured database (sqlite, libsql or postgres).
The vector column is sized by EMBEDDINGS_DIM. Statements are idempotent.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := migrations.Apply(cmd.Context(), a.database, a.cfg.EmbeddingsDim); err != nil {
			a.logger.Error().Err(err).Msg("Failed to execute migration")
			return err
		}

		a.logger.Info().Str("driver", a.database.Driver).Msg("Database migration completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
