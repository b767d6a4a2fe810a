package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/code-sleuth/caselaw-go/internal/manager/mcpserver"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve search and answers as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries the protocol
		util.SetOutput(os.Stderr)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		search := a.searchService()
		answers, err := a.answerService(search)
		if err != nil {
			return err
		}
		return mcpserver.Run(ctx, mcpserver.NewHandlers(search, answers))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
