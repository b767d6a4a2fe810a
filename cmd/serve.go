package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/api"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and answers over HTTP",
	Long:  `Serve GET /healthz, GET|POST /search, POST /answer and GET /decisions/{id}.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		addr := listenAddr
		if addr == "" {
			addr = a.cfg.ListenAddr
		}
		server := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(search, answers).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info().Str("addr", addr).Msg("HTTP server listening")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.Info().Msg("Shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default LISTEN_ADDR or :8080)")
}
