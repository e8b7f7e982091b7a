package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sms_crm_agent/internal/api"
	"sms_crm_agent/internal/logger"

	"github.com/spf13/cobra"
)

// turnTimeout bounds one webhook turn, several oracle calls included.
const turnTimeout = 2 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SMS webhook server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		crm, err := openApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer crm.Close()

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      api.NewRouter(api.NewHandler(crm.processor, turnTimeout)),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: turnTimeout + 10*time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().
				Str("addr", srv.Addr).
				Str("provider", cfg.Oracle.Provider).
				Str("sessions", cfg.Conversation.Store).
				Msg("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
