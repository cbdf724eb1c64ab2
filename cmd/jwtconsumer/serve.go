package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-jwt/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve token validation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := app.New(ctx, c.file, app.WithLogger(c.logger))
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				_ = svc.Stop(context.Background())
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           svc.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				c.logger.InfoContext(ctx, "jwtconsumer: listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err = <-errCh:
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				c.logger.ErrorContext(shutdownCtx, "jwtconsumer: http shutdown failed", "error", serr)
			}
			if serr := svc.Stop(shutdownCtx); serr != nil {
				c.logger.ErrorContext(shutdownCtx, "jwtconsumer: service stop failed", "error", serr)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	return cmd
}
