package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agenda/internal/ratelimit"
	"agenda/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					a.log.Warn("shutdown", "error", err)
				}
			}()

			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
			go limiter.Run(ctx, cfg.RateLimit.Window)

			deps := server.Deps{
				Chat:          a.chat,
				Conversations: a.store,
				Limiter:       limiter,
				Auth:          server.HeaderAuthenticator{Header: cfg.Server.UserHeader},
				Logger:        a.log,
				PublicURL:     cfg.Server.PublicURL,
				SecureCookie:  strings.HasPrefix(cfg.Server.PublicURL, "https://"),
			}
			if a.calendar != nil {
				deps.Calendar = a.calendar
			}

			return server.New(deps).Run(ctx, cfg.Server.Addr, cfg.Server.ReadHeaderTimeout, cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
