package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepteams/webp2png/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversions over HTTP",
		Long: `Serve runs the HTTP endpoint:

  POST /api/v1/convert   image bytes in, image/png out
  POST /api/v1/inspect   image bytes in, JSON header out
  GET  /health
  GET  /metrics          Prometheus metrics

It stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.converter()
			if err != nil {
				return err
			}
			svc := server.New(conv, a.cfg.Server, a.log)
			a.log.Info("serving",
				zap.String("addr", a.cfg.Server.Addr),
				zap.Int64("max_concurrent", a.cfg.Server.MaxConcurrent),
				zap.Duration("timeout", a.cfg.Server.Timeout))
			return svc.ListenAndServe(cmd.Context(), a.cfg.Server.Addr, nil)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8765", "listen address")
	cmd.Flags().Int64("max-concurrent", 4, "concurrent conversions")
	cmd.Flags().Duration("timeout", 30*time.Second, "per-request conversion deadline (0 disables)")
	a.bindFlag(cmd, "server.addr", "addr")
	a.bindFlag(cmd, "server.max_concurrent", "max-concurrent")
	a.bindFlag(cmd, "server.timeout", "timeout")
	return cmd
}
