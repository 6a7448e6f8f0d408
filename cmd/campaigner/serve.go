package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	srv "github.com/mohammad-safakhou/campaigner/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Address
			}
			e := srv.New(a.orch, srv.Options{
				AssetsDir:     a.cfg.Storage.AssetsDir,
				PublicBaseURL: a.cfg.Storage.PublicBaseURL,
				Metrics:       a.telemetry.Handler(),
				Agents:        a.orch,
				Logger:        a.logger,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("listening", zap.String("addr", addr), zap.String("storage", a.cfg.Storage.Backend))
				return srv.Run(gctx, e, addr, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				return nil
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
