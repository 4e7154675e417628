package main

import (
	"fmt"

	"github.com/FranksOps/haggle/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the price comparison API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			store, err := openBackend(cmd.Context(), a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			if store != nil {
				defer store.Close()
			}

			cfg := server.Config{
				Addr:         a.cfg.Server.Addr,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
			}
			if addr != "" {
				cfg.Addr = addr
			}

			a.logger.Info("starting server",
				"sources", len(a.pipeline.Sources),
				"storage", a.cfg.Storage.Backend,
			)
			return server.New(cfg, a.pipeline, store, a.logger).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
