package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentloop/metrics"
)

func newServeMetricsCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Expose the Prometheus metrics endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cfg.Metrics.Enabled = true
			if addr != "" {
				cfg.Metrics.Addr = addr
			}

			loop, err := flags.newLoop(cfg, nil)
			if err != nil {
				return err
			}
			defer loop.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "serving metrics on %s/metrics\n", cfg.Metrics.Addr)
			return metrics.Serve(ctx, cfg.Metrics.Addr, loop.Metrics().Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default metrics.addr)")
	return cmd
}
