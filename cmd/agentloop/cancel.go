package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <message-id>...",
		Short: "Raise the cancellation flag of running agent messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("cancel needs a shared flag store: set redis.addr")
			}

			loop, err := flags.newLoop(cfg, nil)
			if err != nil {
				return err
			}
			defer loop.Close() //nolint:errcheck

			if err := loop.Cancel(cmd.Context(), args...); err != nil {
				return err
			}
			for _, id := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", id)
			}
			return nil
		},
	}
}
