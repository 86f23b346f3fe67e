package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newModelsCmd(flags *rootFlags) *cobra.Command {
	var multiActionsOnly bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Print the model catalog as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cfg.Redis.Addr = ""

			loop, err := flags.newLoop(cfg, nil)
			if err != nil {
				return err
			}
			defer loop.Close() //nolint:errcheck

			catalog := loop.Engine().Catalog()
			if multiActionsOnly {
				catalog = catalog.MultiActions()
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(catalog); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&multiActionsOnly, "multi-actions", false, "only list models supporting multi-actions")
	return cmd
}
