package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentloop"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/tool"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "agentloop",
		Short:         "Run tool-using agent turns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(
		newRunCmd(flags),
		newCancelCmd(flags),
		newModelsCmd(flags),
		newServeMetricsCmd(flags),
	)
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	return config.Load(f.configPath)
}

func (f *rootFlags) newLoop(cfg *config.Config, registry *tool.Registry) (*agentloop.AgentLoop, error) {
	return agentloop.New(func(o *agentloop.Options) {
		o.Config = cfg
		o.Registry = registry
	})
}
