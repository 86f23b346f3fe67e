package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/tool"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		agentPath     string
		message       string
		messageID     string
		username      string
		timezone      string
		dryRunActions bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one agent turn and print its events as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if message == "" {
				return errors.New("--message is required")
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			agentCfg, err := config.LoadAgentConfigurationFile(agentPath)
			if err != nil {
				return err
			}

			registry := tool.NewRegistry()
			if dryRunActions {
				registry = tool.NewRegistry(tool.EchoRunners()...)
			}

			loop, err := flags.newLoop(cfg, registry)
			if err != nil {
				return err
			}
			defer loop.Close() //nolint:errcheck

			if err := loop.RegisterAgent(agentCfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			user := &core.UserMessage{
				SID:     core.NewID(),
				Content: message,
				Context: core.UserContext{Username: username, Timezone: timezone},
			}
			agentMsg := core.NewAgentMessage(messageID)
			fmt.Fprintf(cmd.ErrOrStderr(), "agent message %s\n", agentMsg.SID())

			events, err := loop.RunAgent(ctx, agentCfg.SID, nil, user, agentMsg)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			var failed *core.AgentError
			for ev := range events {
				if err := enc.Encode(ev); err != nil {
					return err
				}
				if e, ok := ev.(core.AgentErrorEvent); ok {
					aerr := e.Error
					failed = &aerr
				}
			}
			if failed != nil {
				return failed
			}
			return ctx.Err()
		},
	}

	cmd.Flags().StringVarP(&agentPath, "agent", "a", "agent.yaml", "agent configuration file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "user message")
	cmd.Flags().StringVar(&messageID, "message-id", "", "agent message id (generated when empty)")
	cmd.Flags().StringVar(&username, "username", "user", "sender username")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "sender timezone")
	cmd.Flags().BoolVar(&dryRunActions, "dry-run-actions", false, "answer capability calls with echo runners")
	return cmd
}
