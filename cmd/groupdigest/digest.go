package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Run one digest cycle over all active chats and exit (for external cron)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.service.RunCycle(ctx)
		},
	}
}
