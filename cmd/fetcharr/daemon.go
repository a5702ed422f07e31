package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fetcharr/internal/daemon"
	"fetcharr/internal/logging"
)

func newDaemonCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the queue scheduler in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			if !cc.exists {
				return fmt.Errorf("no configuration found at %s (run \"fetcharr config init\" first)", cc.cfgPath)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := cc.openStore()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, store, logger)
			if err != nil {
				_ = store.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(ctx); err != nil {
				_ = d.Close()
				return err
			}

			<-ctx.Done()
			return d.Close()
		},
	}
}
