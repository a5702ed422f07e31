package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fetcharr/internal/daemon"
	"fetcharr/internal/feedback"
	"fetcharr/internal/logging"
)

func newVerifyCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Check dispatch outcomes for a run against its instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			store, err := cc.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %q not found", args[0])
			}
			inst, ok := cfg.InstanceByName(run.Instance)
			if !ok {
				return fmt.Errorf("instance %q is no longer configured", run.Instance)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			client, err := daemon.BuildClient(inst, cfg.Workflow, logger)
			if err != nil {
				return err
			}

			checker := feedback.NewChecker(store, logger)
			summary, err := checker.CheckRun(cmd.Context(), client, run.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Run %s: %d checked, %d confirmed\n", run.ID, summary.Checked, summary.Confirmed)
			return nil
		},
	}
}
