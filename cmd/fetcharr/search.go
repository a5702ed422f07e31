package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fetcharr/internal/daemon"
	"fetcharr/internal/feedback"
	"fetcharr/internal/logging"
	"fetcharr/internal/search"
)

func newSearchCommand(cc *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "search <queue>",
		Short: "Run one search cycle for a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			queue, ok := cfg.QueueByName(args[0])
			if !ok {
				return fmt.Errorf("queue %q is not configured", args[0])
			}
			inst, ok := cfg.InstanceByName(queue.Instance)
			if !ok {
				return fmt.Errorf("instance %q is not configured", queue.Instance)
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
			defer store.Close()

			client, err := daemon.BuildClient(inst, cfg.Workflow, logger)
			if err != nil {
				return err
			}

			runner := search.NewRunner(store, client, queue, cfg.Workflow, logger)
			run, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Run %s finished: %d considered, %d dispatched\n",
				run.ID, run.CandidatesConsidered, run.SearchesDispatched)

			records, err := store.RecordsForRun(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.Itoa(rec.Seq),
						rec.Label,
						string(rec.Action),
						strconv.FormatFloat(rec.Score, 'f', 1, 64),
						rec.Reason,
						string(rec.Result),
					})
				}
				fmt.Println(renderTable(
					[]string{"#", "Item", "Action", "Score", "Reason", "Result"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
			}

			if check && run.SearchesDispatched > 0 {
				checker := feedback.NewChecker(store, logger)
				summary, err := checker.CheckRun(cmd.Context(), client, run.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Feedback: %d checked, %d confirmed\n", summary.Checked, summary.Confirmed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Verify dispatch outcomes immediately instead of waiting for the daemon")
	return cmd
}
