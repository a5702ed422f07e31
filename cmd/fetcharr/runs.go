package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand(cc *commandContext) *cobra.Command {
	var (
		queueName string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent queue runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cc.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), queueName, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.QueueName,
					string(run.Status),
					formatLocal(&run.StartedAt),
					strconv.Itoa(run.CandidatesConsidered),
					strconv.Itoa(run.SearchesDispatched),
				})
			}
			fmt.Println(renderTable(
				[]string{"Run", "Queue", "Status", "Started", "Considered", "Dispatched"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&queueName, "queue", "", "Only show runs for this queue")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func newRunCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <run-id>",
		Short: "Show one run and its dispatch records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			fmt.Printf("Run:        %s\n", run.ID)
			fmt.Printf("Queue:      %s (%s, %s)\n", run.QueueName, run.Instance, run.Strategy)
			fmt.Printf("Status:     %s\n", run.Status)
			fmt.Printf("Started:    %s\n", formatLocal(&run.StartedAt))
			fmt.Printf("Finished:   %s\n", formatLocal(run.FinishedAt))
			fmt.Printf("Considered: %d\n", run.CandidatesConsidered)
			fmt.Printf("Dispatched: %d\n", run.SearchesDispatched)
			if run.ErrorMessage != "" {
				fmt.Printf("Error:      %s\n", run.ErrorMessage)
			}

			records, err := store.RecordsForRun(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					strconv.Itoa(rec.Seq),
					rec.Label,
					string(rec.Action),
					strconv.FormatFloat(rec.Score, 'f', 1, 64),
					rec.Reason,
					string(rec.Result),
					string(rec.Outcome),
				})
			}
			fmt.Println(renderTable(
				[]string{"#", "Item", "Action", "Score", "Reason", "Result", "Outcome"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatLocal(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
