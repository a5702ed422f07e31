package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

func newStatusCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and queue history",
		Args:  cobra.NoArgs,
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

			fmt.Printf("Config:   %s\n", cc.cfgPath)
			fmt.Printf("Database: %s\n", store.Path())
			fmt.Printf("Daemon:   %s\n", daemonState(cfg.Paths.DataDir))

			if len(cfg.Queues) == 0 {
				fmt.Println("No queues configured.")
				return nil
			}

			rows := make([][]string, 0, len(cfg.Queues))
			for _, queue := range cfg.Queues {
				lastRun := "-"
				lastStatus := "-"
				dispatched := "-"
				run, err := store.LastRun(cmd.Context(), queue.Name)
				if err != nil {
					return err
				}
				if run != nil {
					lastRun = formatLocal(&run.StartedAt)
					lastStatus = string(run.Status)
					dispatched = strconv.Itoa(run.SearchesDispatched)
				}
				rows = append(rows, []string{
					queue.Name,
					queue.Instance,
					queue.Strategy,
					strconv.Itoa(queue.IntervalHours) + "h",
					lastRun,
					lastStatus,
					dispatched,
				})
			}
			fmt.Println(renderTable(
				[]string{"Queue", "Instance", "Strategy", "Interval", "Last run", "Status", "Dispatched"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

// daemonState probes the daemon lock file without holding it.
func daemonState(dataDir string) string {
	lock := flock.New(filepath.Join(dataDir, "fetcharr.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return "unknown"
	}
	if !ok {
		return "running"
	}
	_ = lock.Unlock()
	return "stopped"
}
