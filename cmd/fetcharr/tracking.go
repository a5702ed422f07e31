package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTrackingCommand(cc *commandContext) *cobra.Command {
	var (
		instance string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "tracking",
		Short: "List tracked search history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cc.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.ListItems(cmd.Context(), instance, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No tracked items yet.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.Instance,
					string(item.Kind),
					strconv.FormatInt(item.ExternalID, 10),
					strconv.Itoa(item.SearchAttempts),
					strconv.Itoa(item.GrabsConfirmed),
					formatLocal(item.LastSearchedAt),
					formatLocal(item.LastGrabAt),
				})
			}
			fmt.Println(renderTable(
				[]string{"Instance", "Kind", "ID", "Attempts", "Grabs", "Last searched", "Last grab"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&instance, "instance", "", "Only show items for this instance")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of items to list")
	return cmd
}
