package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	cc := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "fetcharr",
		Short:         "Adaptive search prioritization for Sonarr and Radarr",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newDaemonCommand(cc))
	rootCmd.AddCommand(newSearchCommand(cc))
	rootCmd.AddCommand(newStatusCommand(cc))
	rootCmd.AddCommand(newRunsCommand(cc))
	rootCmd.AddCommand(newRunCommand(cc))
	rootCmd.AddCommand(newVerifyCommand(cc))
	rootCmd.AddCommand(newTrackingCommand(cc))
	rootCmd.AddCommand(newConfigCommand(cc))

	return rootCmd
}
