package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"fetcharr/internal/config"
)

func newConfigCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCommand(cc))
	cmd.AddCommand(newConfigShowCommand(cc))
	cmd.AddCommand(newConfigValidateCommand(cc))
	return cmd
}

func newConfigValidateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			if !cc.exists {
				return fmt.Errorf("no configuration found at %s", cc.cfgPath)
			}
			fmt.Printf("%s is valid: %d instance(s), %d queue(s)\n",
				cc.cfgPath, len(cfg.Instances), len(cfg.Queues))
			return nil
		},
	}
}

func newConfigInitCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a documented sample configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cc.configFlag != nil {
				path = *cc.configFlag
			}
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("configuration already exists at %s", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Printf("Sample configuration written to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}

			source := cc.cfgPath
			if !cc.exists {
				source += " (not found, using defaults)"
			}
			fmt.Printf("Config:    %s\n", source)
			fmt.Printf("Data dir:  %s\n", cfg.Paths.DataDir)
			fmt.Printf("Log dir:   %s\n", cfg.Paths.LogDir)
			fmt.Printf("API bind:  %s\n", cfg.Paths.APIBind)
			fmt.Printf("Logging:   %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
			fmt.Printf("Feedback:  after %s\n", cfg.FeedbackDelay())

			if len(cfg.Instances) > 0 {
				rows := make([][]string, 0, len(cfg.Instances))
				for _, inst := range cfg.Instances {
					rows = append(rows, []string{inst.Name, inst.Type, inst.URL})
				}
				fmt.Println(renderTable(
					[]string{"Instance", "Type", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}

			if len(cfg.Queues) > 0 {
				rows := make([][]string, 0, len(cfg.Queues))
				for _, queue := range cfg.Queues {
					cooldown := queue.CooldownMode
					if queue.CooldownMode == "flat" {
						cooldown = fmt.Sprintf("flat (%dh)", queue.CooldownHours)
					}
					rows = append(rows, []string{
						queue.Name,
						queue.Instance,
						queue.Strategy,
						cooldown,
						strconv.Itoa(queue.MaxItemsPerRun),
						strconv.Itoa(queue.IntervalHours) + "h",
						strconv.FormatBool(queue.SeasonPackEnabled),
					})
				}
				fmt.Println(renderTable(
					[]string{"Queue", "Instance", "Strategy", "Cooldown", "Max items", "Interval", "Season packs"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
			}
			return nil
		},
	}
}
