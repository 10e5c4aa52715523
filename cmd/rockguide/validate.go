package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list the targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			targets, err := cfg.BuildTargets(nil)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "feedback mode: %s (range %.2f..%.2f)\n",
				cfg.Feedback.Mode, cfg.Feedback.MinDistance, cfg.Feedback.MaxDistance)
			fmt.Fprintf(out, "audio: %s, confirm: %s\n", cfg.Audio.Backend, cfg.Confirm.Backend)
			for i, t := range targets {
				fmt.Fprintf(out, "  %d. %s\n", i+1, t)
			}
			fmt.Fprintln(out, "Configuration is valid! ✅")
			return nil
		},
	}
}
