package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/rockguide/internal/config"
	"github.com/teslashibe/rockguide/internal/log"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rockguide",
		Short:         "Audio-guided target acquisition",
		Long:          `rockguide reads hand positions from a body-tracking bridge and guides them to an ordered set of targets using volume, pan and tempo cues.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (defaults are used when empty)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(
		newRunCmd(opts),
		newSimulateCmd(opts),
		newValidateCmd(opts),
	)
	return cmd
}

// load reads the configuration and initializes logging from it.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
