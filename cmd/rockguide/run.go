package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/guide"
	"github.com/teslashibe/rockguide/pkg/sensor"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		sensorURL string
		once      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Guide a live user from the body-tracking bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if sensorURL != "" {
				cfg.Sensor.URL = sensorURL
			}
			if once {
				cfg.Session.StopOnComplete = true
			}

			src := sensor.NewWSSource(cfg.Sensor, log.L())
			app, err := guide.New(cfg, src, guide.WithLogger(log.L()))
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := app.Init(); err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer app.Shutdown()

			fmt.Fprintf(cmd.OutOrStdout(), "🪨 rockguide session %s: %d targets, sensor %s\n",
				app.ID(), app.Sequencer().Len(), cfg.Sensor.URL)
			if cfg.Dashboard.Enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "🌐 Dashboard: http://localhost:%s/api/status\n", cfg.Dashboard.Port)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Run(ctx); err != nil {
				return err
			}
			printSummary(cmd, app)
			return nil
		},
	}

	cmd.Flags().StringVar(&sensorURL, "sensor-url", "", "Body-tracking bridge websocket URL (overrides config)")
	cmd.Flags().BoolVar(&once, "once", false, "Exit once every target has been touched")
	return cmd
}

func printSummary(cmd *cobra.Command, app *guide.App) {
	st := app.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %d/%d targets in %s (%d ticks)\n",
		st.Sequence.Index, st.Sequence.Len, st.Elapsed.Round(time.Millisecond), st.Ticks)
}
