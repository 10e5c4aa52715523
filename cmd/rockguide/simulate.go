package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/audioio"
	"github.com/teslashibe/rockguide/pkg/guide"
	"github.com/teslashibe/rockguide/pkg/sensor"
	"github.com/teslashibe/rockguide/pkg/session"
)

func newSimulateCmd(root *rootOptions) *cobra.Command {
	var (
		audio     string
		step      float64
		dropEvery int
		tick      time.Duration
		timeout   time.Duration
		dashboard bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a session against a simulated hand sweeping through the targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			cfg.Audio.Backend = audioio.Backend(audio)
			cfg.Session.StopOnComplete = true
			cfg.Dashboard.Enabled = dashboard
			if tick > 0 {
				cfg.Session.TickInterval = tick
			}

			waypoints := make([]r3.Vec, len(cfg.Targets))
			for i, t := range cfg.Targets {
				waypoints[i] = r3.Vec{X: t.Position[0], Y: t.Position[1], Z: t.Position[2]}
			}
			walker := sensor.NewWalker(r3.Vec{Y: 2}, r3.Vec{Y: -5, Z: 2}, waypoints, step,
				sensor.WithDropout(dropEvery))

			out := cmd.OutOrStdout()
			lastIndex := 0
			progress := session.PublisherFunc(func(st session.Status) {
				if st.Sequence.Index == lastIndex {
					return
				}
				lastIndex = st.Sequence.Index
				fmt.Fprintf(out, "🎯 target %d/%d reached after %d ticks (%s)\n",
					st.Sequence.Index, st.Sequence.Len, st.Ticks, st.Feedback)
			})

			app, err := guide.New(cfg, walker, guide.WithLogger(log.L()), guide.WithPublisher(progress))
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := app.Init(); err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer app.Shutdown()

			fmt.Fprintf(out, "🧪 simulating %d targets (audio %s, step %.2f)\n", len(cfg.Targets), cfg.Audio.Backend, step)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if err := app.Run(ctx); err != nil {
				return err
			}
			if !app.Sequencer().Complete() {
				return fmt.Errorf("simulation stopped at target %d/%d", app.Sequencer().Index(), app.Sequencer().Len())
			}
			printSummary(cmd, app)
			return nil
		},
	}

	cmd.Flags().StringVar(&audio, "audio", string(audioio.BackendMock), "Audio backend: none, mock, rtp")
	cmd.Flags().Float64Var(&step, "step", 0.25, "Hand movement per frame in world units")
	cmd.Flags().IntVar(&dropEvery, "dropout", 0, "Drop every n-th frame (0 disables)")
	cmd.Flags().DurationVar(&tick, "tick", 0, "Tick interval (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up after this long")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "Serve the dashboard while simulating")
	return cmd
}
