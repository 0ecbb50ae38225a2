// ABOUTME: Diagnostic tool for the playback clock
// ABOUTME: Runs the clock through speed changes and reports drift from the expected position
package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Sendspin/varispeed-go/pkg/clock"
)

var (
	speeds   []float64
	interval time.Duration
	samples  int

	rootCmd = &cobra.Command{
		Use:          "clock-check",
		Short:        "Measure playback clock drift across speed changes",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	clk := clock.New(clock.WithLogger(log.Default().WithPrefix("clock")))
	clk.Start()
	defer clk.Stop()

	var expectedUs float64
	var worst float64
	last := time.Now()

	for _, speed := range speeds {
		clk.SetPlaybackSpeed(speed)
		if got := clk.PlaybackSpeed(); got != speed {
			log.Warn("Speed rejected", "requested", speed, "active", got)
		}

		for range samples {
			time.Sleep(interval)
			now := time.Now()
			expectedUs += float64(now.Sub(last).Microseconds()) * clk.PlaybackSpeed()
			last = now

			pos := clk.PositionUs()
			drift := float64(pos) - expectedUs
			worst = max(worst, math.Abs(drift))
			log.Debug("Sample", "speed", clk.PlaybackSpeed(), "position_us", pos, "drift_us", int64(drift))
		}
		log.Info("Speed segment done", "speed", speed, "position", time.Duration(clk.PositionUs())*time.Microsecond)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "position %s, worst drift %.0fus over %d speeds\n",
		(time.Duration(clk.PositionUs()) * time.Microsecond).Round(time.Millisecond), worst, len(speeds))
	return nil
}

func main() {
	log.SetReportTimestamp(true)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Float64SliceVar(&speeds, "speeds", []float64{1, 2, 0.5, 1.25}, "speeds to run in order")
	rootCmd.Flags().DurationVar(&interval, "interval", 50*time.Millisecond, "time between samples")
	rootCmd.Flags().IntVar(&samples, "samples", 20, "samples per speed")
}
