// ABOUTME: Render subcommand
// ABOUTME: Processes a whole source offline into a WAV file
package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/Sendspin/varispeed-go/internal/app"
	"github.com/Sendspin/varispeed-go/internal/player"
	"github.com/Sendspin/varispeed-go/pkg/audio/encode"
	"github.com/Sendspin/varispeed-go/pkg/clock"
)

var (
	renderBitDepth int

	renderCmd = &cobra.Command{
		Use:   "render SOURCE OUTPUT",
		Short: "Render audio at a new speed and pitch to a WAV file",
		Long: paragraph(fmt.Sprintf("\n%s SOURCE as fast as possible. "+
			"An OUTPUT ending in .zst is zstd compressed.", keyword("Render"))),
		Example: paragraph("varispeed render lecture.mp3 lecture-fast.wav --speed 1.75\nvarispeed render tone:440 fifth.wav.zst --pitch 1.5"),
		Args:    cobra.ExactArgs(2),
		RunE:    runRender,
	}
)

func runRender(cmd *cobra.Command, args []string) error {
	src, err := openSource(args[0], settings)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	outPath, err := homedir.Expand(args[1])
	if err != nil {
		return fmt.Errorf("unable to expand path: %w", err)
	}

	format := src.Format()
	format.BitDepth = renderBitDepth
	w, err := encode.Create(outPath, format)
	if err != nil {
		return err
	}

	logger := log.Default().WithPrefix("render")
	clk := clock.New(clock.WithLogger(logger))
	stage := app.NewStage(w, clk, settings, logger)
	r, err := player.NewRenderer(src, stage, clk, player.WithLogger(logger))
	if err != nil {
		_ = w.Close()
		return err
	}

	start := time.Now()
	runErr := r.Run(cmd.Context())
	closeErr := w.Close()
	if runErr != nil {
		return fmt.Errorf("render failed: %w", runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finish %s: %w", outPath, closeErr)
	}

	length := time.Duration(format.DurationUs(w.Frames())) * time.Microsecond
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %s, %s of audio in %s\n",
		outPath,
		humanize.Bytes(uint64(w.Bytes())),
		length.Round(time.Millisecond),
		time.Since(start).Round(time.Millisecond),
	)
	logger.Info("Rendered", "output", outPath, "frames", w.Frames(), "stats", stage.Stats())
	return nil
}

func init() {
	renderCmd.Flags().IntVar(&renderBitDepth, "bit-depth", 16, "output bit depth (16 or 24)")
}
