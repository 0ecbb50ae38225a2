// ABOUTME: Play subcommand
// ABOUTME: Plays a file through the audio device with live speed and pitch controls
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Sendspin/varispeed-go/internal/app"
	"github.com/Sendspin/varispeed-go/internal/config"
	"github.com/Sendspin/varispeed-go/internal/ui"
	"github.com/Sendspin/varispeed-go/pkg/audio/output"
)

var (
	noTUI bool

	playCmd = &cobra.Command{
		Use:   "play SOURCE",
		Short: "Play audio with live speed and pitch control",
		Long: paragraph(fmt.Sprintf("\n%s a WAV, MP3, FLAC or raw PCM file, optionally zstd compressed. "+
			"Use tone:HZ for a test tone. Edits to the config file apply while playing.", keyword("Play"))),
		Example: paragraph("varispeed play talk.mp3 --speed 1.5\nvarispeed play song.flac --pitch 0.89\nvarispeed play tone:440 --no-tui"),
		Args:    cobra.ExactArgs(1),
		RunE:    runPlay,
	}
)

func runPlay(cmd *cobra.Command, args []string) error {
	useTUI := !noTUI && term.IsTerminal(int(os.Stdout.Fd()))
	if !useTUI {
		log.SetOutput(io.MultiWriter(os.Stderr, logOutput))
	}

	src, err := openSource(args[0], settings)
	if err != nil {
		return err
	}

	out := output.NewOto(output.WithBufferDuration(settings.OutputBuffer))
	sess, err := app.NewSession(args[0], src, out, settings)
	if err != nil {
		_ = src.Close()
		_ = out.Close()
		return err
	}
	defer func() { _ = sess.Close() }()

	config.Watch(viper.GetViper(), sess.ApplyConfig)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !useTUI {
		log.Info("Playing", "source", args[0], "speed", settings.Speed, "pitch", settings.Pitch, "rate", settings.Rate)
		return sess.Run(ctx)
	}

	errc := make(chan error, 1)
	go func() { errc <- sess.Run(ctx) }()

	_, tuiErr := ui.Run(sess).Run()
	stop()
	runErr := <-errc
	if tuiErr != nil {
		return fmt.Errorf("TUI failed: %w", tuiErr)
	}
	return runErr
}

func init() {
	playCmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable the TUI and stream logs to stderr")
	playCmd.Flags().Int("volume", 100, "output volume (0 to 100)")
	_ = viper.BindPFlag("volume", playCmd.Flags().Lookup("volume"))
}
