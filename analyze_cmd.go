// ABOUTME: Analyze subcommand
// ABOUTME: Measures level and dominant frequency before and after processing
package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Sendspin/varispeed-go/internal/analysis"
	"github.com/Sendspin/varispeed-go/internal/app"
	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/clock"
)

var (
	analyzeLength time.Duration

	analyzeCmd = &cobra.Command{
		Use:   "analyze SOURCE",
		Short: "Compare the source with its processed version",
		Long: paragraph(fmt.Sprintf("\n%s the start of SOURCE, then the same audio after speed, "+
			"pitch and rate are applied.", keyword("Measure"))),
		Example: paragraph("varispeed analyze tone:440 --pitch 2\nvarispeed analyze song.flac --speed 0.5 --length 5s"),
		Args:    cobra.ExactArgs(1),
		RunE:    runAnalyze,
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Width(12)
	cellStyle   = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	src, err := openSource(args[0], settings)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	format := src.Format()
	maxFrames := int(analyzeLength.Seconds() * float64(format.SampleRate))
	pcm, err := analysis.ReadAll(src, maxFrames)
	if err != nil {
		return err
	}

	before, err := analysis.Analyze(pcm, format)
	if err != nil {
		return err
	}
	processed, err := process(pcm, format)
	if err != nil {
		return err
	}
	after, err := analysis.Analyze(processed, format)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), formatReports(before, after))
	return nil
}

// process runs pcm through a render stage configured from settings
func process(pcm []int16, format audio.Format) ([]int16, error) {
	logger := log.Default().WithPrefix("analyze")
	var capture analysis.Capture
	stage := app.NewStage(&capture, clock.New(clock.WithLogger(logger)), settings, logger)
	if err := stage.OnOutputFormatChanged(format); err != nil {
		return nil, err
	}

	budget := settings.FrameBudget * format.Channels
	index := 0
	for off := 0; off < len(pcm); off += budget {
		chunk := pcm[off:min(off+budget, len(pcm))]
		buf := audio.DecodedBuffer{
			Index:              index,
			Data:               make([]byte, len(chunk)*2),
			PresentationTimeUs: format.DurationUs(int64(off / format.Channels)),
		}
		audio.PutInt16s(buf.Data, chunk)
		if _, err := stage.ProcessOutputBuffer(buf); err != nil {
			return nil, err
		}
		index++
	}

	eos := audio.DecodedBuffer{
		Index:              index,
		PresentationTimeUs: format.DurationUs(int64(len(pcm) / format.Channels)),
		Flags:              audio.FlagEndOfStream,
	}
	if _, err := stage.ProcessOutputBuffer(eos); err != nil {
		return nil, err
	}
	return capture.Samples(), nil
}

func formatReports(before, after analysis.Report) string {
	row := func(label string, a, b string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, headerStyle.Render(label), cellStyle.Render(a), cellStyle.Render(b))
	}
	duration := func(us int64) string {
		return (time.Duration(us) * time.Microsecond).Round(time.Millisecond).String()
	}
	hz := func(v float64) string {
		if v == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1fHz", v)
	}
	level := func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		row("", "source", "processed"),
		row("Frames", fmt.Sprint(before.Frames), fmt.Sprint(after.Frames)),
		row("Duration", duration(before.DurationUs), duration(after.DurationUs)),
		row("Peak", level(before.Peak), level(after.Peak)),
		row("RMS", level(before.RMS), level(after.RMS)),
		row("Dominant", hz(before.DominantHz), hz(after.DominantHz)),
	)
}

func init() {
	analyzeCmd.Flags().DurationVar(&analyzeLength, "length", 10*time.Second, "amount of audio to analyze, 0 for all")
}

