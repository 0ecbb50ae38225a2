// ABOUTME: Resolves command arguments to audio sources
// ABOUTME: Accepts files, compressed files and generated test tones
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/Sendspin/varispeed-go/internal/config"
	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/audio/decode"
)

const (
	tonePrefix     = "tone:"
	toneDurationUs = 10_000_000
)

// rawFormat is assumed for headerless PCM and used for generated tones
func rawFormat(cfg config.Config) audio.Format {
	return audio.Format{
		Codec:      "pcm",
		SampleRate: cfg.RawSampleRate,
		Channels:   cfg.RawChannels,
		BitDepth:   cfg.RawBitDepth,
	}
}

// openSource opens arg as a file, or as a sine tone when written as
// "tone:HZ"
func openSource(arg string, cfg config.Config) (decode.Source, error) {
	if hz, ok := strings.CutPrefix(arg, tonePrefix); ok {
		freq, err := strconv.ParseFloat(hz, 64)
		if err != nil || freq <= 0 {
			return nil, fmt.Errorf("invalid tone frequency %q", hz)
		}
		return decode.NewToneSource(rawFormat(cfg), freq, toneDurationUs), nil
	}

	path, err := homedir.Expand(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path: %w", err)
	}
	return decode.Open(path,
		decode.WithBufferFrames(cfg.FrameBudget),
		decode.WithRawFormat(rawFormat(cfg)),
	)
}
