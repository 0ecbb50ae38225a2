// ABOUTME: Tests for configuration loading
// ABOUTME: Tests defaults, YAML and environment overrides, and validation
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Sendspin/varispeed-go/pkg/audio/stretch"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to be valid: %v", err)
	}
}

func TestDefaultFileMatchesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(DefaultFile)); err != nil {
		t.Fatalf("default file does not parse: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected %+v, got %+v", DefaultConfig(), cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	yaml := `
speed: 1.5
pitch: 0.8
volume: 40
engine:
  min_pitch_hz: 80
output:
  buffer: "100ms"
raw:
  sample_rate: 48000
  bit_depth: 24
`
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if cfg.Speed != 1.5 || cfg.Pitch != 0.8 || cfg.Rate != 1 {
		t.Errorf("unexpected ratios %v %v %v", cfg.Speed, cfg.Pitch, cfg.Rate)
	}
	if cfg.Volume != 40 {
		t.Errorf("expected volume 40, got %d", cfg.Volume)
	}
	if cfg.MinPitchHz != 80 || cfg.MaxPitchHz != 400 {
		t.Errorf("unexpected pitch range %d-%d", cfg.MinPitchHz, cfg.MaxPitchHz)
	}
	if cfg.OutputBuffer != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %s", cfg.OutputBuffer)
	}
	if cfg.RawSampleRate != 48000 || cfg.RawChannels != 2 || cfg.RawBitDepth != 24 {
		t.Errorf("unexpected raw format %d %d %d", cfg.RawSampleRate, cfg.RawChannels, cfg.RawBitDepth)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"speed too high", "speed", 25.0},
		{"pitch zero", "pitch", 0.0},
		{"volume", "volume", 101},
		{"step", "speed_step", 0.0},
		{"pitch range", "engine.max_pitch_hz", 10},
		{"budget", "render.frame_budget", 0},
		{"raw depth", "raw.bit_depth", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			if _, err := Load(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.val)
			}
		})
	}
}

func TestValidateRejectsCombinedFactors(t *testing.T) {
	tests := []struct {
		name               string
		speed, pitch, rate float64
		valid              bool
	}{
		{"pitch at ceiling", 1, 20, 1, true},
		{"pitch at floor", 1, 0.05, 1, true},
		{"slow speed high pitch", 0.05, 20, 1, false},
		{"fast speed low pitch", 20, 0.05, 1, false},
		{"fast rate high pitch", 1, 2, 15, false},
		{"matched speed and pitch", 20, 20, 0.05, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Speed, cfg.Pitch, cfg.Rate = tt.speed, tt.pitch, tt.rate
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, stretch.ErrInvalidRatio) {
				t.Errorf("expected ErrInvalidRatio, got %v", err)
			}
		})
	}
}

func TestInitCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	v := viper.New()

	path, err := Init(v, Env{ConfigHome: dir}, "")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if path != filepath.Join(dir, "varispeed.yml") {
		t.Errorf("unexpected config path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected default file: %v", err)
	}
	if string(data) != DefaultFile {
		t.Error("default file content differs")
	}

	// A second run finds the file
	v = viper.New()
	path2, err := Init(v, Env{ConfigHome: dir}, "")
	if err != nil || path2 != path {
		t.Errorf("expected %s, got %s (%v)", path, path2, err)
	}
	if v.ConfigFileUsed() != path {
		t.Errorf("expected config file used %s, got %s", path, v.ConfigFileUsed())
	}
}

func TestInitExplicitFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("speed: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VARISPEED_PITCH", "1.25")
	t.Setenv("VARISPEED_ENGINE_MAX_PITCH_HZ", "500")

	v := viper.New()
	if _, err := Init(v, Env{}, path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Speed != 2 || cfg.Pitch != 1.25 || cfg.MaxPitchHz != 500 {
		t.Errorf("expected file and env values, got %+v", cfg)
	}

	if _, err := Init(viper.New(), Env{}, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestEnsureFileRejectsExtension(t *testing.T) {
	if err := EnsureFile(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Error("expected error for .json config")
	}
}

func TestDirsOrder(t *testing.T) {
	dirs, err := Dirs(Env{ConfigHome: "/a", XDGConfig: "/b"})
	if err != nil {
		t.Fatalf("dirs failed: %v", err)
	}
	if len(dirs) < 2 || dirs[0] != "/a" || dirs[1] != filepath.Join("/b", "varispeed") {
		t.Errorf("unexpected order %v", dirs)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("VARISPEED_LOG_FILE", "/tmp/varispeed.log")
	t.Setenv("VARISPEED_DEBUG", "true")

	e, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if e.LogFile != "/tmp/varispeed.log" || !e.Debug {
		t.Errorf("unexpected env %+v", e)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.yml")
	if err := os.WriteFile(path, []byte("speed: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if _, err := Init(v, Env{}, path); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	got := make(chan Config, 4)
	Watch(v, func(c Config) { got <- c })

	if err := os.WriteFile(path, []byte("speed: 1.75\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Speed == 1.75 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
