// ABOUTME: Player configuration loaded from YAML, environment and flags
// ABOUTME: Resolves config locations and watches the file for live changes
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/Sendspin/varispeed-go/pkg/audio/stretch"
)

// Name is used for the config directory, file and environment prefix
const Name = "varispeed"

// DefaultFile is written when no config file exists yet
const DefaultFile = `# playback speed, tempo only (0.05 to 20)
speed: 1.0
# pitch factor, tempo unchanged (0.05 to 20)
pitch: 1.0
# rate changes tempo and pitch together (0.05 to 20)
rate: 1.0
# output volume (0 to 100)
volume: 100
# speed change per key press in the player
speed_step: 0.1

engine:
  # pitch range searched when changing speed
  min_pitch_hz: 65
  max_pitch_hz: 400

render:
  # decoder buffer size in frames
  frame_budget: 4096
  # output region size in frame budgets
  output_headroom: 4

output:
  # audio queued ahead of the device
  buffer: "250ms"

# format assumed for headerless .pcm and .raw files
raw:
  sample_rate: 44100
  channels: 2
  bit_depth: 16
`

// Config holds player settings
type Config struct {
	Speed     float64
	Pitch     float64
	Rate      float64
	Volume    int
	SpeedStep float64

	MinPitchHz int
	MaxPitchHz int

	FrameBudget    int
	OutputHeadroom int
	OutputBuffer   time.Duration

	RawSampleRate int
	RawChannels   int
	RawBitDepth   int
}

// Env holds settings read only from the environment
type Env struct {
	LogFile    string `env:"VARISPEED_LOG_FILE"`
	Debug      bool   `env:"VARISPEED_DEBUG"`
	ConfigHome string `env:"VARISPEED_CONFIG_HOME"`
	XDGConfig  string `env:"XDG_CONFIG_HOME"`
}

// ParseEnv reads Env from the process environment
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Speed:          1,
		Pitch:          1,
		Rate:           1,
		Volume:         100,
		SpeedStep:      0.1,
		MinPitchHz:     stretch.DefaultMinPitchHz,
		MaxPitchHz:     stretch.DefaultMaxPitchHz,
		FrameBudget:    4096,
		OutputHeadroom: 4,
		OutputBuffer:   250 * time.Millisecond,
		RawSampleRate:  44100,
		RawChannels:    2,
		RawBitDepth:    16,
	}
}

// Validate checks that every setting is usable
func (c Config) Validate() error {
	var errs []error
	if err := stretch.ValidateParameters(c.Speed, c.Pitch, c.Rate); err != nil {
		errs = append(errs, err)
	}
	if c.Volume < 0 || c.Volume > 100 {
		errs = append(errs, fmt.Errorf("volume must be between 0 and 100, got %d", c.Volume))
	}
	if c.SpeedStep <= 0 || c.SpeedStep > 1 {
		errs = append(errs, fmt.Errorf("speed_step must be in (0, 1], got %v", c.SpeedStep))
	}
	if c.MinPitchHz <= 0 || c.MaxPitchHz < c.MinPitchHz {
		errs = append(errs, fmt.Errorf("invalid pitch range %d-%dHz", c.MinPitchHz, c.MaxPitchHz))
	}
	if c.FrameBudget <= 0 || c.OutputHeadroom <= 0 {
		errs = append(errs, fmt.Errorf("frame_budget and output_headroom must be positive"))
	}
	if c.OutputBuffer <= 0 {
		errs = append(errs, fmt.Errorf("output buffer must be positive, got %s", c.OutputBuffer))
	}
	if c.RawSampleRate <= 0 || c.RawChannels <= 0 || (c.RawBitDepth != 16 && c.RawBitDepth != 24) {
		errs = append(errs, fmt.Errorf("invalid raw format %dHz %dch %dbit", c.RawSampleRate, c.RawChannels, c.RawBitDepth))
	}
	return errors.Join(errs...)
}

// Load reads settings from v on top of the defaults
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("speed") {
		cfg.Speed = v.GetFloat64("speed")
	}
	if v.IsSet("pitch") {
		cfg.Pitch = v.GetFloat64("pitch")
	}
	if v.IsSet("rate") {
		cfg.Rate = v.GetFloat64("rate")
	}
	if v.IsSet("volume") {
		cfg.Volume = v.GetInt("volume")
	}
	if v.IsSet("speed_step") {
		cfg.SpeedStep = v.GetFloat64("speed_step")
	}

	if v.IsSet("engine.min_pitch_hz") {
		cfg.MinPitchHz = v.GetInt("engine.min_pitch_hz")
	}
	if v.IsSet("engine.max_pitch_hz") {
		cfg.MaxPitchHz = v.GetInt("engine.max_pitch_hz")
	}

	if v.IsSet("render.frame_budget") {
		cfg.FrameBudget = v.GetInt("render.frame_budget")
	}
	if v.IsSet("render.output_headroom") {
		cfg.OutputHeadroom = v.GetInt("render.output_headroom")
	}
	if v.IsSet("output.buffer") {
		cfg.OutputBuffer = v.GetDuration("output.buffer")
	}

	if v.IsSet("raw.sample_rate") {
		cfg.RawSampleRate = v.GetInt("raw.sample_rate")
	}
	if v.IsSet("raw.channels") {
		cfg.RawChannels = v.GetInt("raw.channels")
	}
	if v.IsSet("raw.bit_depth") {
		cfg.RawBitDepth = v.GetInt("raw.bit_depth")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Dirs returns the directories searched for the config file, most
// specific first
func Dirs(e Env) ([]string, error) {
	scope := gap.NewScope(gap.User, Name)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}
	if e.XDGConfig != "" {
		dirs = append([]string{filepath.Join(e.XDGConfig, Name)}, dirs...)
	}
	if e.ConfigHome != "" {
		dirs = append([]string{e.ConfigHome}, dirs...)
	}
	return dirs, nil
}

// Init points v at the config file and environment and reads the file.
// When configFile is empty the default locations are searched, and a
// default file is created in the first of them if none exists. Returns
// the config file path.
func Init(v *viper.Viper, e Env, configFile string) (string, error) {
	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return configFile, fmt.Errorf("could not read configuration file: %w", err)
		}
		return configFile, nil
	}

	dirs, err := Dirs(e)
	if err != nil {
		return "", err
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(Name)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return used, nil
	}

	configFile = filepath.Join(dirs[0], Name+".yml")
	if err := EnsureFile(configFile); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
	return configFile, nil
}

// EnsureFile writes DefaultFile to path unless the file already exists
func EnsureFile(path string) error {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(DefaultFile), 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

// Watch calls fn with the reloaded settings whenever the config file
// changes. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, fn func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			log.Warn("Ignoring configuration change", "file", e.Name, "err", err)
			return
		}
		log.Debug("Configuration reloaded", "file", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
}
