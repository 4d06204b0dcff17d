// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Library  LibraryConfig  `yaml:"library"`
	Playback PlaybackConfig `yaml:"playback"`
	Log      LogConfig      `yaml:"log"`
	Messages MessagesConfig `yaml:"messages"`
}

// LibraryConfig represents the local music library configuration.
type LibraryConfig struct {
	Sources []SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
	Limit   int            `yaml:"limit" default:"500" validate:"gte=0"`
}

// SourceConfig represents a single library source directory.
type SourceConfig struct {
	Path     string         `yaml:"path" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	StatusIntervalMs int `yaml:"status_interval_ms" default:"200" validate:"gte=50,lte=2000"`
	SpeakerBufferMs  int `yaml:"speaker_buffer_ms" default:"100" validate:"gte=10,lte=1000"`
}

// StatusInterval returns the status delivery cadence as a duration.
func (p PlaybackConfig) StatusInterval() time.Duration {
	return time.Duration(p.StatusIntervalMs) * time.Millisecond
}

// SpeakerBuffer returns the speaker buffer length as a duration.
func (p PlaybackConfig) SpeakerBuffer() time.Duration {
	return time.Duration(p.SpeakerBufferMs) * time.Millisecond
}

// LogConfig represents logger configuration. The TUI owns stdout, so the
// default sink is stderr.
type LogConfig struct {
	Output string `yaml:"output" default:"stderr"` // "stderr", "stdout" or a file path
	Level  string `yaml:"level" default:"info"`    // "debug", "info", "warn", "error"
}

// MessagesConfig represents user-facing messages, keyed by error taxonomy.
type MessagesConfig struct {
	PermissionDenied   string `yaml:"permission_denied" default:"Access to the music library was denied."`
	EnumerationFailure string `yaml:"enumeration_failure" default:"The music library could not be read."`
	LoadFailure        string `yaml:"load_failure" default:"This track could not be played."`
	CommandFailure     string `yaml:"command_failure" default:"The player did not respond; try again."`
	DefaultError       string `yaml:"default_error" default:"Something went wrong."`
	NoTracks           string `yaml:"no_tracks" default:"No playable tracks were found."`
}

// Load loads configuration from a YAML file. An empty path starts from an
// empty config so environment variables and defaults alone can be enough.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SOLOBOX_LIBRARY"); v != "" {
		if len(c.Library.Sources) == 0 {
			c.Library.Sources = []SourceConfig{{Path: v}}
		} else {
			c.Library.Sources[0].Path = v
		}
	}
	if v := os.Getenv("SOLOBOX_LOG_OUTPUT"); v != "" {
		c.Log.Output = v
	}
	if v := os.Getenv("SOLOBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// GetMessage returns the user-facing message for the given taxonomy code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "permission_denied":
		return c.Messages.PermissionDenied
	case "enumeration_failure":
		return c.Messages.EnumerationFailure
	case "load_failure":
		return c.Messages.LoadFailure
	case "command_failure":
		return c.Messages.CommandFailure
	case "no_tracks":
		return c.Messages.NoTracks
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
