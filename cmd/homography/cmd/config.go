package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"homography-finder/internal/alignment"
	himage "homography-finder/internal/image"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name searched for when --config is not given.
	ConfigFileName = "homography-finder"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "HOMOGRAPHY"
)

// Config holds the settings shared by all subcommands.
type Config struct {
	LogLevel      string  `mapstructure:"log_level" yaml:"log_level"`
	Verbose       bool    `mapstructure:"verbose" yaml:"verbose"`
	Estimator     string  `mapstructure:"estimator" yaml:"estimator"`
	Warper        string  `mapstructure:"warper" yaml:"warper"`
	Threshold     float64 `mapstructure:"threshold" yaml:"threshold"`
	MaxIterations int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	Confidence    float64 `mapstructure:"confidence" yaml:"confidence"`
	Seed          int64   `mapstructure:"seed" yaml:"seed"`
}

// Validate checks that every named backend exists and the RANSAC settings are usable.
func (c *Config) Validate() error {
	if _, err := alignment.Lookup(c.Estimator); err != nil {
		return err
	}
	if _, err := himage.LookupWarper(c.Warper); err != nil {
		return err
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %g", c.Threshold)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("confidence must be in (0, 1), got %g", c.Confidence)
	}
	return nil
}

// Options converts the RANSAC settings for the estimator.
func (c *Config) Options() alignment.Options {
	return alignment.Options{
		Threshold:     c.Threshold,
		MaxIterations: c.MaxIterations,
		Confidence:    c.Confidence,
		Seed:          c.Seed,
	}
}

// Level maps log_level to a slog level. Verbose wins.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Loader reads Config from flags, environment, an optional YAML file and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader wraps the viper instance the command flags are bound to.
func NewLoader(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads configFile, or searches the default locations when it is empty.
// A missing file in the default locations is not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "homography-finder"))
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	opts := alignment.DefaultOptions()
	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("verbose", false)
	l.v.SetDefault("estimator", alignment.DefaultEstimator)
	l.v.SetDefault("warper", himage.DefaultWarper)
	l.v.SetDefault("threshold", opts.Threshold)
	l.v.SetDefault("max_iterations", opts.MaxIterations)
	l.v.SetDefault("confidence", opts.Confidence)
	l.v.SetDefault("seed", opts.Seed)
}
