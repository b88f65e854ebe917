// Package config loads optimizer settings from TOML files
package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"runtime"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/GriffinCanCode/abcopt/pkg/logger"
	"github.com/GriffinCanCode/abcopt/pkg/optimizer"
)

// MaxLevel is the highest optimization level
const MaxLevel = 3

// Keys in the file are the Go field names; unknown keys are errors
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type Config struct {
	Optimizer OptimizerConfig
	Log       LogConfig
}

type OptimizerConfig struct {
	Level          int
	RemoveDeadCode bool
	Peephole       bool
	StripDebug     bool
	Workers        int
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	AddSource  bool
}

// Default returns the settings used when no file is given
func Default() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			Level:          2,
			RemoveDeadCode: true,
			Peephole:       true,
			Workers:        runtime.NumCPU(),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, cfg.Validate()
}

// Validate checks every setting is in range
func (c *Config) Validate() error {
	if c.Optimizer.Level < 0 || c.Optimizer.Level > MaxLevel {
		return errors.Errorf("optimizer level %d is outside 0-%d", c.Optimizer.Level, MaxLevel)
	}
	if c.Optimizer.Workers < 0 {
		return errors.Errorf("worker count %d is negative", c.Optimizer.Workers)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation settings must not be negative")
	}
	return nil
}

// LoggerConfig converts the [Log] section for logger.Init
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level, _ = logger.ParseLevel(c.Log.Level)
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	lc.LogFile = c.Log.File
	lc.AddSource = c.Log.AddSource
	lc.MaxSizeMB = c.Log.MaxSizeMB
	lc.MaxBackups = c.Log.MaxBackups
	lc.MaxAgeDays = c.Log.MaxAgeDays
	lc.Compress = c.Log.Compress
	return lc
}

// OptimizerOptions converts the [Optimizer] section
func (c *Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{
		Level:          c.Optimizer.Level,
		RemoveDeadCode: c.Optimizer.RemoveDeadCode,
		Peephole:       c.Optimizer.Peephole,
		StripDebug:     c.Optimizer.StripDebug,
		Workers:        c.Optimizer.Workers,
	}
}

// Dump renders the configuration as TOML
func (c *Config) Dump() ([]byte, error) {
	out, err := tomlSettings.Marshal(c)
	return out, errors.Wrap(err, "encode config")
}
