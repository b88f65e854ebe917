// Package main implements the abcopt binary.
//
// abcopt loads method bodies from YAML, removes unreachable code and runs
// the peephole rewriter over them.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/tebeka/atexit"
	"github.com/urfave/cli/v2"

	"github.com/GriffinCanCode/abcopt/pkg/config"
	"github.com/GriffinCanCode/abcopt/pkg/logger"
)

const version = "0.1.0"

const configKey = "config"

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error)",
	}
	logFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format (text, json)",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs to a rotating file instead of stderr",
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "abcopt",
		Usage:   "ActionScript bytecode optimizer",
		Version: version,
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
			logFormatFlag,
			logFileFlag,
		},
		Commands: []*cli.Command{
			optimizeCommand,
			checkCommand,
			versionCommand,
		},
		Before: setup,
		After: func(*cli.Context) error {
			return logger.Close()
		},
		Metadata: map[string]interface{}{},
	}
}

// setup loads the configuration and starts logging before any command
func setup(ctx *cli.Context) error {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if ctx.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(logFormatFlag.Name) {
		cfg.Log.Format = ctx.String(logFormatFlag.Name)
	}
	if ctx.IsSet(logFileFlag.Name) {
		cfg.Log.File = ctx.String(logFileFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return errors.Wrap(err, "start logging")
	}
	atexit.Register(func() { _ = logger.Close() })

	ctx.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(ctx *cli.Context) *config.Config {
	if cfg, ok := ctx.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}
