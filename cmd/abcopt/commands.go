package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/GriffinCanCode/abcopt/pkg/asm"
	"github.com/GriffinCanCode/abcopt/pkg/config"
	"github.com/GriffinCanCode/abcopt/pkg/diagnostics"
	"github.com/GriffinCanCode/abcopt/pkg/logger"
	"github.com/GriffinCanCode/abcopt/pkg/method"
	"github.com/GriffinCanCode/abcopt/pkg/optimizer"
)

var (
	levelFlag = &cli.IntFlag{
		Name:    "level",
		Aliases: []string{"O"},
		Usage:   "Optimization level (0-3)",
		Value:   2,
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Methods optimized in parallel (0 uses every CPU)",
	}
	stripDebugFlag = &cli.BoolFlag{
		Name:  "strip-debug",
		Usage: "Remove debug, debugline and debugfile instructions",
	}
	noDCEFlag = &cli.BoolFlag{
		Name:  "no-dce",
		Usage: "Skip unreachable block elimination",
	}
	noPeepholeFlag = &cli.BoolFlag{
		Name:  "no-peephole",
		Usage: "Skip the peephole rewriter",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the optimized program to this YAML file instead of printing it",
	}
	statsFlag = &cli.BoolFlag{
		Name:  "stats",
		Usage: "Print per-method statistics",
	}
	existingSourcesFlag = &cli.BoolFlag{
		Name:  "existing-sources",
		Usage: "Only report unreachable code whose source file exists",
	}
)

var (
	optimizeCommand = &cli.Command{
		Action:    optimizeProgram,
		Name:      "optimize",
		Usage:     "Optimize the method bodies of a program",
		ArgsUsage: "<program.yaml>",
		Flags: []cli.Flag{
			levelFlag,
			workersFlag,
			stripDebugFlag,
			noDCEFlag,
			noPeepholeFlag,
			outputFlag,
			statsFlag,
		},
		Description: `
The optimize command validates every method body, removes unreachable
blocks and rewrites instruction patterns. The result is printed as
assembly, or written as YAML with -o.`,
	}
	checkCommand = &cli.Command{
		Action:    checkProgram,
		Name:      "check",
		Usage:     "Validate a program and report unreachable code",
		ArgsUsage: "<program.yaml>",
		Flags: []cli.Flag{
			existingSourcesFlag,
		},
		Description: `
The check command validates every method body and reports unreachable
blocks without writing any output. It fails if a method body is invalid.`,
	}
	versionCommand = &cli.Command{
		Action: func(ctx *cli.Context) error {
			fmt.Fprintf(ctx.App.Writer, "abcopt version %s\n", version)
			return nil
		},
		Name:  "version",
		Usage: "Print the version",
	}
)

func loadProgram(ctx *cli.Context) (*method.Program, error) {
	if ctx.NArg() != 1 {
		return nil, errors.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	path := ctx.Args().First()
	logger.LogFileProcessing(path)
	return asm.Load(path)
}

// optimizerOptions applies command flags over the configured settings
func optimizerOptions(ctx *cli.Context, cfg *config.Config) (optimizer.Options, error) {
	c := *cfg
	if ctx.IsSet(levelFlag.Name) {
		c.Optimizer.Level = ctx.Int(levelFlag.Name)
	}
	if ctx.IsSet(workersFlag.Name) {
		c.Optimizer.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.Bool(stripDebugFlag.Name) {
		c.Optimizer.StripDebug = true
	}
	if ctx.Bool(noDCEFlag.Name) {
		c.Optimizer.RemoveDeadCode = false
	}
	if ctx.Bool(noPeepholeFlag.Name) {
		c.Optimizer.Peephole = false
	}
	if err := c.Validate(); err != nil {
		return optimizer.Options{}, err
	}
	return c.OptimizerOptions(), nil
}

func optimizeProgram(ctx *cli.Context) error {
	start := time.Now()
	prog, err := loadProgram(ctx)
	if err != nil {
		return err
	}
	opts, err := optimizerOptions(ctx, configFrom(ctx))
	if err != nil {
		return err
	}

	collector := diagnostics.NewCollector()
	sink := diagnostics.Tee(collector, diagnostics.LogSink{})

	report, err := optimizer.OptimizeProgram(context.Background(), prog, opts, sink)
	if report == nil {
		logger.LogRunComplete(false, time.Since(start).String())
		return err
	}
	printDiagnostics(ctx.App.ErrWriter, collector.Diagnostics())

	if ctx.Bool(statsFlag.Name) {
		printStats(ctx.App.Writer, report)
	}

	if out := ctx.String(outputFlag.Name); out != "" {
		if saveErr := asm.Save(out, prog); saveErr != nil {
			return saveErr
		}
	} else {
		printProgram(ctx.App.Writer, prog)
	}

	logger.LogRunComplete(err == nil, time.Since(start).String())
	return err
}

func checkProgram(ctx *cli.Context) error {
	start := time.Now()
	prog, err := loadProgram(ctx)
	if err != nil {
		return err
	}

	collector := diagnostics.NewCollector()
	var sink diagnostics.Sink = collector
	if ctx.Bool(existingSourcesFlag.Name) {
		// validation failures carry no source, keep them regardless
		sink = diagnostics.Tee(
			diagnostics.Filter(collector, diagnostics.OfKind(diagnostics.InvalidMethodBody)),
			diagnostics.Filter(collector,
				diagnostics.OfKind(diagnostics.UnreachableBlock, diagnostics.DeadHandler),
				diagnostics.SourceExists()),
		)
	}

	invalid := 0
	for _, mb := range prog.Methods {
		if err := mb.Validate(); err != nil {
			invalid++
			sink.Report(diagnostics.Diagnostic{
				Kind:    diagnostics.InvalidMethodBody,
				Method:  mb.Name,
				Block:   -1,
				Line:    -1,
				Message: err.Error(),
			})
			continue
		}
		optimizer.EliminateUnreachableBlocks(mb, sink)
	}

	found := collector.Diagnostics()
	printDiagnostics(ctx.App.Writer, found)
	fmt.Fprintf(ctx.App.Writer, "%d methods, %d findings\n", len(prog.Methods), len(found))

	logger.LogRunComplete(invalid == 0, time.Since(start).String())
	if invalid > 0 {
		return errors.Errorf("%d of %d methods are invalid", invalid, len(prog.Methods))
	}
	return nil
}
