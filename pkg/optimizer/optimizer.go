// Package optimizer - Method body optimizations
// Design: Dead code elimination on the flowgraph, then peephole rewriting
// of the linearized stream, composed as an explicit list of stages
package optimizer

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/GriffinCanCode/abcopt/pkg/diagnostics"
	"github.com/GriffinCanCode/abcopt/pkg/logger"
	"github.com/GriffinCanCode/abcopt/pkg/method"
)

// Options selects the optimizations to run
type Options struct {
	// Level 0 disables every stage; 1 runs dead code elimination and the
	// peephole pass; 2 and above also clean up after the peephole pass.
	Level          int
	RemoveDeadCode bool
	Peephole       bool
	StripDebug     bool
	Workers        int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Level:          2,
		RemoveDeadCode: true,
		Peephole:       true,
		Workers:        runtime.NumCPU(),
	}
}

// MethodStats describes what optimization did to one method
type MethodStats struct {
	Method      string
	Before      int
	After       int
	Elimination EliminationResult
	Rules       RuleCounts
	Stripped    int
}

// Stage is one step of the pipeline. Stages run in order on a single
// method body and record what they changed in stats.
type Stage struct {
	Name string
	Run  func(mb *method.MethodBody, sink diagnostics.Sink, stats *MethodStats)
}

var (
	stripDebugStage = Stage{
		Name: "strip-debug",
		Run: func(mb *method.MethodBody, _ diagnostics.Sink, stats *MethodStats) {
			il, n := StripDebugList(mb.Instructions)
			mb.SetInstructions(il)
			stats.Stripped += n
		},
	}

	deadCodeStage = Stage{
		Name: "dead-code",
		Run: func(mb *method.MethodBody, sink diagnostics.Sink, stats *MethodStats) {
			r := EliminateUnreachableBlocks(mb, sink)
			stats.Elimination.add(r)
			mb.Relinearize()
		},
	}

	// Second elimination after peephole: constant branches become jumps
	// and leave dead code behind. Diagnostics were already reported.
	cleanupStage = Stage{
		Name: "dead-code-cleanup",
		Run: func(mb *method.MethodBody, _ diagnostics.Sink, stats *MethodStats) {
			r := EliminateUnreachableBlocks(mb, diagnostics.Discard)
			r.Reported = 0
			stats.Elimination.add(r)
			mb.Relinearize()
		},
	}

	peepholeStage = Stage{
		Name: "peephole",
		Run: func(mb *method.MethodBody, _ diagnostics.Sink, stats *MethodStats) {
			il, counts := PeepholeList(mb.Instructions)
			mb.SetInstructions(il)
			stats.Rules.merge(counts)
		},
	}
)

// Stages returns the pipeline for opts, in execution order
func Stages(opts Options) []Stage {
	var stages []Stage
	if opts.StripDebug {
		stages = append(stages, stripDebugStage)
	}
	if opts.Level <= 0 {
		return stages
	}

	if opts.RemoveDeadCode {
		stages = append(stages, deadCodeStage)
	}
	if opts.Peephole {
		stages = append(stages, peepholeStage)
		if opts.RemoveDeadCode && opts.Level >= 2 {
			stages = append(stages, cleanupStage)
		}
	}
	return stages
}

// OptimizeMethod validates mb and runs the stages selected by opts on it
func OptimizeMethod(mb *method.MethodBody, opts Options, sink diagnostics.Sink) (MethodStats, error) {
	if sink == nil {
		sink = diagnostics.Discard
	}
	stats := MethodStats{
		Method: mb.Name,
		Before: mb.Instructions.Len(),
		Rules:  make(RuleCounts),
	}

	if err := mb.Validate(); err != nil {
		sink.Report(diagnostics.Diagnostic{
			Kind:    diagnostics.InvalidMethodBody,
			Method:  mb.Name,
			Block:   -1,
			Line:    -1,
			Message: err.Error(),
		})
		return stats, errors.Wrapf(err, "method %s", mb.Name)
	}

	for _, stage := range Stages(opts) {
		logger.Debug("Running stage", "method", mb.Name, "stage", stage.Name)
		stage.Run(mb, sink, &stats)
	}

	stats.After = mb.Instructions.Len()
	logger.LogMethod(mb.Name, stats.Before, stats.After)
	return stats, nil
}

// Report aggregates the results of OptimizeProgram
type Report struct {
	Methods  []MethodStats
	Failed   map[string]error
	Duration time.Duration
}

// Before returns the instruction count before optimization
func (r *Report) Before() int {
	n := 0
	for _, m := range r.Methods {
		n += m.Before
	}
	return n
}

// After returns the instruction count after optimization
func (r *Report) After() int {
	n := 0
	for _, m := range r.Methods {
		n += m.After
	}
	return n
}

// Rules returns rewrite counts summed over every method
func (r *Report) Rules() RuleCounts {
	out := make(RuleCounts)
	for _, m := range r.Methods {
		out.merge(m.Rules)
	}
	return out
}

// Elimination returns elimination results summed over every method
func (r *Report) Elimination() EliminationResult {
	var out EliminationResult
	for _, m := range r.Methods {
		out.add(m.Elimination)
	}
	return out
}

// OptimizeProgram optimizes every method of prog. Method bodies are
// independent, so they run concurrently on a worker pool; each body is
// still processed by a single goroutine. sink must be safe for
// concurrent use. Cancelling ctx stops new methods from starting.
func OptimizeProgram(ctx context.Context, prog *method.Program, opts Options, sink diagnostics.Sink) (*Report, error) {
	start := time.Now()
	logger.LogPhase("optimize")
	logger.Debug("Running optimization passes", "level", opts.Level, "methods", len(prog.Methods))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	results := make([]MethodStats, len(prog.Methods))
	failures := make([]error, len(prog.Methods))

	var wg sync.WaitGroup
	for i, mb := range prog.Methods {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, errors.Wrap(err, "optimization cancelled")
		}

		i, mb := i, mb
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i], failures[i] = optimizeGuarded(mb, opts, sink)
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, errors.Wrapf(submitErr, "schedule method %s", mb.Name)
		}
	}
	wg.Wait()

	report := &Report{Failed: make(map[string]error)}
	for i, mb := range prog.Methods {
		if failures[i] != nil {
			report.Failed[mb.Name] = failures[i]
			continue
		}
		report.Methods = append(report.Methods, results[i])
	}
	report.Duration = time.Since(start)

	logger.LogOptimization("program", report.Before()-report.After())
	logger.LogPhaseComplete("optimize")

	if len(report.Failed) > 0 {
		return report, errors.Errorf("%d of %d methods failed to optimize", len(report.Failed), len(prog.Methods))
	}
	return report, nil
}

// optimizeGuarded turns an invariant panic inside one method into an
// error for that method; the worker pool would otherwise swallow it.
func optimizeGuarded(mb *method.MethodBody, opts Options, sink diagnostics.Sink) (stats MethodStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Optimizer invariant violated", "method", mb.Name, "panic", r)
			err = errors.Errorf("method %s: internal error: %v", mb.Name, r)
		}
	}()
	return OptimizeMethod(mb, opts, sink)
}
