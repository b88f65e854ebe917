package optimizer

import (
	"fmt"

	"github.com/GriffinCanCode/abcopt/pkg/diagnostics"
	"github.com/GriffinCanCode/abcopt/pkg/flowgraph"
	"github.com/GriffinCanCode/abcopt/pkg/logger"
	"github.com/GriffinCanCode/abcopt/pkg/method"
)

// EliminationResult summarizes one run of EliminateUnreachableBlocks
type EliminationResult struct {
	Removed      int
	Compacted    int
	Reported     int
	DeadHandlers int
}

// Changed reports whether the run modified the flowgraph
func (r EliminationResult) Changed() bool {
	return r.Removed > 0 || r.Compacted > 0
}

func (r *EliminationResult) add(o EliminationResult) {
	r.Removed += o.Removed
	r.Compacted += o.Compacted
	r.Reported += o.Reported
	r.DeadHandlers += o.DeadHandlers
}

// EliminateUnreachableBlocks removes blocks that cannot be reached from
// the method entry or a live handler. A block that ends an exception
// range whose protected blocks are partly live is compacted to a nop
// instead, so the range end stays addressable. One diagnostic is reported
// per run of consecutive unreachable blocks.
//
// Removing the last block of a range kills its handler, which can make
// the handler's own code unreachable; the scan repeats until no handler
// dies, so a second call finds nothing to do.
func EliminateUnreachableBlocks(mb *method.MethodBody, sink diagnostics.Sink) EliminationResult {
	if sink == nil {
		sink = diagnostics.Discard
	}
	g := mb.Graph()

	var total EliminationResult
	for {
		r := eliminationPass(mb, g, sink)
		total.add(r)
		if r.DeadHandlers == 0 {
			break
		}
	}

	if total.Changed() {
		logger.LogOptimization("dead-code", total.Removed+total.Compacted)
	}
	return total
}

func eliminationPass(mb *method.MethodBody, g *flowgraph.Graph, sink diagnostics.Sink) EliminationResult {
	var r EliminationResult
	lastReachable := true

	for i := 0; i < g.Len(); {
		b := g.BlockAt(i)
		reachable := g.IsReachable(b)
		if reachable {
			i++
			lastReachable = true
			continue
		}

		size := g.Len()
		if safeToRemove(g, b, i) {
			if b.HasRealCode() && lastReachable {
				sink.Report(unreachableDiagnostic(mb.Name, g, b))
				r.Reported++
			}
			dead := deadHandlers(g)
			logger.LogUnreachable(mb.Name, b.ID, b.Len())
			g.RemoveUnreachableBlock(b)
			r.Removed++
			r.DeadHandlers += reportDeadHandlers(mb.Name, g, b, dead, sink)
		} else if g.Compact(b) {
			r.Compacted++
		}

		if g.Len() == size {
			i++
		}
		lastReachable = reachable
	}
	return r
}

// safeToRemove reports whether b can leave the graph. A block that ends
// an exception range must stay while any block of the range is live.
func safeToRemove(g *flowgraph.Graph, b *flowgraph.Block, toIdx int) bool {
	for _, ex := range g.Exceptions() {
		if !ex.Live || g.BlockFor(ex.To) != b {
			continue
		}
		from := g.BlockFor(ex.From)
		if from == nil {
			panic(fmt.Sprintf("optimizer: exception range ending at block %d has no start block", b.ID))
		}
		fromIdx := g.IndexOf(from)
		if fromIdx < 0 || toIdx < fromIdx {
			panic(fmt.Sprintf("optimizer: exception range [%d, %d) is out of order", fromIdx, toIdx))
		}
		for j := toIdx - 1; j >= fromIdx; j-- {
			if g.IsReachable(g.BlockAt(j)) {
				return false
			}
		}
	}
	return true
}

func deadHandlers(g *flowgraph.Graph) int {
	n := 0
	for _, ex := range g.Exceptions() {
		if !ex.Live {
			n++
		}
	}
	return n
}

func reportDeadHandlers(name string, g *flowgraph.Graph, b *flowgraph.Block, before int, sink diagnostics.Sink) int {
	died := deadHandlers(g) - before
	for k := 0; k < died; k++ {
		sink.Report(diagnostics.Diagnostic{
			Kind:    diagnostics.DeadHandler,
			Method:  name,
			Block:   b.ID,
			Line:    -1,
			Message: "exception handler protects no code",
		})
	}
	return died
}

func unreachableDiagnostic(name string, g *flowgraph.Graph, b *flowgraph.Block) diagnostics.Diagnostic {
	return diagnostics.Diagnostic{
		Kind:       diagnostics.UnreachableBlock,
		Method:     name,
		Block:      b.ID,
		SourcePath: g.FindSourcePath(b),
		Line:       g.FindLineNumber(b),
		Message:    "unreachable code",
	}
}
