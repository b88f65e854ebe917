// Package flowgraph builds the control flow graph of a method body.
//
// Design: Blocks live in an arena indexed by ID. Entry order is a slice of
// IDs and labels map to IDs, so removal is "mark removed, splice, relink"
// and labels can be re-homed without touching instructions.
package flowgraph

import (
	"fmt"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
)

// endOfCode is the pseudo block ID of labels bound past the last instruction
const endOfCode = -1

// Graph is the control flow graph of one method body
type Graph struct {
	blocks     []*Block
	entry      []int
	byLabel    map[*abc.Label]int
	labels     []*abc.Label
	exceptions []*abc.ExceptionInfo

	catchTargets mapset.Set[int]
	reachable    mapset.Set[int]
}

// Build splits the instruction list into basic blocks. A block starts at
// every bound label and after every transfer of control.
func Build(il *abc.InstructionList, exceptions []*abc.ExceptionInfo) *Graph {
	g := &Graph{
		byLabel:      make(map[*abc.Label]int),
		labels:       il.Labels(),
		exceptions:   exceptions,
		catchTargets: mapset.NewThreadUnsafeSet[int](),
	}

	handlerLabels := mapset.NewThreadUnsafeSet[*abc.Label]()
	for _, ex := range exceptions {
		if ex.Live {
			handlerLabels.Add(ex.Target)
		}
	}

	labelsByPos := make(map[int][]*abc.Label)
	for _, l := range g.labels {
		p, _ := il.Position(l)
		labelsByPos[p] = append(labelsByPos[p], l)
	}

	current := g.newBlock()
	lastTransferred := false
	branchTargets := make(map[int][]*abc.Label)

	for i := 0; i < il.Len(); i++ {
		atLabel := len(labelsByPos[i]) > 0
		if atLabel || lastTransferred {
			if current.Len() > 0 {
				prev := current
				current = g.newBlock()
				if prev.CanFallThrough() {
					g.addEdge(prev.ID, current.ID)
				}
			}
			for _, l := range labelsByPos[i] {
				g.byLabel[l] = current.ID
				if handlerLabels.Contains(l) {
					g.catchTargets.Add(current.ID)
				}
			}
		}

		insn := il.At(i)
		current.add(insn)
		lastTransferred = insn.IsTransferOfControl()

		if insn.IsBranch() {
			branchTargets[current.ID] = append(branchTargets[current.ID], insn.Targets()...)
		}
	}

	for _, l := range labelsByPos[il.Len()] {
		g.byLabel[l] = endOfCode
	}

	// Targets may be forward references, so edges are added once every
	// block exists.
	for _, b := range g.blocks {
		for _, l := range branchTargets[b.ID] {
			if id, ok := g.byLabel[l]; ok && id != endOfCode {
				g.addEdge(b.ID, id)
			}
		}
	}

	return g
}

func (g *Graph) newBlock() *Block {
	b := &Block{ID: len(g.blocks)}
	g.blocks = append(g.blocks, b)
	g.entry = append(g.entry, b.ID)
	return b
}

func (g *Graph) addEdge(from, to int) {
	g.blocks[from].succs = appendUnique(g.blocks[from].succs, to)
	g.blocks[to].preds = appendUnique(g.blocks[to].preds, from)
}

// Len returns the number of live blocks
func (g *Graph) Len() int { return len(g.entry) }

// BlockAt returns the i'th live block in entry order
func (g *Graph) BlockAt(i int) *Block { return g.blocks[g.entry[i]] }

// Block returns the block with the given ID, removed or not
func (g *Graph) Block(id int) *Block { return g.blocks[id] }

// Start returns the entry block
func (g *Graph) Start() *Block { return g.blocks[0] }

// EntryOrder returns the live blocks in entry order
func (g *Graph) EntryOrder() []*Block {
	out := make([]*Block, len(g.entry))
	for i, id := range g.entry {
		out[i] = g.blocks[id]
	}
	return out
}

// IndexOf returns b's position in entry order, or -1 if it is not live
func (g *Graph) IndexOf(b *Block) int {
	for i, id := range g.entry {
		if id == b.ID {
			return i
		}
	}
	return -1
}

// BlockFor returns the block a label is bound to. Labels bound past the
// last instruction, or never bound, have no block.
func (g *Graph) BlockFor(l *abc.Label) *Block {
	id, ok := g.byLabel[l]
	if !ok || id == endOfCode {
		return nil
	}
	return g.blocks[id]
}

// Exceptions returns the exception table the graph was built with
func (g *Graph) Exceptions() []*abc.ExceptionInfo { return g.exceptions }

// IsCatchTarget reports whether b is the entry of a live handler
func (g *Graph) IsCatchTarget(b *Block) bool {
	return g.catchTargets.Contains(b.ID)
}

// IsReachable reports whether a path exists from the start block or from
// any live catch target to b.
func (g *Graph) IsReachable(b *Block) bool {
	if g.reachable == nil {
		g.reachable = g.computeReachable()
	}
	return g.reachable.Contains(b.ID)
}

func (g *Graph) computeReachable() mapset.Set[int] {
	seen := mapset.NewThreadUnsafeSet[int]()
	work := []int{g.Start().ID}
	for _, id := range g.catchTargets.ToSlice() {
		work = append(work, id)
	}

	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if g.blocks[id].removed || !seen.Add(id) {
			continue
		}
		work = append(work, g.blocks[id].succs...)
	}
	return seen
}

// RemoveUnreachableBlock splices b out of the graph. Exception ranges
// that start at b move their start to the next block; ranges that end at
// b move their end to the previous block. A range that starts and ends at
// b is dead: its handler stops being a reachability root.
func (g *Graph) RemoveUnreachableBlock(b *Block) {
	if g.IsReachable(b) {
		panic(fmt.Sprintf("flowgraph: removing reachable block %d", b.ID))
	}
	idx := g.IndexOf(b)
	if idx < 0 {
		panic(fmt.Sprintf("flowgraph: block %d is not in entry order", b.ID))
	}

	handlerDied := false
	for _, ex := range g.exceptions {
		if !ex.Live {
			continue
		}
		fromHere := g.BlockFor(ex.From) == b
		toHere := g.BlockFor(ex.To) == b
		switch {
		case fromHere && toHere:
			ex.Live = false
			handlerDied = true
		case fromHere:
			if idx+1 >= len(g.entry) {
				panic(fmt.Sprintf("flowgraph: exception range starting at block %d has no next block", b.ID))
			}
			g.byLabel[ex.From] = g.entry[idx+1]
		case toHere:
			if idx < 1 {
				panic(fmt.Sprintf("flowgraph: exception range ending at block %d has no previous block", b.ID))
			}
			g.byLabel[ex.To] = g.entry[idx-1]
		}
	}

	// Everything else bound here now falls through to the next block.
	next := endOfCode
	if idx+1 < len(g.entry) {
		next = g.entry[idx+1]
	}
	for l, id := range g.byLabel {
		if id == b.ID {
			g.byLabel[l] = next
		}
	}

	g.unlink(b)
	b.removed = true
	g.entry = append(g.entry[:idx], g.entry[idx+1:]...)

	if handlerDied {
		g.rebuildCatchTargets()
	}
}

func (g *Graph) unlink(b *Block) {
	for _, s := range b.succs {
		g.blocks[s].preds = removeID(g.blocks[s].preds, b.ID)
	}
	for _, p := range b.preds {
		g.blocks[p].succs = removeID(g.blocks[p].succs, b.ID)
	}
	b.succs = nil
	b.preds = nil
}

// rebuildCatchTargets recomputes the handler roots from the live
// exceptions, so a handler shared with a live range stays a root.
func (g *Graph) rebuildCatchTargets() {
	g.catchTargets.Clear()
	for _, ex := range g.exceptions {
		if !ex.Live {
			continue
		}
		if t := g.BlockFor(ex.Target); t != nil {
			g.catchTargets.Add(t.ID)
		}
	}
	g.reachable = nil
}

// Compact strips every executable instruction from an unreachable block
// and leaves a single nop, so the block stays addressable. Debug markers
// are kept. It reports whether the block changed.
func (g *Graph) Compact(b *Block) bool {
	if g.IsReachable(b) {
		panic(fmt.Sprintf("flowgraph: compacting reachable block %d", b.ID))
	}

	kept := make([]*abc.Instruction, 0, len(b.insns)+1)
	for _, insn := range b.insns {
		if !insn.IsExecutable() {
			kept = append(kept, insn)
		}
	}
	if len(b.insns) == len(kept)+1 && b.insns[len(b.insns)-1].Opcode() == abc.OpNop {
		return false
	}
	b.insns = append(kept, abc.New(abc.OpNop))

	for _, s := range b.succs {
		g.blocks[s].preds = removeID(g.blocks[s].preds, b.ID)
	}
	b.succs = nil
	if idx := g.IndexOf(b); idx >= 0 && idx+1 < len(g.entry) {
		g.addEdge(b.ID, g.entry[idx+1])
	}
	return true
}

// FindLineNumber returns the line of the first debugline in b. Failing
// that, it returns the line after the nearest debugline in the preceding
// blocks, since dead code usually starts on the next line. -1 if none.
func (g *Graph) FindLineNumber(b *Block) int {
	if insn := searchForward(b, abc.OpDebugline); insn != nil {
		return insn.Immediate()
	}
	if insn := g.searchPreceding(b, abc.OpDebugline); insn != nil {
		return insn.Immediate() + 1
	}
	return -1
}

// FindSourcePath returns the source file in effect at the start of b,
// or "" if the method carries no debugfile.
func (g *Graph) FindSourcePath(b *Block) string {
	insn := searchForward(b, abc.OpDebugfile)
	if insn == nil {
		insn = g.searchPreceding(b, abc.OpDebugfile)
	}
	if insn == nil {
		return ""
	}
	path, _ := insn.Operand(0).(string)
	return normalizeDebugPath(path)
}

// normalizeDebugPath turns "sourcepath;package;file" debug names into a
// native path.
func normalizeDebugPath(path string) string {
	sep := string(filepath.Separator)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, "/", sep)
	return strings.ReplaceAll(path, ";", sep)
}

func searchForward(b *Block, op abc.Opcode) *abc.Instruction {
	for _, insn := range b.insns {
		if insn.Opcode() == op {
			return insn
		}
	}
	return nil
}

func (g *Graph) searchPreceding(b *Block, op abc.Opcode) *abc.Instruction {
	idx := g.IndexOf(b)
	for i := idx - 1; i >= 0; i-- {
		candidate := g.BlockAt(i)
		for j := candidate.Len() - 1; j >= 0; j-- {
			if candidate.insns[j].Opcode() == op {
				return candidate.insns[j]
			}
		}
	}
	return nil
}

// Linearize flattens the live blocks back into an instruction list in
// entry order, binding every label to the block it now belongs to.
func (g *Graph) Linearize() *abc.InstructionList {
	byBlock := make(map[int][]*abc.Label)
	for _, l := range g.labels {
		id := g.byLabel[l]
		byBlock[id] = append(byBlock[id], l)
	}

	il := abc.NewInstructionList()
	for _, id := range g.entry {
		for _, l := range byBlock[id] {
			il.LabelNext(l)
		}
		for _, insn := range g.blocks[id].insns {
			il.VisitInstruction(insn)
		}
	}
	for _, l := range byBlock[endOfCode] {
		il.LabelNext(l)
	}
	il.VisitEnd()
	return il
}
