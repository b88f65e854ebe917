package flowgraph

import "github.com/GriffinCanCode/abcopt/pkg/abc"

// Block is a basic block: a straight-line instruction run with one entry.
// Edges are kept as arena IDs so removing a block never leaves dangling
// references behind.
type Block struct {
	ID      int
	insns   []*abc.Instruction
	succs   []int
	preds   []int
	removed bool
}

func (b *Block) Len() int { return len(b.insns) }

func (b *Block) At(i int) *abc.Instruction { return b.insns[i] }

// Instructions returns a copy of the block's instructions
func (b *Block) Instructions() []*abc.Instruction {
	return append([]*abc.Instruction(nil), b.insns...)
}

func (b *Block) Successors() []int { return append([]int(nil), b.succs...) }

func (b *Block) Predecessors() []int { return append([]int(nil), b.preds...) }

// Removed reports whether the block has been spliced out of its graph
func (b *Block) Removed() bool { return b.removed }

// CanFallThrough reports whether control can leave the block by falling
// into the next block in entry order.
func (b *Block) CanFallThrough() bool {
	if len(b.insns) == 0 {
		return true
	}
	return b.insns[len(b.insns)-1].CanFallThrough()
}

// HasRealCode reports whether the block holds any executable instruction
// other than nop. Blocks without real code are already inert.
func (b *Block) HasRealCode() bool {
	for _, insn := range b.insns {
		if insn.IsExecutable() && insn.Opcode() != abc.OpNop {
			return true
		}
	}
	return false
}

func (b *Block) add(insn *abc.Instruction) {
	b.insns = append(b.insns, insn)
}

func appendUnique(ids []int, id int) []int {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
