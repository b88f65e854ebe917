package optimizer

import "github.com/GriffinCanCode/abcopt/pkg/abc"

// windowSize is the number of instructions the peephole rewriter can see
const windowSize = 4

// noLabel means no label binding point lies inside the window
const noLabel = -1

// entry is an instruction waiting in the window together with the labels
// that will be bound to it once it leaves.
type entry struct {
	insn     *abc.Instruction
	currents []*abc.Label
	nexts    []*abc.Label
}

func (e *entry) opcode() abc.Opcode {
	if e.insn == nil {
		return abc.OpNone
	}
	return e.insn.Opcode()
}

// operand returns the entry's operand at i, or nil
func (e *entry) operand(i int) any {
	if e.insn == nil {
		return nil
	}
	return e.insn.Operand(i)
}

// noInstruction is returned when a lookup falls outside the window or
// behind a label. It is never stored in the window.
var noInstruction = &entry{}

// window is a fixed-capacity ring buffer of entries; index 0 is the oldest
type window struct {
	slots [windowSize]entry
	head  int
	size  int
}

func (w *window) len() int { return w.size }

func (w *window) full() bool { return w.size == windowSize }

func (w *window) at(i int) *entry {
	if i < 0 || i >= w.size {
		panic("peephole: window index out of range")
	}
	return &w.slots[(w.head+i)%windowSize]
}

func (w *window) push(insn *abc.Instruction) *entry {
	if w.full() {
		panic("peephole: push into a full window")
	}
	e := &w.slots[(w.head+w.size)%windowSize]
	*e = entry{insn: insn}
	w.size++
	return e
}

func (w *window) popFront() entry {
	e := w.slots[w.head]
	w.slots[w.head] = entry{}
	w.head = (w.head + 1) % windowSize
	w.size--
	return e
}

func (w *window) popBack() entry {
	w.size--
	idx := (w.head + w.size) % windowSize
	e := w.slots[idx]
	w.slots[idx] = entry{}
	return e
}

func (w *window) reset() {
	*w = window{}
}
