package optimizer

import "github.com/GriffinCanCode/abcopt/pkg/abc"

// DebugStripper drops debug, debugline and debugfile from a stream.
// A LabelCurrent that would land on a dropped instruction binds to the
// next instruction instead.
type DebugStripper struct {
	next         abc.Visitor
	lastStripped bool
	stripped     int
}

func NewDebugStripper(next abc.Visitor) *DebugStripper {
	return &DebugStripper{next: next}
}

// Stripped returns the number of instructions dropped so far
func (d *DebugStripper) Stripped() int { return d.stripped }

func (d *DebugStripper) VisitInstruction(insn *abc.Instruction) {
	switch insn.Opcode() {
	case abc.OpDebug, abc.OpDebugline, abc.OpDebugfile:
		d.lastStripped = true
		d.stripped++
		return
	}
	d.lastStripped = false
	d.next.VisitInstruction(insn)
}

func (d *DebugStripper) LabelCurrent(l *abc.Label) {
	if d.lastStripped {
		d.next.LabelNext(l)
		return
	}
	d.next.LabelCurrent(l)
}

func (d *DebugStripper) LabelNext(l *abc.Label) { d.next.LabelNext(l) }

func (d *DebugStripper) VisitEnd() {
	d.lastStripped = false
	d.next.VisitEnd()
}

// StripDebugList returns a copy of il without debug instructions
func StripDebugList(il *abc.InstructionList) (*abc.InstructionList, int) {
	out := abc.NewInstructionList()
	d := NewDebugStripper(out)
	abc.Replay(il, d)
	return out, d.Stripped()
}
