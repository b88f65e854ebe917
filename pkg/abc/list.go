package abc

import "sort"

// Visitor receives a method body as a stream of instructions and label
// binding events. LabelCurrent binds a label to the most recently visited
// instruction; LabelNext binds it to whatever instruction arrives next.
type Visitor interface {
	VisitInstruction(insn *Instruction)
	LabelCurrent(l *Label)
	LabelNext(l *Label)
	VisitEnd()
}

// InstructionList is an ordered instruction sequence with label bindings.
// It is the terminal Visitor of every instruction stream.
type InstructionList struct {
	insns   []*Instruction
	pos     map[*Label]int
	order   []*Label
	pending []*Label
}

// NewInstructionList creates an empty list
func NewInstructionList() *InstructionList {
	return &InstructionList{pos: make(map[*Label]int)}
}

// Len returns the number of instructions
func (il *InstructionList) Len() int { return len(il.insns) }

// At returns the instruction at position i
func (il *InstructionList) At(i int) *Instruction { return il.insns[i] }

// Instructions returns a copy of the instruction sequence
func (il *InstructionList) Instructions() []*Instruction {
	return append([]*Instruction(nil), il.insns...)
}

// Add appends an instruction; pending LabelNext bindings resolve to it
// when it is executable.
func (il *InstructionList) Add(insn *Instruction) {
	if insn.IsExecutable() {
		il.resolvePending(len(il.insns))
	}
	il.insns = append(il.insns, insn)
}

func (il *InstructionList) VisitInstruction(insn *Instruction) { il.Add(insn) }

func (il *InstructionList) LabelCurrent(l *Label) {
	if len(il.insns) == 0 {
		il.LabelNext(l)
		return
	}
	il.bind(l, len(il.insns)-1)
}

func (il *InstructionList) LabelNext(l *Label) {
	il.pending = append(il.pending, l)
}

// VisitEnd binds labels still waiting for a next instruction to the end
// of the list.
func (il *InstructionList) VisitEnd() {
	il.resolvePending(len(il.insns))
}

func (il *InstructionList) resolvePending(at int) {
	for _, l := range il.pending {
		il.bind(l, at)
	}
	il.pending = nil
}

func (il *InstructionList) bind(l *Label, at int) {
	if _, ok := il.pos[l]; !ok {
		il.order = append(il.order, l)
	}
	il.pos[l] = at
}

// Position returns where l is bound. A label bound past the last
// instruction reports Len().
func (il *InstructionList) Position(l *Label) (int, bool) {
	p, ok := il.pos[l]
	return p, ok
}

// Labels returns every bound label sorted by position, then binding order
func (il *InstructionList) Labels() []*Label {
	out := append([]*Label(nil), il.order...)
	sort.SliceStable(out, func(a, b int) bool {
		return il.pos[out[a]] < il.pos[out[b]]
	})
	return out
}

// LabelsAt returns the labels bound to position p in binding order
func (il *InstructionList) LabelsAt(p int) []*Label {
	var out []*Label
	for _, l := range il.order {
		if il.pos[l] == p {
			out = append(out, l)
		}
	}
	return out
}

// PendingLabels returns labels bound with LabelNext that have not yet
// been resolved
func (il *InstructionList) PendingLabels() []*Label {
	return append([]*Label(nil), il.pending...)
}

// Replay feeds the list to v as a stream of events. Every label is
// delivered as a LabelNext immediately before the instruction it is
// bound to.
func Replay(il *InstructionList, v Visitor) {
	byPos := make(map[int][]*Label, len(il.order))
	for _, l := range il.order {
		p := il.pos[l]
		byPos[p] = append(byPos[p], l)
	}

	for i, insn := range il.insns {
		for _, l := range byPos[i] {
			v.LabelNext(l)
		}
		v.VisitInstruction(insn)
	}
	for _, l := range il.order {
		if il.pos[l] >= len(il.insns) {
			v.LabelNext(l)
		}
	}
	for _, l := range il.pending {
		v.LabelNext(l)
	}
	v.VisitEnd()
}
