package abc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Name is a multiname operand (property, type or class reference)
type Name string

// Instruction is a single ABC instruction. Instructions are immutable once
// constructed; rewriting replaces the reference instead of mutating it.
type Instruction struct {
	opcode     Opcode
	immediates []int
	operands   []any
}

// New creates an instruction with no operands
func New(op Opcode) *Instruction {
	return &Instruction{opcode: op}
}

// NewImmediate creates an instruction carrying u30 immediates
func NewImmediate(op Opcode, imm ...int) *Instruction {
	return &Instruction{opcode: op, immediates: append([]int(nil), imm...)}
}

// NewOperands creates an instruction carrying typed operands
// (Name, string, int32, uint32, float64, int counts or *Label).
func NewOperands(op Opcode, operands ...any) *Instruction {
	return &Instruction{opcode: op, operands: append([]any(nil), operands...)}
}

// Modified creates a new instruction with src's operands and a different opcode
func Modified(op Opcode, src *Instruction) *Instruction {
	return &Instruction{
		opcode:     op,
		immediates: src.immediates,
		operands:   src.operands,
	}
}

func (i *Instruction) Opcode() Opcode { return i.opcode }

// HasImmediate reports whether the instruction carries at least one immediate
func (i *Instruction) HasImmediate() bool { return len(i.immediates) > 0 }

// Immediate returns the first immediate, or -1 if there is none
func (i *Instruction) Immediate() int {
	if len(i.immediates) == 0 {
		return -1
	}
	return i.immediates[0]
}

// Immediates returns a copy of every immediate
func (i *Instruction) Immediates() []int {
	return append([]int(nil), i.immediates...)
}

func (i *Instruction) OperandCount() int { return len(i.operands) }

// Operand returns the operand at idx, or nil if out of range
func (i *Instruction) Operand(idx int) any {
	if idx < 0 || idx >= len(i.operands) {
		return nil
	}
	return i.operands[idx]
}

// Operands returns a copy of the typed operands
func (i *Instruction) Operands() []any {
	return append([]any(nil), i.operands...)
}

// IsBranch reports whether the instruction carries a jump target
func (i *Instruction) IsBranch() bool {
	switch i.opcode {
	case OpJump, OpIftrue, OpIffalse,
		OpIfeq, OpIfne, OpIflt, OpIfle, OpIfgt, OpIfge,
		OpIfnlt, OpIfnle, OpIfngt, OpIfnge,
		OpIfstricteq, OpIfstrictne, OpLookupswitch:
		return true
	}
	return false
}

// IsConditionalBranch reports whether the instruction is a two-way branch
func (i *Instruction) IsConditionalBranch() bool {
	return i.IsBranch() && i.opcode != OpJump && i.opcode != OpLookupswitch
}

// Target returns the branch target; for lookupswitch this is the default target
func (i *Instruction) Target() *Label {
	if !i.IsBranch() || len(i.operands) == 0 {
		return nil
	}
	l, _ := i.operands[0].(*Label)
	return l
}

// Targets returns every label the instruction can transfer control to
func (i *Instruction) Targets() []*Label {
	if !i.IsBranch() {
		return nil
	}
	var targets []*Label
	for _, op := range i.operands {
		if l, ok := op.(*Label); ok {
			targets = append(targets, l)
		}
	}
	return targets
}

// IsExecutable reports whether the instruction has a runtime effect.
// Debug markers are carried along but never executed.
func (i *Instruction) IsExecutable() bool {
	switch i.opcode {
	case OpDebug, OpDebugline, OpDebugfile, OpBkptline, OpTimestamp:
		return false
	}
	return true
}

// IsTransferOfControl reports whether the instruction ends a basic block
func (i *Instruction) IsTransferOfControl() bool {
	if i.IsBranch() {
		return true
	}
	switch i.opcode {
	case OpThrow, OpReturnvoid, OpReturnvalue:
		return true
	}
	return false
}

// CanFallThrough reports whether control can reach the following instruction
func (i *Instruction) CanFallThrough() bool {
	switch i.opcode {
	case OpJump, OpLookupswitch, OpThrow, OpReturnvoid, OpReturnvalue:
		return false
	}
	return true
}

func (i *Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(i.opcode.String())

	args := make([]string, 0, len(i.immediates)+len(i.operands))
	for _, op := range i.operands {
		args = append(args, FormatOperand(op))
	}
	for _, imm := range i.immediates {
		args = append(args, strconv.Itoa(imm))
	}
	if len(args) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(args, ", "))
	}
	return sb.String()
}

// FormatOperand renders one operand the way String prints it
func FormatOperand(op any) string {
	switch v := op.(type) {
	case *Label:
		return v.String()
	case Name:
		return string(v)
	case string:
		return strconv.Quote(v)
	case float64:
		if math.IsNaN(v) {
			return "NaN"
		}
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}
