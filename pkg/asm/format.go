package asm

import (
	"strconv"
	"strings"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
)

// Format prints an instruction list as assembly that Parse reads back
func Format(il *abc.InstructionList) string {
	return newNamer().format(il)
}

// namer gives every label a name that is unique within one method and
// valid as an identifier.
type namer struct {
	names map[*abc.Label]string
	taken map[string]bool
	seq   int
}

func newNamer() *namer {
	return &namer{
		names: make(map[*abc.Label]string),
		taken: make(map[string]bool),
	}
}

func (n *namer) name(l *abc.Label) string {
	if name, ok := n.names[l]; ok {
		return name
	}
	base := l.Name()
	if !isPlainIdent(base) {
		base = "L"
	}
	name := base
	for n.taken[name] {
		n.seq++
		name = base + "_" + strconv.Itoa(n.seq)
	}
	n.names[l] = name
	n.taken[name] = true
	return name
}

func (n *namer) format(il *abc.InstructionList) string {
	var sb strings.Builder
	labels := il.Labels()
	k := 0
	emitLabels := func(at int) {
		for k < len(labels) {
			p, _ := il.Position(labels[k])
			if p != at {
				return
			}
			sb.WriteString(n.name(labels[k]))
			sb.WriteString(":\n")
			k++
		}
	}

	for i := 0; i < il.Len(); i++ {
		emitLabels(i)
		sb.WriteString("    ")
		sb.WriteString(n.instruction(il.At(i)))
		sb.WriteByte('\n')
	}
	emitLabels(il.Len())
	return sb.String()
}

func (n *namer) instruction(insn *abc.Instruction) string {
	args := make([]string, 0, insn.OperandCount()+1)
	for _, op := range insn.Operands() {
		switch v := op.(type) {
		case *abc.Label:
			args = append(args, n.name(v))
		case abc.Name:
			args = append(args, formatName(v))
		default:
			args = append(args, abc.FormatOperand(v))
		}
	}
	for _, imm := range insn.Immediates() {
		args = append(args, strconv.Itoa(imm))
	}
	if len(args) == 0 {
		return insn.Opcode().String()
	}
	return insn.Opcode().String() + " " + strings.Join(args, ", ")
}

// formatName quotes names the lexer would split
func formatName(name abc.Name) string {
	for _, part := range strings.Split(string(name), ":") {
		if !isPlainIdent(part) {
			return strconv.Quote(string(name))
		}
	}
	return string(name)
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 && !isIdentStart(c) {
			return false
		}
		if !isIdentPart(c) {
			return false
		}
	}
	return true
}
