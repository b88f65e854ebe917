package abc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures a visitor event stream as strings
type recorder struct {
	events []string
}

func (r *recorder) VisitInstruction(insn *Instruction) { r.events = append(r.events, insn.String()) }
func (r *recorder) LabelCurrent(l *Label)              { r.events = append(r.events, "cur "+l.Name()) }
func (r *recorder) LabelNext(l *Label)                 { r.events = append(r.events, "next "+l.Name()) }
func (r *recorder) VisitEnd()                          { r.events = append(r.events, "end") }

func TestLabelBinding(t *testing.T) {
	a, b, c := NewLabel("a"), NewLabel("b"), NewLabel("c")

	il := NewInstructionList()
	il.LabelNext(a)
	il.VisitInstruction(New(OpNop))
	il.LabelCurrent(b)
	il.LabelNext(c)
	il.VisitInstruction(NewImmediate(OpDebugline, 3))
	il.VisitInstruction(New(OpReturnvoid))
	il.VisitEnd()

	pa, ok := il.Position(a)
	require.True(t, ok)
	assert.Equal(t, 0, pa)

	pb, _ := il.Position(b)
	assert.Equal(t, 0, pb)

	// pending labels skip non-executable instructions
	pc, _ := il.Position(c)
	assert.Equal(t, 2, pc)

	assert.Equal(t, []*Label{a, b}, il.LabelsAt(0))
	assert.Equal(t, []*Label{a, b, c}, il.Labels())
}

func TestLabelCurrentOnEmptyList(t *testing.T) {
	l := NewLabel("start")
	il := NewInstructionList()
	il.LabelCurrent(l)
	assert.Equal(t, []*Label{l}, il.PendingLabels())

	il.VisitInstruction(New(OpReturnvoid))
	p, ok := il.Position(l)
	require.True(t, ok)
	assert.Equal(t, 0, p)
}

func TestEndLabel(t *testing.T) {
	end := NewLabel("end")
	il := NewInstructionList()
	il.VisitInstruction(New(OpReturnvoid))
	il.LabelNext(end)
	il.VisitEnd()

	p, ok := il.Position(end)
	require.True(t, ok)
	assert.Equal(t, il.Len(), p)
	assert.Empty(t, il.PendingLabels())
}

func TestReplay(t *testing.T) {
	top, end := NewLabel("top"), NewLabel("end")
	il := NewInstructionList()
	il.VisitInstruction(New(OpGetlocal0))
	il.LabelCurrent(top)
	il.VisitInstruction(NewOperands(OpJump, top))
	il.LabelNext(end)
	il.VisitEnd()

	r := &recorder{}
	Replay(il, r)
	assert.Equal(t, []string{"next top", "getlocal0", "jump top", "next end", "end"}, r.events)

	// replaying into a fresh list reproduces the bindings
	copyList := NewInstructionList()
	Replay(il, copyList)
	assert.Equal(t, il.Instructions(), copyList.Instructions())
	for _, l := range []*Label{top, end} {
		want, _ := il.Position(l)
		got, ok := copyList.Position(l)
		require.True(t, ok)
		assert.Equal(t, want, got, l.Name())
	}
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "pushbyte 7", NewImmediate(OpPushbyte, 7).String())
	assert.Equal(t, `pushstring "a b"`, NewOperands(OpPushstring, "a b").String())
	assert.Equal(t, "pushdouble 1.0", NewOperands(OpPushdouble, 1.0).String())
	assert.Equal(t, "callproperty trace, 1", NewOperands(OpCallproperty, Name("trace"), 1).String())
	assert.Equal(t, "op_0xff", New(Opcode(0xFF)).String())
}

func TestInstructionControlFlow(t *testing.T) {
	l := NewLabel("x")
	jump := NewOperands(OpJump, l)
	assert.True(t, jump.IsBranch())
	assert.False(t, jump.IsConditionalBranch())
	assert.False(t, jump.CanFallThrough())
	assert.Equal(t, l, jump.Target())

	ift := NewOperands(OpIftrue, l)
	assert.True(t, ift.IsConditionalBranch())
	assert.True(t, ift.CanFallThrough())

	sw := NewOperands(OpLookupswitch, l, NewLabel("c0"), NewLabel("c1"))
	assert.Len(t, sw.Targets(), 3)

	assert.False(t, NewImmediate(OpDebugline, 1).IsExecutable())
	assert.True(t, New(OpThrow).IsTransferOfControl())
}
