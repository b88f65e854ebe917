// Package abc - Tests for method body validator
package abc

import (
	"strings"
	"testing"
)

func buildList(t *testing.T, insns ...any) *InstructionList {
	t.Helper()
	il := NewInstructionList()
	for _, x := range insns {
		switch v := x.(type) {
		case *Instruction:
			il.VisitInstruction(v)
		case *Label:
			il.LabelNext(v)
		default:
			t.Fatalf("unexpected element %T", x)
		}
	}
	il.VisitEnd()
	return il
}

func TestValidatorValidBody(t *testing.T) {
	done := NewLabel("done")
	il := buildList(t,
		New(OpGetlocal0),
		New(OpPushscope),
		NewOperands(OpPushstring, "hi"),
		NewOperands(OpIftrue, done),
		New(OpPop),
		done,
		New(OpReturnvoid),
	)

	validator := NewValidator()
	if err := validator.Validate(il, nil); err != nil {
		t.Errorf("Valid body failed validation: %v", err)
	}
}

func TestValidatorUnboundTarget(t *testing.T) {
	il := buildList(t,
		NewOperands(OpJump, NewLabel("nowhere")),
		New(OpReturnvoid),
	)

	validator := NewValidator()
	err := validator.Validate(il, nil)
	if err == nil {
		t.Fatal("Expected error for unbound branch target, got nil")
	}
	if !strings.Contains(err.Error(), "never bound") {
		t.Errorf("Expected 'never bound' error, got: %v", err)
	}
}

func TestValidatorOperandShape(t *testing.T) {
	il := buildList(t,
		NewOperands(OpPushint, "not an int"),
		New(OpReturnvalue),
	)

	validator := NewValidator()
	err := validator.Validate(il, nil)
	if err == nil {
		t.Fatal("Expected error for mismatched operand, got nil")
	}
	if !strings.Contains(err.Error(), "insn 0") {
		t.Errorf("Expected error at insn 0, got: %v", err)
	}
}

func TestValidatorUnknownOpcode(t *testing.T) {
	il := buildList(t, New(Opcode(0xFF)))

	validator := NewValidator()
	if err := validator.Validate(il, nil); err == nil {
		t.Error("Expected error for unknown opcode, got nil")
	}
}

func TestValidatorExceptionRange(t *testing.T) {
	from, to, handler := NewLabel("from"), NewLabel("to"), NewLabel("handler")
	il := buildList(t,
		to,
		New(OpNop),
		from,
		New(OpReturnvoid),
		handler,
		New(OpReturnvoid),
	)

	validator := NewValidator()
	err := validator.Validate(il, []*ExceptionInfo{NewExceptionInfo(from, to, handler, "", "")})
	if err == nil {
		t.Fatal("Expected error for inverted exception range, got nil")
	}
	if !strings.Contains(err.Error(), "ends before it starts") {
		t.Errorf("Expected range error, got: %v", err)
	}
}

func TestValidatorExceptionUnboundHandler(t *testing.T) {
	from, to := NewLabel("from"), NewLabel("to")
	il := buildList(t, from, New(OpNop), to, New(OpReturnvoid))

	validator := NewValidator()
	err := validator.Validate(il, []*ExceptionInfo{NewExceptionInfo(from, to, NewLabel("lost"), "", "")})
	if err == nil {
		t.Error("Expected error for unbound handler, got nil")
	}
}

func TestValidatorPendingLabelWarning(t *testing.T) {
	il := NewInstructionList()
	il.VisitInstruction(New(OpReturnvoid))
	il.LabelNext(NewLabel("tail"))

	validator := NewValidator()
	if err := validator.Validate(il, nil); err != nil {
		t.Fatalf("Pending label should only warn, got: %v", err)
	}
	if len(validator.Warnings()) != 1 {
		t.Errorf("Expected 1 warning, got: %d", len(validator.Warnings()))
	}
}
