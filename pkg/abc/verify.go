package abc

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/abcopt/pkg/logger"
)

// ValidationError represents a method body validation error
type ValidationError struct {
	Position int
	Message  string
	Code     string
}

func (e *ValidationError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("%s\n  %s", e.Message, e.Code)
	}
	return fmt.Sprintf("insn %d: %s\n  %s", e.Position, e.Message, e.Code)
}

// Validator checks that a method body is well formed before it is handed
// to the optimizer. The optimizer treats malformed input as a programming
// error in an earlier stage, so bad bodies are rejected up front.
type Validator struct {
	errors []ValidationError
	warns  []ValidationError
}

// NewValidator creates a new method body validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
		warns:  make([]ValidationError, 0),
	}
}

// Validate performs every check on the instruction list and exception table
func (v *Validator) Validate(il *InstructionList, exceptions []*ExceptionInfo) error {
	v.errors = v.errors[:0]
	v.warns = v.warns[:0]

	v.validateOpcodes(il)
	v.validateOperands(il)
	v.validateTargets(il)
	v.validateExceptions(il, exceptions)
	v.validatePending(il)

	if len(v.errors) > 0 {
		return v.formatErrors()
	}

	if len(v.warns) > 0 {
		v.logWarnings()
	}

	return nil
}

// Warnings returns the warnings of the last Validate call
func (v *Validator) Warnings() []ValidationError {
	return append([]ValidationError(nil), v.warns...)
}

func (v *Validator) validateOpcodes(il *InstructionList) {
	for i, insn := range il.insns {
		if !insn.Opcode().Valid() {
			v.addError(i, "unknown opcode", insn.String())
		}
	}
}

// validateOperands checks operand shapes against the opcode's form
func (v *Validator) validateOperands(il *InstructionList) {
	for i, insn := range il.insns {
		if !operandsMatch(insn) {
			v.addError(i, fmt.Sprintf("operands do not match form of %s", insn.Opcode()), insn.String())
		}
	}
}

func operandsMatch(insn *Instruction) bool {
	switch insn.Opcode().Form() {
	case FormNone:
		return len(insn.operands) == 0 && len(insn.immediates) == 0
	case FormImmediate:
		return len(insn.operands) == 0 && len(insn.immediates) == 1
	case FormImmediates:
		return len(insn.operands) == 0 && len(insn.immediates) >= 2
	case FormName:
		return len(insn.operands) == 1 && isType[Name](insn.operands[0])
	case FormNameCount:
		return len(insn.operands) == 2 && isType[Name](insn.operands[0]) && isType[int](insn.operands[1])
	case FormLabel:
		return len(insn.operands) == 1 && insn.Target() != nil
	case FormSwitch:
		return len(insn.operands) >= 2 && len(insn.Targets()) == len(insn.operands)
	case FormString:
		return len(insn.operands) == 1 && isType[string](insn.operands[0])
	case FormInt:
		return len(insn.operands) == 1 && isType[int32](insn.operands[0])
	case FormUint:
		return len(insn.operands) == 1 && isType[uint32](insn.operands[0])
	case FormDouble:
		return len(insn.operands) == 1 && isType[float64](insn.operands[0])
	}
	return false
}

func isType[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

// validateTargets checks that every branch lands on a bound label
func (v *Validator) validateTargets(il *InstructionList) {
	for i, insn := range il.insns {
		for _, target := range insn.Targets() {
			if _, ok := il.Position(target); !ok {
				v.addError(i, fmt.Sprintf("branch target %s is never bound", target), insn.String())
			}
		}
	}
}

// validateExceptions checks exception ranges
func (v *Validator) validateExceptions(il *InstructionList, exceptions []*ExceptionInfo) {
	for n, ex := range exceptions {
		code := fmt.Sprintf("exception %d [%s, %s) -> %s", n, ex.From, ex.To, ex.Target)
		from, okFrom := il.Position(ex.From)
		to, okTo := il.Position(ex.To)
		if _, ok := il.Position(ex.Target); !ok {
			v.addError(-1, "exception target is never bound", code)
		}
		if !okFrom || !okTo {
			v.addError(-1, "exception range label is never bound", code)
			continue
		}
		if to < from {
			v.addError(-1, "exception range ends before it starts", code)
		}
	}
}

func (v *Validator) validatePending(il *InstructionList) {
	for _, l := range il.pending {
		v.addWarn(il.Len(), fmt.Sprintf("label %s bound past the last instruction", l), "")
	}
}

func (v *Validator) addError(pos int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Position: pos, Message: msg, Code: code})
}

func (v *Validator) addWarn(pos int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Position: pos, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("Method body validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Method body validation warning", "insn", warn.Position, "msg", warn.Message)
	}
}
