// Package abc implements the ActionScript bytecode (ABC) model the optimizer works on.
//
// Design: Immutable instructions, labels as the only jump indirection,
// instruction lists that bind labels to positions. Nothing here knows about
// constant pools or final encoding.
package abc

import "fmt"

// Opcode is an AVM2 opcode
type Opcode uint8

// OpNone is returned by lookups that have no instruction to report.
// 0x00 is not assigned in the AVM2 instruction set.
const OpNone Opcode = 0x00

const (
	OpBkpt               Opcode = 0x01
	OpNop                Opcode = 0x02
	OpThrow              Opcode = 0x03
	OpGetsuper           Opcode = 0x04
	OpSetsuper           Opcode = 0x05
	OpDxns               Opcode = 0x06
	OpDxnslate           Opcode = 0x07
	OpKill               Opcode = 0x08
	OpLabel              Opcode = 0x09
	OpIfnlt              Opcode = 0x0C
	OpIfnle              Opcode = 0x0D
	OpIfngt              Opcode = 0x0E
	OpIfnge              Opcode = 0x0F
	OpJump               Opcode = 0x10
	OpIftrue             Opcode = 0x11
	OpIffalse            Opcode = 0x12
	OpIfeq               Opcode = 0x13
	OpIfne               Opcode = 0x14
	OpIflt               Opcode = 0x15
	OpIfle               Opcode = 0x16
	OpIfgt               Opcode = 0x17
	OpIfge               Opcode = 0x18
	OpIfstricteq         Opcode = 0x19
	OpIfstrictne         Opcode = 0x1A
	OpLookupswitch       Opcode = 0x1B
	OpPushwith           Opcode = 0x1C
	OpPopscope           Opcode = 0x1D
	OpNextname           Opcode = 0x1E
	OpHasnext            Opcode = 0x1F
	OpPushnull           Opcode = 0x20
	OpPushundefined      Opcode = 0x21
	OpNextvalue          Opcode = 0x23
	OpPushbyte           Opcode = 0x24
	OpPushshort          Opcode = 0x25
	OpPushtrue           Opcode = 0x26
	OpPushfalse          Opcode = 0x27
	OpPushnan            Opcode = 0x28
	OpPop                Opcode = 0x29
	OpDup                Opcode = 0x2A
	OpSwap               Opcode = 0x2B
	OpPushstring         Opcode = 0x2C
	OpPushint            Opcode = 0x2D
	OpPushuint           Opcode = 0x2E
	OpPushdouble         Opcode = 0x2F
	OpPushscope          Opcode = 0x30
	OpPushnamespace      Opcode = 0x31
	OpHasnext2           Opcode = 0x32
	OpLi8                Opcode = 0x35
	OpLi16               Opcode = 0x36
	OpLi32               Opcode = 0x37
	OpLf32               Opcode = 0x38
	OpLf64               Opcode = 0x39
	OpSi8                Opcode = 0x3A
	OpSi16               Opcode = 0x3B
	OpSi32               Opcode = 0x3C
	OpSf32               Opcode = 0x3D
	OpSf64               Opcode = 0x3E
	OpNewfunction        Opcode = 0x40
	OpCall               Opcode = 0x41
	OpConstruct          Opcode = 0x42
	OpCallmethod         Opcode = 0x43
	OpCallstatic         Opcode = 0x44
	OpCallsuper          Opcode = 0x45
	OpCallproperty       Opcode = 0x46
	OpReturnvoid         Opcode = 0x47
	OpReturnvalue        Opcode = 0x48
	OpConstructsuper     Opcode = 0x49
	OpConstructprop      Opcode = 0x4A
	OpCallsuperid        Opcode = 0x4B
	OpCallproplex        Opcode = 0x4C
	OpCallinterface      Opcode = 0x4D
	OpCallsupervoid      Opcode = 0x4E
	OpCallpropvoid       Opcode = 0x4F
	OpSxi1               Opcode = 0x50
	OpSxi8               Opcode = 0x51
	OpSxi16              Opcode = 0x52
	OpApplytype          Opcode = 0x53
	OpNewobject          Opcode = 0x55
	OpNewarray           Opcode = 0x56
	OpNewactivation      Opcode = 0x57
	OpNewclass           Opcode = 0x58
	OpGetdescendants     Opcode = 0x59
	OpNewcatch           Opcode = 0x5A
	OpFindpropstrict     Opcode = 0x5D
	OpFindproperty       Opcode = 0x5E
	OpFinddef            Opcode = 0x5F
	OpGetlex             Opcode = 0x60
	OpSetproperty        Opcode = 0x61
	OpGetlocal           Opcode = 0x62
	OpSetlocal           Opcode = 0x63
	OpGetglobalscope     Opcode = 0x64
	OpGetscopeobject     Opcode = 0x65
	OpGetproperty        Opcode = 0x66
	OpGetouterscope      Opcode = 0x67
	OpInitproperty       Opcode = 0x68
	OpSetpropertylate    Opcode = 0x69
	OpDeleteproperty     Opcode = 0x6A
	OpDeletepropertylate Opcode = 0x6B
	OpGetslot            Opcode = 0x6C
	OpSetslot            Opcode = 0x6D
	OpGetglobalslot      Opcode = 0x6E
	OpSetglobalslot      Opcode = 0x6F
	OpConvertS           Opcode = 0x70
	OpEscXelem           Opcode = 0x71
	OpEscXattr           Opcode = 0x72
	OpConvertI           Opcode = 0x73
	OpConvertU           Opcode = 0x74
	OpConvertD           Opcode = 0x75
	OpConvertB           Opcode = 0x76
	OpConvertO           Opcode = 0x77
	OpCheckfilter        Opcode = 0x78
	OpUnplus             Opcode = 0x7A
	OpCoerce             Opcode = 0x80
	OpCoerceB            Opcode = 0x81
	OpCoerceA            Opcode = 0x82
	OpCoerceI            Opcode = 0x83
	OpCoerceD            Opcode = 0x84
	OpCoerceS            Opcode = 0x85
	OpAstype             Opcode = 0x86
	OpAstypelate         Opcode = 0x87
	OpCoerceU            Opcode = 0x88
	OpCoerceO            Opcode = 0x89
	OpNegate             Opcode = 0x90
	OpIncrement          Opcode = 0x91
	OpInclocal           Opcode = 0x92
	OpDecrement          Opcode = 0x93
	OpDeclocal           Opcode = 0x94
	OpTypeof             Opcode = 0x95
	OpNot                Opcode = 0x96
	OpBitnot             Opcode = 0x97
	OpAddD               Opcode = 0x9B
	OpAdd                Opcode = 0xA0
	OpSubtract           Opcode = 0xA1
	OpMultiply           Opcode = 0xA2
	OpDivide             Opcode = 0xA3
	OpModulo             Opcode = 0xA4
	OpLshift             Opcode = 0xA5
	OpRshift             Opcode = 0xA6
	OpUrshift            Opcode = 0xA7
	OpBitand             Opcode = 0xA8
	OpBitor              Opcode = 0xA9
	OpBitxor             Opcode = 0xAA
	OpEquals             Opcode = 0xAB
	OpStrictequals       Opcode = 0xAC
	OpLessthan           Opcode = 0xAD
	OpLessequals         Opcode = 0xAE
	OpGreaterthan        Opcode = 0xAF
	OpGreaterequals      Opcode = 0xB0
	OpInstanceof         Opcode = 0xB1
	OpIstype             Opcode = 0xB2
	OpIstypelate         Opcode = 0xB3
	OpIn                 Opcode = 0xB4
	OpIncrementI         Opcode = 0xC0
	OpDecrementI         Opcode = 0xC1
	OpInclocalI          Opcode = 0xC2
	OpDeclocalI          Opcode = 0xC3
	OpNegateI            Opcode = 0xC4
	OpAddI               Opcode = 0xC5
	OpSubtractI          Opcode = 0xC6
	OpMultiplyI          Opcode = 0xC7
	OpGetlocal0          Opcode = 0xD0
	OpGetlocal1          Opcode = 0xD1
	OpGetlocal2          Opcode = 0xD2
	OpGetlocal3          Opcode = 0xD3
	OpSetlocal0          Opcode = 0xD4
	OpSetlocal1          Opcode = 0xD5
	OpSetlocal2          Opcode = 0xD6
	OpSetlocal3          Opcode = 0xD7
	OpDebug              Opcode = 0xEF
	OpDebugline          Opcode = 0xF0
	OpDebugfile          Opcode = 0xF1
	OpBkptline           Opcode = 0xF2
	OpTimestamp          Opcode = 0xF3
)

// OperandForm describes the operand shape an opcode carries
type OperandForm int

const (
	FormNone       OperandForm = iota
	FormImmediate              // one u30 immediate
	FormImmediates             // two u30 immediates
	FormName                   // multiname
	FormNameCount              // multiname + argument count
	FormLabel                  // branch target
	FormSwitch                 // default target + case targets
	FormString                 // string constant
	FormInt                    // int constant
	FormUint                   // uint constant
	FormDouble                 // double constant
)

type opInfo struct {
	name string
	form OperandForm
}

var opTable = map[Opcode]opInfo{
	OpBkpt:               {"bkpt", FormNone},
	OpNop:                {"nop", FormNone},
	OpThrow:              {"throw", FormNone},
	OpGetsuper:           {"getsuper", FormName},
	OpSetsuper:           {"setsuper", FormName},
	OpDxns:               {"dxns", FormString},
	OpDxnslate:           {"dxnslate", FormNone},
	OpKill:               {"kill", FormImmediate},
	OpLabel:              {"label", FormNone},
	OpIfnlt:              {"ifnlt", FormLabel},
	OpIfnle:              {"ifnle", FormLabel},
	OpIfngt:              {"ifngt", FormLabel},
	OpIfnge:              {"ifnge", FormLabel},
	OpJump:               {"jump", FormLabel},
	OpIftrue:             {"iftrue", FormLabel},
	OpIffalse:            {"iffalse", FormLabel},
	OpIfeq:               {"ifeq", FormLabel},
	OpIfne:               {"ifne", FormLabel},
	OpIflt:               {"iflt", FormLabel},
	OpIfle:               {"ifle", FormLabel},
	OpIfgt:               {"ifgt", FormLabel},
	OpIfge:               {"ifge", FormLabel},
	OpIfstricteq:         {"ifstricteq", FormLabel},
	OpIfstrictne:         {"ifstrictne", FormLabel},
	OpLookupswitch:       {"lookupswitch", FormSwitch},
	OpPushwith:           {"pushwith", FormNone},
	OpPopscope:           {"popscope", FormNone},
	OpNextname:           {"nextname", FormNone},
	OpHasnext:            {"hasnext", FormNone},
	OpPushnull:           {"pushnull", FormNone},
	OpPushundefined:      {"pushundefined", FormNone},
	OpNextvalue:          {"nextvalue", FormNone},
	OpPushbyte:           {"pushbyte", FormImmediate},
	OpPushshort:          {"pushshort", FormImmediate},
	OpPushtrue:           {"pushtrue", FormNone},
	OpPushfalse:          {"pushfalse", FormNone},
	OpPushnan:            {"pushnan", FormNone},
	OpPop:                {"pop", FormNone},
	OpDup:                {"dup", FormNone},
	OpSwap:               {"swap", FormNone},
	OpPushstring:         {"pushstring", FormString},
	OpPushint:            {"pushint", FormInt},
	OpPushuint:           {"pushuint", FormUint},
	OpPushdouble:         {"pushdouble", FormDouble},
	OpPushscope:          {"pushscope", FormNone},
	OpPushnamespace:      {"pushnamespace", FormString},
	OpHasnext2:           {"hasnext2", FormImmediates},
	OpLi8:                {"li8", FormNone},
	OpLi16:               {"li16", FormNone},
	OpLi32:               {"li32", FormNone},
	OpLf32:               {"lf32", FormNone},
	OpLf64:               {"lf64", FormNone},
	OpSi8:                {"si8", FormNone},
	OpSi16:               {"si16", FormNone},
	OpSi32:               {"si32", FormNone},
	OpSf32:               {"sf32", FormNone},
	OpSf64:               {"sf64", FormNone},
	OpNewfunction:        {"newfunction", FormImmediate},
	OpCall:               {"call", FormImmediate},
	OpConstruct:          {"construct", FormImmediate},
	OpCallmethod:         {"callmethod", FormImmediates},
	OpCallstatic:         {"callstatic", FormImmediates},
	OpCallsuper:          {"callsuper", FormNameCount},
	OpCallproperty:       {"callproperty", FormNameCount},
	OpReturnvoid:         {"returnvoid", FormNone},
	OpReturnvalue:        {"returnvalue", FormNone},
	OpConstructsuper:     {"constructsuper", FormImmediate},
	OpConstructprop:      {"constructprop", FormNameCount},
	OpCallsuperid:        {"callsuperid", FormNone},
	OpCallproplex:        {"callproplex", FormNameCount},
	OpCallinterface:      {"callinterface", FormNone},
	OpCallsupervoid:      {"callsupervoid", FormNameCount},
	OpCallpropvoid:       {"callpropvoid", FormNameCount},
	OpSxi1:               {"sxi1", FormNone},
	OpSxi8:               {"sxi8", FormNone},
	OpSxi16:              {"sxi16", FormNone},
	OpApplytype:          {"applytype", FormImmediate},
	OpNewobject:          {"newobject", FormImmediate},
	OpNewarray:           {"newarray", FormImmediate},
	OpNewactivation:      {"newactivation", FormNone},
	OpNewclass:           {"newclass", FormImmediate},
	OpGetdescendants:     {"getdescendants", FormName},
	OpNewcatch:           {"newcatch", FormImmediate},
	OpFindpropstrict:     {"findpropstrict", FormName},
	OpFindproperty:       {"findproperty", FormName},
	OpFinddef:            {"finddef", FormName},
	OpGetlex:             {"getlex", FormName},
	OpSetproperty:        {"setproperty", FormName},
	OpGetlocal:           {"getlocal", FormImmediate},
	OpSetlocal:           {"setlocal", FormImmediate},
	OpGetglobalscope:     {"getglobalscope", FormNone},
	OpGetscopeobject:     {"getscopeobject", FormImmediate},
	OpGetproperty:        {"getproperty", FormName},
	OpGetouterscope:      {"getouterscope", FormImmediate},
	OpInitproperty:       {"initproperty", FormName},
	OpSetpropertylate:    {"setpropertylate", FormNone},
	OpDeleteproperty:     {"deleteproperty", FormName},
	OpDeletepropertylate: {"deletepropertylate", FormNone},
	OpGetslot:            {"getslot", FormImmediate},
	OpSetslot:            {"setslot", FormImmediate},
	OpGetglobalslot:      {"getglobalslot", FormImmediate},
	OpSetglobalslot:      {"setglobalslot", FormImmediate},
	OpConvertS:           {"convert_s", FormNone},
	OpEscXelem:           {"esc_xelem", FormNone},
	OpEscXattr:           {"esc_xattr", FormNone},
	OpConvertI:           {"convert_i", FormNone},
	OpConvertU:           {"convert_u", FormNone},
	OpConvertD:           {"convert_d", FormNone},
	OpConvertB:           {"convert_b", FormNone},
	OpConvertO:           {"convert_o", FormNone},
	OpCheckfilter:        {"checkfilter", FormNone},
	OpUnplus:             {"unplus", FormNone},
	OpCoerce:             {"coerce", FormName},
	OpCoerceB:            {"coerce_b", FormNone},
	OpCoerceA:            {"coerce_a", FormNone},
	OpCoerceI:            {"coerce_i", FormNone},
	OpCoerceD:            {"coerce_d", FormNone},
	OpCoerceS:            {"coerce_s", FormNone},
	OpAstype:             {"astype", FormName},
	OpAstypelate:         {"astypelate", FormNone},
	OpCoerceU:            {"coerce_u", FormNone},
	OpCoerceO:            {"coerce_o", FormNone},
	OpNegate:             {"negate", FormNone},
	OpIncrement:          {"increment", FormNone},
	OpInclocal:           {"inclocal", FormImmediate},
	OpDecrement:          {"decrement", FormNone},
	OpDeclocal:           {"declocal", FormImmediate},
	OpTypeof:             {"typeof", FormNone},
	OpNot:                {"not", FormNone},
	OpBitnot:             {"bitnot", FormNone},
	OpAddD:               {"add_d", FormNone},
	OpAdd:                {"add", FormNone},
	OpSubtract:           {"subtract", FormNone},
	OpMultiply:           {"multiply", FormNone},
	OpDivide:             {"divide", FormNone},
	OpModulo:             {"modulo", FormNone},
	OpLshift:             {"lshift", FormNone},
	OpRshift:             {"rshift", FormNone},
	OpUrshift:            {"urshift", FormNone},
	OpBitand:             {"bitand", FormNone},
	OpBitor:              {"bitor", FormNone},
	OpBitxor:             {"bitxor", FormNone},
	OpEquals:             {"equals", FormNone},
	OpStrictequals:       {"strictequals", FormNone},
	OpLessthan:           {"lessthan", FormNone},
	OpLessequals:         {"lessequals", FormNone},
	OpGreaterthan:        {"greaterthan", FormNone},
	OpGreaterequals:      {"greaterequals", FormNone},
	OpInstanceof:         {"instanceof", FormNone},
	OpIstype:             {"istype", FormName},
	OpIstypelate:         {"istypelate", FormNone},
	OpIn:                 {"in", FormNone},
	OpIncrementI:         {"increment_i", FormNone},
	OpDecrementI:         {"decrement_i", FormNone},
	OpInclocalI:          {"inclocal_i", FormImmediate},
	OpDeclocalI:          {"declocal_i", FormImmediate},
	OpNegateI:            {"negate_i", FormNone},
	OpAddI:               {"add_i", FormNone},
	OpSubtractI:          {"subtract_i", FormNone},
	OpMultiplyI:          {"multiply_i", FormNone},
	OpGetlocal0:          {"getlocal0", FormNone},
	OpGetlocal1:          {"getlocal1", FormNone},
	OpGetlocal2:          {"getlocal2", FormNone},
	OpGetlocal3:          {"getlocal3", FormNone},
	OpSetlocal0:          {"setlocal0", FormNone},
	OpSetlocal1:          {"setlocal1", FormNone},
	OpSetlocal2:          {"setlocal2", FormNone},
	OpSetlocal3:          {"setlocal3", FormNone},
	OpDebug:              {"debug", FormImmediates},
	OpDebugline:          {"debugline", FormImmediate},
	OpDebugfile:          {"debugfile", FormString},
	OpBkptline:           {"bkptline", FormImmediate},
	OpTimestamp:          {"timestamp", FormNone},
}

var opsByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opTable))
	for op, info := range opTable {
		m[info.name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("op_0x%02x", uint8(op))
}

// Valid reports whether op is a defined AVM2 opcode
func (op Opcode) Valid() bool {
	_, ok := opTable[op]
	return ok
}

// Form returns the operand shape op expects
func (op Opcode) Form() OperandForm {
	return opTable[op].form
}

// OpcodeByName looks up an opcode by its assembler mnemonic
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opsByName[name]
	return op, ok
}
