// Package optimizer - Peephole rewriting of instruction streams
// Recognizes and optimizes common instruction patterns in a small window
package optimizer

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
	"github.com/GriffinCanCode/abcopt/pkg/logger"
)

// Rule names, used as keys of RuleCounts
const (
	RuleRedundantConvert = "redundant-convert"
	RulePushDouble       = "push-double"
	RuleGetlex           = "getlex"
	RuleFusedBranch      = "fused-branch"
	RuleConstantBranch   = "constant-branch"
	RuleVoidCall         = "void-call"
	RuleReturn           = "return"
	RuleNop              = "nop"
	RuleLocalRoundTrip   = "local-round-trip"
	RuleInvertBranch     = "invert-branch"
	RuleJumpToNext       = "jump-to-next"
)

// RuleCounts counts rewrites by rule name
type RuleCounts map[string]int

// Total returns the number of rewrites across all rules
func (rc RuleCounts) Total() int {
	n := 0
	for _, c := range rc {
		n += c
	}
	return n
}

func (rc RuleCounts) merge(other RuleCounts) {
	for k, v := range other {
		rc[k] += v
	}
}

// Producers whose result already has the type a conversion would produce
var (
	booleanProducers = mapset.NewThreadUnsafeSet(
		abc.OpEquals, abc.OpStrictequals, abc.OpNot,
		abc.OpGreaterthan, abc.OpLessthan, abc.OpGreaterequals, abc.OpLessequals,
		abc.OpIstype, abc.OpIstypelate, abc.OpInstanceof,
		abc.OpDeleteproperty, abc.OpIn, abc.OpConvertB,
		abc.OpPushtrue, abc.OpPushfalse,
	)
	doubleProducers = mapset.NewThreadUnsafeSet(
		abc.OpPushdouble, abc.OpPushnan, abc.OpLf32, abc.OpLf64, abc.OpConvertD,
	)
	intProducers = mapset.NewThreadUnsafeSet(
		abc.OpConvertI, abc.OpCoerceI,
		abc.OpBitand, abc.OpBitor, abc.OpBitxor, abc.OpLshift, abc.OpRshift,
		abc.OpAddI, abc.OpSubtractI, abc.OpIncrementI, abc.OpDecrementI, abc.OpMultiplyI,
		abc.OpPushbyte, abc.OpPushshort, abc.OpPushint,
		abc.OpLi8, abc.OpLi16, abc.OpLi32,
		abc.OpSxi1, abc.OpSxi8, abc.OpSxi16,
	)
	uintProducers = mapset.NewThreadUnsafeSet(
		abc.OpConvertU, abc.OpPushuint,
	)
	stringProducers = mapset.NewThreadUnsafeSet(
		abc.OpCoerceS, abc.OpConvertS, abc.OpPushstring, abc.OpTypeof,
	)
)

// Fused branch taken when the comparison is false / true
var (
	branchIfFalse = map[abc.Opcode]abc.Opcode{
		abc.OpEquals:        abc.OpIfne,
		abc.OpStrictequals:  abc.OpIfstrictne,
		abc.OpLessthan:      abc.OpIfnlt,
		abc.OpLessequals:    abc.OpIfnle,
		abc.OpGreaterthan:   abc.OpIfngt,
		abc.OpGreaterequals: abc.OpIfnge,
	}
	branchIfTrue = map[abc.Opcode]abc.Opcode{
		abc.OpEquals:        abc.OpIfeq,
		abc.OpStrictequals:  abc.OpIfstricteq,
		abc.OpLessthan:      abc.OpIflt,
		abc.OpLessequals:    abc.OpIfle,
		abc.OpGreaterthan:   abc.OpIfgt,
		abc.OpGreaterequals: abc.OpIfge,
	}
)

// invertedBranch maps every conditional branch to its negation
var invertedBranch = map[abc.Opcode]abc.Opcode{
	abc.OpIfeq:       abc.OpIfne,
	abc.OpIfne:       abc.OpIfeq,
	abc.OpIfstricteq: abc.OpIfstrictne,
	abc.OpIfstrictne: abc.OpIfstricteq,
	abc.OpIfge:       abc.OpIfnge,
	abc.OpIfnge:      abc.OpIfge,
	abc.OpIfgt:       abc.OpIfngt,
	abc.OpIfngt:      abc.OpIfgt,
	abc.OpIflt:       abc.OpIfnlt,
	abc.OpIfnlt:      abc.OpIflt,
	abc.OpIfle:       abc.OpIfnle,
	abc.OpIfnle:      abc.OpIfle,
	abc.OpIftrue:     abc.OpIffalse,
	abc.OpIffalse:    abc.OpIftrue,
}

// localPairs maps each setlocal form to the getlocal that reloads it
var localPairs = map[abc.Opcode]abc.Opcode{
	abc.OpSetlocal:  abc.OpGetlocal,
	abc.OpSetlocal0: abc.OpGetlocal0,
	abc.OpSetlocal1: abc.OpGetlocal1,
	abc.OpSetlocal2: abc.OpGetlocal2,
	abc.OpSetlocal3: abc.OpGetlocal3,
}

type bindKind int

const (
	bindCurrent bindKind = iota
	bindNext
)

// Peephole rewrites an instruction stream through a small window and
// forwards the result to the next visitor. Rules only run on an
// instruction once the following event shows that nothing jumps into the
// middle of the pattern.
type Peephole struct {
	next   abc.Visitor
	window window

	// lastLabel is the window index of the most recent label binding
	// point, or noLabel. Rules never look at entries before it.
	lastLabel int

	// pending holds labels of deleted instructions; they bind to the
	// next instruction added.
	pending []*abc.Label

	counts RuleCounts
}

// NewPeephole creates a rewriter that forwards to next
func NewPeephole(next abc.Visitor) *Peephole {
	return &Peephole{
		next:      next,
		lastLabel: noLabel,
		counts:    make(RuleCounts),
	}
}

// PeepholeList rewrites an instruction list into a fresh one
func PeepholeList(il *abc.InstructionList) (*abc.InstructionList, RuleCounts) {
	out := abc.NewInstructionList()
	p := NewPeephole(out)
	abc.Replay(il, p)
	return out, p.Counts()
}

// Counts returns the rewrites applied so far
func (p *Peephole) Counts() RuleCounts {
	out := make(RuleCounts, len(p.counts))
	out.merge(p.counts)
	return out
}

// VisitInstruction runs the rules on the instructions already in the
// window, then adds insn.
func (p *Peephole) VisitInstruction(insn *abc.Instruction) {
	p.processPrevious()
	p.addInstruction(insn)
}

func (p *Peephole) VisitEnd() {
	p.flush()
	p.next.VisitEnd()
}

func (p *Peephole) LabelCurrent(l *abc.Label) {
	p.jumpOptimizations(l, bindCurrent)

	if p.window.len() == 0 {
		p.pending = append(p.pending, l)
		return
	}
	idx := p.window.len() - 1
	e := p.window.at(idx)
	e.currents = append(e.currents, l)
	p.lastLabel = idx
}

func (p *Peephole) LabelNext(l *abc.Label) {
	p.jumpOptimizations(l, bindNext)

	if p.window.len() == 0 {
		p.pending = append(p.pending, l)
		return
	}
	idx := p.window.len() - 1
	e := p.window.at(idx)
	e.nexts = append(e.nexts, l)
	p.lastLabel = idx + 1
}

func (p *Peephole) flush() {
	p.processPrevious()

	for p.window.len() > 0 {
		p.finish(p.window.popFront())
	}
	for _, l := range p.pending {
		p.next.LabelNext(l)
	}
	p.pending = nil
	p.lastLabel = noLabel
	p.window.reset()
}

func (p *Peephole) addInstruction(insn *abc.Instruction) {
	if p.window.full() {
		p.finish(p.window.popFront())
		if p.lastLabel != noLabel {
			p.lastLabel--
		}
	}
	p.window.push(insn)

	if len(p.pending) > 0 {
		labels := p.pending
		p.pending = nil
		for _, l := range labels {
			p.LabelCurrent(l)
		}
	}
}

func (p *Peephole) finish(e entry) {
	p.next.VisitInstruction(e.insn)
	for _, l := range e.currents {
		p.next.LabelCurrent(l)
	}
	for _, l := range e.nexts {
		p.next.LabelNext(l)
	}
}

// previous returns the i'th most recent instruction; 0 is the last one
// added. Lookups past the window or behind a label return noInstruction.
func (p *Peephole) previous(i int) *entry {
	idx := p.window.len() - (i + 1)
	if idx < 0 || p.beforeLabel(idx) {
		return noInstruction
	}
	return p.window.at(idx)
}

// beforeLabel reports whether window index idx lies before the most recent
// label. After a LabelNext on a full window the label has not entered
// the window yet, so lookback stays open until the next instruction.
func (p *Peephole) beforeLabel(idx int) bool {
	return p.lastLabel != noLabel &&
		p.lastLabel < windowSize &&
		idx < p.lastLabel
}

func (p *Peephole) checkRange(op string, i int) int {
	idx := p.window.len() - (i + 1)
	if idx < 0 {
		panic("peephole: " + op + " outside the window")
	}
	if p.beforeLabel(idx) {
		panic("peephole: " + op + " spans a label")
	}
	return idx
}

// replace replaces previous(i) through previous(0) with insns. Labels bound
// to the removed entries move to the replacement: currents to the first
// instruction, nexts to the last.
func (p *Peephole) replace(i int, insns ...*abc.Instruction) {
	if len(insns) == 0 {
		return
	}
	idx := p.checkRange("replace", i)

	first := p.window.at(idx)
	first.insn = insns[0]

	removed := make([]entry, 0, windowSize)
	for p.window.len() > idx+1 {
		removed = append(removed, p.window.popBack())
	}
	var nexts []*abc.Label
	for k := len(removed) - 1; k >= 0; k-- {
		first.currents = append(first.currents, removed[k].currents...)
		nexts = append(nexts, removed[k].nexts...)
	}

	for _, insn := range insns[1:] {
		p.addInstruction(insn)
	}
	for _, l := range nexts {
		p.LabelNext(l)
	}
}

// delete removes previous(i) through previous(0). Their labels bind to
// whatever instruction is added next.
func (p *Peephole) delete(i int) {
	idx := p.checkRange("delete", i)

	removed := make([]entry, 0, windowSize)
	for p.window.len() > idx {
		removed = append(removed, p.window.popBack())
	}
	for k := len(removed) - 1; k >= 0; k-- {
		p.pending = append(p.pending, removed[k].currents...)
		p.pending = append(p.pending, removed[k].nexts...)
	}
}

func (p *Peephole) count(rule string, detail string) {
	p.counts[rule]++
	logger.LogRewrite(rule, detail)
}

// processPrevious applies the rules to the most recent instruction, unless
// a label lands on it.
func (p *Peephole) processPrevious() {
	last := p.previous(0)
	secondLast := p.previous(1)

	if len(last.currents) > 0 || len(secondLast.nexts) > 0 {
		return
	}

	switch last.opcode() {
	case abc.OpConvertB:
		p.redundantConvert(booleanProducers)
	case abc.OpConvertD:
		p.opConvertD()
	case abc.OpConvertI:
		p.redundantConvert(intProducers)
	case abc.OpConvertU:
		p.redundantConvert(uintProducers)
	case abc.OpConvertS:
		p.redundantConvert(stringProducers)
	case abc.OpGetproperty:
		p.opGetproperty(last)
	case abc.OpIffalse:
		p.opConditional(last, false)
	case abc.OpIftrue:
		p.opConditional(last, true)
	case abc.OpPop:
		p.opPop()
	case abc.OpNop:
		p.delete(0)
		p.count(RuleNop, "nop")
	case abc.OpGetlocal, abc.OpGetlocal0, abc.OpGetlocal1, abc.OpGetlocal2, abc.OpGetlocal3:
		p.opGetlocal(last)
	case abc.OpReturnvoid:
		p.opReturnvoid(last)
	}
}

// redundantConvert drops a conversion whose operand already has the
// target type.
func (p *Peephole) redundantConvert(producers mapset.Set[abc.Opcode]) {
	prev := p.previous(1)
	if producers.Contains(prev.opcode()) {
		conv := p.previous(0).opcode()
		p.delete(0)
		p.count(RuleRedundantConvert, prev.opcode().String()+", "+conv.String())
	}
}

// opConvertD folds integer pushes into pushdouble
func (p *Peephole) opConvertD() {
	prev := p.previous(1)
	var value float64
	switch prev.opcode() {
	case abc.OpPushbyte:
		value = abc.ByteToDouble(prev.insn.Immediate())
	case abc.OpPushint:
		v, ok := prev.operand(0).(int32)
		if !ok {
			return
		}
		value = float64(v)
	case abc.OpPushuint:
		v, ok := prev.operand(0).(uint32)
		if !ok {
			return
		}
		value = float64(v)
	default:
		p.redundantConvert(doubleProducers)
		return
	}

	detail := prev.insn.String()
	p.replace(1, abc.NewOperands(abc.OpPushdouble, value))
	p.count(RulePushDouble, detail)
}

// opGetproperty fuses findpropstrict x; getproperty x into getlex x.
// Anything in between (a runtime multiname) defeats the match.
func (p *Peephole) opGetproperty(last *entry) {
	prev := p.previous(1)
	if prev.opcode() != abc.OpFindpropstrict {
		return
	}
	if last.operand(0) != prev.operand(0) {
		return
	}
	find := prev.insn
	p.replace(1, abc.Modified(abc.OpGetlex, find))
	p.count(RuleGetlex, find.String())
}

type constBool int

const (
	unknownBool constBool = iota
	constTrue
	constFalse
)

// constantCondition evaluates the value a constant push leaves on the
// stack. pushnull only ever folds here, as a condition.
func constantCondition(e *entry) constBool {
	var v any
	switch e.opcode() {
	case abc.OpPushtrue:
		return constTrue
	case abc.OpPushfalse, abc.OpPushnull:
		return constFalse
	case abc.OpPushbyte:
		v = abc.ByteToDouble(e.insn.Immediate())
	case abc.OpPushint, abc.OpPushuint, abc.OpPushstring:
		v = e.operand(0)
	default:
		return unknownBool
	}
	if abc.ToBoolean(v) {
		return constTrue
	}
	return constFalse
}

// opConditional handles iftrue (jumpIf true) and iffalse (jumpIf false)
func (p *Peephole) opConditional(last *entry, jumpIf bool) {
	branch := last.insn
	prev := p.previous(1)

	switch constantCondition(prev) {
	case constTrue, constFalse:
		detail := prev.insn.String() + ", " + branch.String()
		if (constantCondition(prev) == constTrue) == jumpIf {
			p.replace(1, abc.Modified(abc.OpJump, branch))
		} else {
			p.delete(1)
		}
		p.count(RuleConstantBranch, detail)
		return
	}

	fused, inverted := branchIfTrue, branchIfFalse
	if !jumpIf {
		fused, inverted = branchIfFalse, branchIfTrue
	}

	switch op := prev.opcode(); {
	case op == abc.OpConvertB:
		p.replace(1, branch)
		p.count(RuleRedundantConvert, "convert_b, "+branch.String())
	case fused[op] != abc.OpNone:
		p.replace(1, abc.Modified(fused[op], branch))
		p.count(RuleFusedBranch, op.String()+", "+branch.String())
	case op == abc.OpNot:
		cmp := p.previous(2).opcode()
		if target, ok := inverted[cmp]; ok {
			p.replace(2, abc.Modified(target, branch))
			p.count(RuleFusedBranch, cmp.String()+", not, "+branch.String())
			return
		}
		p.replace(1, abc.Modified(invertedBranch[branch.Opcode()], branch))
		p.count(RuleFusedBranch, "not, "+branch.String())
	}
}

// opPop turns a call whose result is popped into its void form
func (p *Peephole) opPop() {
	prev := p.previous(1)
	var void abc.Opcode
	switch prev.opcode() {
	case abc.OpCallproperty:
		void = abc.OpCallpropvoid
	case abc.OpCallsuper:
		void = abc.OpCallsupervoid
	default:
		return
	}
	call := prev.insn
	p.replace(1, abc.Modified(void, call))
	p.count(RuleVoidCall, call.String())
}

// opReturnvoid drops work made dead by returnvoid
func (p *Peephole) opReturnvoid(last *entry) {
	ret := last.insn
	prev := p.previous(1)
	switch prev.opcode() {
	case abc.OpReturnvoid:
		p.delete(0)
		p.count(RuleReturn, "returnvoid, returnvoid")
	case abc.OpPop:
		p.replace(1, ret)
		p.count(RuleReturn, "pop, returnvoid")
	case abc.OpPushscope:
		// getlocal0; pushscope; returnvoid is an empty function
		if p.previous(2).opcode() == abc.OpGetlocal0 {
			p.replace(2, ret)
			p.count(RuleReturn, "getlocal0, pushscope, returnvoid")
		}
	}
}

// opGetlocal rewrites setlocal N; getlocal N into dup; setlocal N
func (p *Peephole) opGetlocal(last *entry) {
	prev := p.previous(1)
	get, ok := localPairs[prev.opcode()]
	if !ok || get != last.opcode() {
		return
	}
	if last.insn.Immediate() != prev.insn.Immediate() {
		return
	}
	set := prev.insn
	p.replace(1, abc.New(abc.OpDup), set)
	p.count(RuleLocalRoundTrip, set.String())
}

// jumpOptimizations runs when label l is bound. For LabelCurrent the
// instruction l binds to is already in the window, so the jump sits one
// further back.
//
//	iffalse L1; jump L2; L1:  ->  iftrue L2; L1:
//	jump L1; L1:              ->  L1:
func (p *Peephole) jumpOptimizations(l *abc.Label, kind bindKind) {
	idx := 0
	if kind == bindCurrent {
		idx = 1
	}

	prev := p.previous(idx)
	if prev.opcode() != abc.OpJump {
		return
	}

	prev2 := p.previous(idx + 1)
	if prev2.insn != nil && prev2.insn.IsBranch() && prev2.insn.Target() == l {
		inv, ok := invertedBranch[prev2.opcode()]
		if !ok {
			return
		}
		newIf := abc.Modified(inv, prev.insn)
		detail := prev2.insn.String() + ", " + prev.insn.String()
		if kind == bindCurrent {
			p.replace(idx+1, newIf, p.previous(0).insn)
		} else {
			p.replace(idx+1, newIf)
		}
		p.count(RuleInvertBranch, detail)
		return
	}

	if prev.operand(0) == l {
		if kind == bindNext {
			p.delete(idx)
		} else {
			p.replace(idx, p.previous(0).insn)
		}
		p.count(RuleJumpToNext, l.String())
	}
}
