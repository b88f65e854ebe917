package flowgraph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
	"github.com/GriffinCanCode/abcopt/pkg/flowgraph"
)

// listOf builds an instruction list; *abc.Label elements bind to the
// instruction that follows them.
func listOf(items ...any) *abc.InstructionList {
	il := abc.NewInstructionList()
	for _, item := range items {
		switch v := item.(type) {
		case *abc.Instruction:
			il.VisitInstruction(v)
		case *abc.Label:
			il.LabelNext(v)
		}
	}
	il.VisitEnd()
	return il
}

func opcodes(il *abc.InstructionList) []abc.Opcode {
	out := make([]abc.Opcode, il.Len())
	for i := range out {
		out[i] = il.At(i).Opcode()
	}
	return out
}

var _ = Describe("Graph", func() {
	var (
		skip, dead, tail *abc.Label
		il               *abc.InstructionList
		g                *flowgraph.Graph
	)

	BeforeEach(func() {
		skip = abc.NewLabel("skip")
		dead = abc.NewLabel("dead")
		tail = abc.NewLabel("tail")
		il = listOf(
			abc.New(abc.OpGetlocal0),
			abc.New(abc.OpPushscope),
			abc.NewOperands(abc.OpJump, skip),
			dead,
			abc.NewOperands(abc.OpPushstring, "never"),
			abc.New(abc.OpPop),
			skip,
			abc.NewOperands(abc.OpPushtrue),
			abc.NewOperands(abc.OpIftrue, tail),
			abc.New(abc.OpNop),
			tail,
			abc.New(abc.OpReturnvoid),
		)
		g = flowgraph.Build(il, nil)
	})

	It("should split blocks at labels and transfers of control", func() {
		Expect(g.Len()).To(Equal(5))
		Expect(g.BlockAt(0).Len()).To(Equal(3))
		Expect(g.BlockFor(dead)).To(BeIdenticalTo(g.BlockAt(1)))
		Expect(g.BlockFor(skip)).To(BeIdenticalTo(g.BlockAt(2)))
		Expect(g.BlockFor(tail)).To(BeIdenticalTo(g.BlockAt(4)))
	})

	It("should link branch and fall-through edges", func() {
		start := g.BlockAt(0)
		Expect(start.Successors()).To(ConsistOf(g.BlockAt(2).ID))

		cond := g.BlockAt(2)
		Expect(cond.Successors()).To(ConsistOf(g.BlockAt(3).ID, g.BlockAt(4).ID))
		Expect(g.BlockAt(4).Predecessors()).To(ConsistOf(g.BlockAt(2).ID, g.BlockAt(3).ID))
	})

	It("should compute reachability from the start block", func() {
		Expect(g.IsReachable(g.BlockAt(0))).To(BeTrue())
		Expect(g.IsReachable(g.BlockAt(1))).To(BeFalse())
		Expect(g.IsReachable(g.BlockAt(2))).To(BeTrue())
		Expect(g.IsReachable(g.BlockAt(4))).To(BeTrue())
	})

	It("should splice out an unreachable block and re-home its labels", func() {
		b := g.BlockAt(1)
		g.RemoveUnreachableBlock(b)

		Expect(b.Removed()).To(BeTrue())
		Expect(g.Len()).To(Equal(4))
		Expect(g.IndexOf(b)).To(Equal(-1))
		Expect(g.BlockFor(dead)).To(BeIdenticalTo(g.BlockFor(skip)))

		out := g.Linearize()
		Expect(opcodes(out)).To(Equal([]abc.Opcode{
			abc.OpGetlocal0, abc.OpPushscope, abc.OpJump,
			abc.OpPushtrue, abc.OpIftrue, abc.OpNop, abc.OpReturnvoid,
		}))
		pos, ok := out.Position(skip)
		Expect(ok).To(BeTrue())
		Expect(pos).To(Equal(3))
	})

	It("should refuse to remove a reachable block", func() {
		Expect(func() { g.RemoveUnreachableBlock(g.BlockAt(0)) }).To(Panic())
	})

	It("should compact an unreachable block to a single nop", func() {
		b := g.BlockAt(1)
		Expect(b.HasRealCode()).To(BeTrue())
		Expect(g.Compact(b)).To(BeTrue())
		Expect(b.Instructions()).To(HaveLen(1))
		Expect(b.At(0).Opcode()).To(Equal(abc.OpNop))
		Expect(b.HasRealCode()).To(BeFalse())

		Expect(g.Compact(b)).To(BeFalse())
	})

	It("should round-trip through Linearize", func() {
		out := g.Linearize()
		Expect(out.Instructions()).To(Equal(il.Instructions()))
		for _, l := range []*abc.Label{skip, dead, tail} {
			want, _ := il.Position(l)
			got, _ := out.Position(l)
			Expect(got).To(Equal(want), l.Name())
		}
	})
})

var _ = Describe("Exception handlers", func() {
	var (
		from, to, handler, after *abc.Label
		ex                       *abc.ExceptionInfo
		g                        *flowgraph.Graph
	)

	build := func(tryBody ...any) {
		items := []any{
			abc.New(abc.OpGetlocal0),
			abc.New(abc.OpPushscope),
			abc.New(abc.OpReturnvoid),
			from,
		}
		items = append(items, tryBody...)
		items = append(items,
			to,
			abc.NewOperands(abc.OpJump, after),
			handler,
			abc.New(abc.OpPop),
			after,
			abc.New(abc.OpReturnvoid),
		)
		ex = abc.NewExceptionInfo(from, to, handler, "Error", "e")
		g = flowgraph.Build(listOf(items...), []*abc.ExceptionInfo{ex})
	}

	BeforeEach(func() {
		from = abc.NewLabel("from")
		to = abc.NewLabel("to")
		handler = abc.NewLabel("handler")
		after = abc.NewLabel("after")
	})

	It("should treat handlers as reachability roots", func() {
		build(abc.NewOperands(abc.OpPushstring, "x"), abc.New(abc.OpThrow))
		h := g.BlockFor(handler)
		Expect(g.IsCatchTarget(h)).To(BeTrue())
		Expect(g.IsReachable(h)).To(BeTrue())
		Expect(g.IsReachable(g.BlockFor(after))).To(BeTrue())
		Expect(g.IsReachable(g.BlockFor(from))).To(BeFalse())
	})

	It("should move the range start forward when its first block goes", func() {
		build(abc.NewOperands(abc.OpPushstring, "x"), abc.New(abc.OpThrow))
		first := g.BlockFor(from)
		next := g.BlockAt(g.IndexOf(first) + 1)

		g.RemoveUnreachableBlock(first)
		Expect(g.BlockFor(from)).To(BeIdenticalTo(next))
		Expect(g.BlockFor(to)).To(BeIdenticalTo(next))
		Expect(ex.Live).To(BeTrue())

		g.RemoveUnreachableBlock(next)
		Expect(ex.Live).To(BeFalse())
		Expect(g.IsCatchTarget(g.BlockFor(handler))).To(BeFalse())
		Expect(g.IsReachable(g.BlockFor(handler))).To(BeFalse())
	})

	It("should find source positions from debug markers", func() {
		build(
			abc.NewOperands(abc.OpDebugfile, "src;com/example;Main.as"),
			abc.NewImmediate(abc.OpDebugline, 12),
			abc.New(abc.OpThrow),
		)
		// the range label skips the markers and lands on the throw, so
		// the markers end up in a block of their own
		b := g.BlockFor(from)
		markers := g.BlockAt(g.IndexOf(b) - 1)
		Expect(markers.HasRealCode()).To(BeFalse())
		Expect(g.FindLineNumber(markers)).To(Equal(12))

		Expect(g.FindLineNumber(b)).To(Equal(13))
		Expect(g.FindSourcePath(b)).To(HaveSuffix("Main.as"))
		Expect(g.FindSourcePath(b)).NotTo(ContainSubstring(";"))

		Expect(g.FindLineNumber(g.BlockFor(to))).To(Equal(13))
		Expect(g.FindLineNumber(g.Start())).To(Equal(-1))
		Expect(g.FindSourcePath(g.Start())).To(BeEmpty())
	})
})
