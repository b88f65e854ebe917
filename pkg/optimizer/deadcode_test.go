package optimizer_test

import (
	"path/filepath"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
	"github.com/GriffinCanCode/abcopt/pkg/diagnostics"
	"github.com/GriffinCanCode/abcopt/pkg/method"
	"github.com/GriffinCanCode/abcopt/pkg/optimizer"
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

var _ = Describe("EliminateUnreachableBlocks", func() {
	var (
		mockCtrl *gomock.Controller
		sink     *MockSink
		reported []diagnostics.Diagnostic
	)

	record := func(d diagnostics.Diagnostic) { reported = append(reported, d) }

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sink = NewMockSink(mockCtrl)
		reported = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("with consecutive unreachable blocks", func() {
		var mb *method.MethodBody

		BeforeEach(func() {
			live := abc.NewLabel("live")
			mb = method.New("run", listOf(
				abc.New(abc.OpGetlocal0),
				abc.New(abc.OpPushscope),
				abc.NewOperands(abc.OpJump, live),
				abc.NewLabel("dead1"),
				abc.NewOperands(abc.OpPushstring, "a"),
				abc.New(abc.OpPop),
				abc.New(abc.OpReturnvoid),
				abc.NewLabel("dead2"),
				abc.NewOperands(abc.OpPushstring, "b"),
				abc.New(abc.OpPop),
				abc.New(abc.OpReturnvoid),
				abc.NewLabel("dead3"),
				abc.NewOperands(abc.OpPushstring, "c"),
				abc.New(abc.OpThrow),
				live,
				abc.New(abc.OpReturnvoid),
			), nil)
		})

		It("should report the run once", func() {
			sink.EXPECT().Report(gomock.Any()).Do(record).Times(1)

			r := optimizer.EliminateUnreachableBlocks(mb, sink)

			Expect(r.Removed).To(Equal(3))
			Expect(r.Reported).To(Equal(1))
			Expect(reported[0].Kind).To(Equal(diagnostics.UnreachableBlock))
			Expect(reported[0].Method).To(Equal("run"))
			Expect(reported[0].Block).To(Equal(1))
		})

		It("should leave only reachable code", func() {
			sink.EXPECT().Report(gomock.Any()).AnyTimes()

			optimizer.EliminateUnreachableBlocks(mb, sink)
			mb.Relinearize()

			Expect(opcodes(mb.Instructions)).To(Equal([]abc.Opcode{
				abc.OpGetlocal0, abc.OpPushscope, abc.OpJump, abc.OpReturnvoid,
			}))
		})

		It("should find nothing on a second run", func() {
			sink.EXPECT().Report(gomock.Any()).Times(1)
			optimizer.EliminateUnreachableBlocks(mb, sink)
			mb.Relinearize()

			r := optimizer.EliminateUnreachableBlocks(mb, sink)
			Expect(r.Changed()).To(BeFalse())
			Expect(r.Reported).To(BeZero())
		})
	})

	It("should report each run separated by live code", func() {
		mid := abc.NewLabel("mid")
		end := abc.NewLabel("end")
		mb := method.New("twice", listOf(
			abc.New(abc.OpGetlocal0),
			abc.New(abc.OpPushscope),
			abc.NewOperands(abc.OpJump, mid),
			abc.NewLabel("dead1"),
			abc.New(abc.OpPushnull),
			abc.New(abc.OpPop),
			abc.NewOperands(abc.OpJump, mid),
			mid,
			abc.New(abc.OpGetlocal0),
			abc.New(abc.OpPop),
			abc.NewOperands(abc.OpJump, end),
			abc.NewLabel("dead2"),
			abc.New(abc.OpPushnull),
			abc.New(abc.OpThrow),
			end,
			abc.New(abc.OpReturnvoid),
		), nil)
		sink.EXPECT().Report(gomock.Any()).Do(record).Times(2)

		r := optimizer.EliminateUnreachableBlocks(mb, sink)

		Expect(r.Removed).To(Equal(2))
		Expect(reported[0].Block).To(Equal(1))
		Expect(reported[1].Block).To(Equal(3))
	})

	It("should not report blocks without real code", func() {
		done := abc.NewLabel("done")
		mb := method.New("quiet", listOf(
			abc.NewOperands(abc.OpJump, done),
			abc.NewLabel("dead"),
			abc.New(abc.OpNop),
			abc.NewImmediate(abc.OpDebugline, 3),
			done,
			abc.New(abc.OpReturnvoid),
		), nil)

		r := optimizer.EliminateUnreachableBlocks(mb, sink)

		Expect(r.Removed).To(Equal(1))
		Expect(r.Reported).To(BeZero())
	})

	It("should locate the report with debug information", func() {
		done := abc.NewLabel("done")
		mb := method.New("located", listOf(
			abc.NewOperands(abc.OpDebugfile, "src;game;Main.as"),
			abc.NewImmediate(abc.OpDebugline, 10),
			abc.NewOperands(abc.OpJump, done),
			abc.NewImmediate(abc.OpDebugline, 12),
			abc.New(abc.OpPushnull),
			abc.New(abc.OpThrow),
			done,
			abc.New(abc.OpReturnvoid),
		), nil)
		sink.EXPECT().Report(gomock.Any()).Do(record)

		optimizer.EliminateUnreachableBlocks(mb, sink)

		Expect(reported).To(HaveLen(1))
		Expect(reported[0].SourcePath).To(Equal(filepath.Join("src", "game", "Main.as")))
		Expect(reported[0].Line).To(Equal(12))
	})

	Context("with an exception range", func() {
		var (
			from, to, handler, after *abc.Label
			ex                       *abc.ExceptionInfo
		)

		BeforeEach(func() {
			from = abc.NewLabel("from")
			to = abc.NewLabel("to")
			handler = abc.NewLabel("handler")
			after = abc.NewLabel("after")
			ex = abc.NewExceptionInfo(from, to, handler, "Error", "e")
		})

		It("should compact a range end that protects live code", func() {
			mb := method.New("guarded", listOf(
				abc.New(abc.OpGetlocal0),
				abc.New(abc.OpPushscope),
				from,
				abc.New(abc.OpGetlocal1),
				abc.New(abc.OpPop),
				abc.NewOperands(abc.OpJump, after),
				to,
				abc.New(abc.OpPushnull),
				abc.New(abc.OpThrow),
				handler,
				abc.New(abc.OpPop),
				after,
				abc.New(abc.OpReturnvoid),
			), []*abc.ExceptionInfo{ex})

			r := optimizer.EliminateUnreachableBlocks(mb, sink)

			Expect(r.Removed).To(BeZero())
			Expect(r.Compacted).To(Equal(1))
			Expect(r.Reported).To(BeZero())

			g := mb.Graph()
			end := g.BlockFor(to)
			Expect(end).NotTo(BeNil())
			Expect(end.Removed()).To(BeFalse())
			Expect(end.Len()).To(Equal(1))
			Expect(end.At(0).Opcode()).To(Equal(abc.OpNop))
			Expect(g.IsReachable(g.BlockFor(handler))).To(BeTrue())
			Expect(ex.Live).To(BeTrue())
		})

		It("should leave a compacted body alone on a second run", func() {
			mb := method.New("guarded", listOf(
				from,
				abc.New(abc.OpGetlocal1),
				abc.NewOperands(abc.OpJump, after),
				to,
				abc.New(abc.OpPushnull),
				abc.New(abc.OpThrow),
				handler,
				abc.New(abc.OpPop),
				after,
				abc.New(abc.OpReturnvoid),
			), []*abc.ExceptionInfo{ex})

			first := optimizer.EliminateUnreachableBlocks(mb, sink)
			Expect(first.Changed()).To(BeTrue())
			mb.Relinearize()

			second := optimizer.EliminateUnreachableBlocks(mb, sink)
			Expect(second.Changed()).To(BeFalse())
			Expect(mb.Exceptions).To(ConsistOf(ex))
		})

		It("should drop a handler whose range is entirely dead", func() {
			mb := method.New("orphan", listOf(
				abc.New(abc.OpGetlocal0),
				abc.New(abc.OpPushscope),
				abc.New(abc.OpReturnvoid),
				from,
				abc.New(abc.OpPushnull),
				abc.New(abc.OpThrow),
				to,
				abc.NewOperands(abc.OpJump, after),
				handler,
				abc.New(abc.OpPop),
				after,
				abc.New(abc.OpReturnvoid),
			), []*abc.ExceptionInfo{ex})
			sink.EXPECT().Report(gomock.Any()).Do(record).Times(2)

			r := optimizer.EliminateUnreachableBlocks(mb, sink)

			Expect(r.DeadHandlers).To(Equal(1))
			Expect(r.Removed).To(Equal(4))
			Expect(r.Reported).To(Equal(1))
			Expect(ex.Live).To(BeFalse())

			kinds := []diagnostics.Kind{reported[0].Kind, reported[1].Kind}
			Expect(kinds).To(ConsistOf(diagnostics.UnreachableBlock, diagnostics.DeadHandler))

			mb.Relinearize()
			Expect(mb.Exceptions).To(BeEmpty())
			Expect(opcodes(mb.Instructions)).To(Equal([]abc.Opcode{
				abc.OpGetlocal0, abc.OpPushscope, abc.OpReturnvoid,
			}))
		})
	})
})
