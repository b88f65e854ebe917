// Package method holds compiled method bodies: instructions, exception
// table and the flowgraph built from them.
package method

import (
	"github.com/GriffinCanCode/abcopt/pkg/abc"
	"github.com/GriffinCanCode/abcopt/pkg/flowgraph"
)

// MethodBody is one compiled method. The flowgraph is built on demand and
// owns the block structure until Relinearize folds it back into
// Instructions.
type MethodBody struct {
	Name         string
	Instructions *abc.InstructionList
	Exceptions   []*abc.ExceptionInfo

	graph *flowgraph.Graph
}

// New creates a method body
func New(name string, il *abc.InstructionList, exceptions []*abc.ExceptionInfo) *MethodBody {
	if il == nil {
		il = abc.NewInstructionList()
	}
	return &MethodBody{Name: name, Instructions: il, Exceptions: exceptions}
}

// Graph returns the method's flowgraph, building it on first use
func (mb *MethodBody) Graph() *flowgraph.Graph {
	if mb.graph == nil {
		mb.graph = flowgraph.Build(mb.Instructions, mb.Exceptions)
	}
	return mb.graph
}

// HasGraph reports whether a flowgraph is currently built
func (mb *MethodBody) HasGraph() bool { return mb.graph != nil }

// SetInstructions replaces the instruction list and drops any flowgraph
// built from the old one.
func (mb *MethodBody) SetInstructions(il *abc.InstructionList) {
	mb.Instructions = il
	mb.graph = nil
}

// Relinearize writes the flowgraph back into Instructions and drops
// exception entries whose protected range disappeared.
func (mb *MethodBody) Relinearize() {
	if mb.graph == nil {
		return
	}
	mb.Instructions = mb.graph.Linearize()
	mb.Exceptions = mb.LiveExceptions()
	mb.graph = nil
}

// LiveExceptions returns the exception entries that still protect code
func (mb *MethodBody) LiveExceptions() []*abc.ExceptionInfo {
	live := make([]*abc.ExceptionInfo, 0, len(mb.Exceptions))
	for _, ex := range mb.Exceptions {
		if ex.Live {
			live = append(live, ex)
		}
	}
	return live
}

// Validate checks the body is well formed
func (mb *MethodBody) Validate() error {
	return abc.NewValidator().Validate(mb.Instructions, mb.Exceptions)
}

// Program is an ordered set of method bodies
type Program struct {
	Methods []*MethodBody
}

// Method returns the method with the given name, or nil
func (p *Program) Method(name string) *MethodBody {
	for _, mb := range p.Methods {
		if mb.Name == name {
			return mb
		}
	}
	return nil
}

// InstructionCount returns the total number of instructions in the program
func (p *Program) InstructionCount() int {
	n := 0
	for _, mb := range p.Methods {
		n += mb.Instructions.Len()
	}
	return n
}
