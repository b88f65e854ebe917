package abc

import (
	"fmt"
	"sync/atomic"
)

var labelSeq atomic.Int64

// Label is an abstract jump target. Labels carry no position of their own:
// an InstructionList records where each label is bound, so the same label
// can be re-bound as instructions flow from one pass to the next.
type Label struct {
	name string
}

// NewLabel creates a label. An empty name gets a generated one.
func NewLabel(name string) *Label {
	if name == "" {
		name = fmt.Sprintf("L%d", labelSeq.Add(1))
	}
	return &Label{name: name}
}

func (l *Label) Name() string { return l.name }

func (l *Label) String() string {
	if l == nil {
		return "<nil>"
	}
	return l.name
}
