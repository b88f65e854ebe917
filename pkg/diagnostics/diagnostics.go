// Package diagnostics carries problems found while optimizing method
// bodies. Diagnostics are a tagged value; filtering is done with
// predicates over the tag and payload.
package diagnostics

import (
	"fmt"
	"os"
	"sync"

	"github.com/GriffinCanCode/abcopt/pkg/logger"
)

// Kind tags a diagnostic
type Kind int

const (
	UnreachableBlock Kind = iota
	DeadHandler
	InvalidMethodBody
)

func (k Kind) String() string {
	switch k {
	case UnreachableBlock:
		return "unreachable-block"
	case DeadHandler:
		return "dead-handler"
	case InvalidMethodBody:
		return "invalid-method-body"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Diagnostic is one reported problem
type Diagnostic struct {
	Kind       Kind
	Method     string
	Block      int
	SourcePath string
	Line       int
	Message    string
}

func (d Diagnostic) String() string {
	pos := d.SourcePath
	if pos == "" {
		pos = "<unknown>"
	}
	if d.Line >= 0 {
		pos = fmt.Sprintf("%s:%d", pos, d.Line)
	}
	msg := d.Message
	if msg == "" {
		msg = d.Kind.String()
	}
	return fmt.Sprintf("%s: %s in %s (block %d)", pos, msg, d.Method, d.Block)
}

// Sink receives diagnostics
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Collector stores diagnostics. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns a copy of everything reported so far
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags...)
}

// Count returns the number of diagnostics of the given kind
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Predicate selects diagnostics
type Predicate func(d Diagnostic) bool

// OfKind matches any of the given kinds
func OfKind(kinds ...Kind) Predicate {
	return func(d Diagnostic) bool {
		for _, k := range kinds {
			if d.Kind == k {
				return true
			}
		}
		return false
	}
}

// HasSource matches diagnostics that carry a source path
func HasSource() Predicate {
	return func(d Diagnostic) bool { return d.SourcePath != "" }
}

// SourceExists matches diagnostics whose source file is on disk.
// Code from libraries points at files that are not.
func SourceExists() Predicate {
	return func(d Diagnostic) bool {
		if d.SourcePath == "" {
			return false
		}
		info, err := os.Stat(d.SourcePath)
		return err == nil && !info.IsDir()
	}
}

// Filter forwards to sink only the diagnostics every predicate accepts
func Filter(sink Sink, preds ...Predicate) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, p := range preds {
			if !p(d) {
				return
			}
		}
		sink.Report(d)
	})
}

// Tee forwards every diagnostic to each sink in order
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			s.Report(d)
		}
	})
}

// LogSink writes diagnostics to the global logger as warnings
type LogSink struct{}

func (LogSink) Report(d Diagnostic) {
	logger.Warn("Diagnostic",
		"kind", d.Kind.String(),
		"method", d.Method,
		"block", d.Block,
		"file", d.SourcePath,
		"line", d.Line,
		"message", d.Message)
}
