// Package asm - Parser for textual ABC assembly
// Design: One instruction or label per line, operands checked against the opcode form
package asm

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/GriffinCanCode/abcopt/pkg/abc"
)

// Listing is a parsed method body: its instructions and the labels it
// names. Labels referenced by a branch but never defined are kept in the
// table unbound; the validator reports them.
type Listing struct {
	Instructions *abc.InstructionList
	labels       map[string]*abc.Label
	defined      map[string]bool
}

func newListing() *Listing {
	return &Listing{
		Instructions: abc.NewInstructionList(),
		labels:       make(map[string]*abc.Label),
		defined:      make(map[string]bool),
	}
}

// Label returns the label called name, or nil if the listing never
// mentions it.
func (ls *Listing) Label(name string) *abc.Label {
	return ls.labels[name]
}

// Defined reports whether name is bound by a "name:" line
func (ls *Listing) Defined(name string) bool {
	return ls.defined[name]
}

// LabelNames returns every label name in the listing, sorted
func (ls *Listing) LabelNames() []string {
	names := make([]string, 0, len(ls.labels))
	for name := range ls.labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ls *Listing) labelFor(name string) *abc.Label {
	if l, ok := ls.labels[name]; ok {
		return l
	}
	l := abc.NewLabel(name)
	ls.labels[name] = l
	return l
}

type Parser struct {
	lexer   *Lexer
	current Token
	next    Token
	errors  []string
	listing *Listing
}

func NewParser(source string) *Parser {
	lexer := NewLexer(source)
	p := &Parser{lexer: lexer, listing: newListing()}
	p.current = lexer.Next()
	p.next = lexer.Next()
	return p
}

// Parse parses a complete listing
func Parse(source string) (*Listing, error) {
	return NewParser(source).Parse()
}

func (p *Parser) Parse() (*Listing, error) {
	for !p.check(EOF) {
		if p.check(NEWLINE) {
			p.advance()
			continue
		}
		if !p.line() {
			p.synchronize()
		}
	}
	p.listing.Instructions.VisitEnd()

	if len(p.errors) > 0 {
		return nil, errors.Errorf("parse errors: %s", strings.Join(p.errors, "; "))
	}
	return p.listing, nil
}

// line parses labels and at most one instruction up to the end of line
func (p *Parser) line() bool {
	for p.check(IDENT) && p.next.Type == COLON {
		name := p.current.Lexeme
		if p.listing.defined[name] {
			p.error("label " + name + " defined twice")
			return false
		}
		p.listing.defined[name] = true
		p.listing.Instructions.LabelNext(p.listing.labelFor(name))
		p.advance()
		p.advance()
	}
	if p.match(NEWLINE, EOF) {
		return true
	}

	insn := p.instruction()
	if insn == nil {
		return false
	}
	if !p.match(NEWLINE, EOF) {
		p.error("expected end of line, got " + p.current.String())
		return false
	}
	p.listing.Instructions.VisitInstruction(insn)
	return true
}

func (p *Parser) instruction() *abc.Instruction {
	if !p.check(IDENT) {
		p.error("expected opcode, got " + p.current.String())
		return nil
	}
	op, ok := abc.OpcodeByName(p.current.Lexeme)
	if !ok {
		p.error("unknown opcode " + p.current.Lexeme)
		return nil
	}
	p.advance()

	switch op.Form() {
	case abc.FormNone:
		return abc.New(op)
	case abc.FormImmediate:
		v, ok := p.integer(math.MinInt32, math.MaxUint32)
		if !ok {
			return nil
		}
		return abc.NewImmediate(op, int(v))
	case abc.FormImmediates:
		var imms []int
		for {
			v, ok := p.integer(math.MinInt32, math.MaxUint32)
			if !ok {
				return nil
			}
			imms = append(imms, int(v))
			if !p.check(COMMA) {
				break
			}
			p.advance()
		}
		return abc.NewImmediate(op, imms...)
	case abc.FormName:
		name, ok := p.name()
		if !ok {
			return nil
		}
		return abc.NewOperands(op, name)
	case abc.FormNameCount:
		name, ok := p.name()
		if !ok || !p.consume(COMMA, "expected ',' before argument count") {
			return nil
		}
		count, ok := p.integer(0, math.MaxUint32)
		if !ok {
			return nil
		}
		return abc.NewOperands(op, name, int(count))
	case abc.FormLabel:
		l, ok := p.labelRef()
		if !ok {
			return nil
		}
		return abc.NewOperands(op, l)
	case abc.FormSwitch:
		var targets []any
		for {
			l, ok := p.labelRef()
			if !ok {
				return nil
			}
			targets = append(targets, l)
			if !p.check(COMMA) {
				break
			}
			p.advance()
		}
		return abc.NewOperands(op, targets...)
	case abc.FormString:
		s, ok := p.str()
		if !ok {
			return nil
		}
		return abc.NewOperands(op, s)
	case abc.FormInt:
		v, ok := p.integer(math.MinInt32, math.MaxInt32)
		if !ok {
			return nil
		}
		return abc.NewOperands(op, int32(v))
	case abc.FormUint:
		v, ok := p.integer(0, math.MaxUint32)
		if !ok {
			return nil
		}
		return abc.NewOperands(op, uint32(v))
	case abc.FormDouble:
		v, ok := p.double()
		if !ok {
			return nil
		}
		return abc.NewOperands(op, v)
	}
	p.error("opcode " + op.String() + " has no assembly form")
	return nil
}

func (p *Parser) integer(min, max int64) (int64, bool) {
	if !p.check(NUMBER) {
		p.error("expected integer, got " + p.current.String())
		return 0, false
	}
	tok := p.advance()
	v, err := strconv.ParseInt(tok.Lexeme, 0, 64)
	if err != nil {
		p.errorAt(tok, "invalid integer "+tok.Lexeme)
		return 0, false
	}
	if v < min || v > max {
		p.errorAt(tok, "integer "+tok.Lexeme+" out of range")
		return 0, false
	}
	return v, true
}

// double accepts numbers and the NaN and Infinity spellings
func (p *Parser) double() (float64, bool) {
	if !p.match(NUMBER, IDENT) {
		p.error("expected number, got " + p.current.String())
		return 0, false
	}
	tok := p.advance()
	v, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		if tok.Type == NUMBER && strings.HasPrefix(strings.TrimLeft(tok.Lexeme, "+-"), "0x") {
			if i, ierr := strconv.ParseInt(tok.Lexeme, 0, 64); ierr == nil {
				return float64(i), true
			}
		}
		p.errorAt(tok, "invalid number "+tok.Lexeme)
		return 0, false
	}
	return v, true
}

// name parses a multiname; a namespace may be joined with ':'
func (p *Parser) name() (abc.Name, bool) {
	if p.check(STRING) {
		s, ok := p.str()
		return abc.Name(s), ok
	}
	if !p.check(IDENT) {
		p.error("expected name, got " + p.current.String())
		return "", false
	}
	var sb strings.Builder
	sb.WriteString(p.advance().Lexeme)
	for p.check(COLON) && p.next.Type == IDENT {
		p.advance()
		sb.WriteByte(':')
		sb.WriteString(p.advance().Lexeme)
	}
	return abc.Name(sb.String()), true
}

func (p *Parser) labelRef() (*abc.Label, bool) {
	if !p.check(IDENT) {
		p.error("expected label, got " + p.current.String())
		return nil, false
	}
	return p.listing.labelFor(p.advance().Lexeme), true
}

func (p *Parser) str() (string, bool) {
	if !p.check(STRING) {
		p.error("expected string, got " + p.current.String())
		return "", false
	}
	tok := p.advance()
	s, err := strconv.Unquote(tok.Lexeme)
	if err != nil {
		p.errorAt(tok, "invalid string "+tok.Lexeme)
		return "", false
	}
	return s, true
}

// synchronize skips the rest of a malformed line
func (p *Parser) synchronize() {
	for !p.match(NEWLINE, EOF) {
		p.advance()
	}
}

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			return true
		}
	}
	return false
}

func (p *Parser) check(typ TokenType) bool {
	return p.current.Type == typ
}

func (p *Parser) advance() Token {
	prev := p.current
	p.current = p.next
	p.next = p.lexer.Next()
	return prev
}

func (p *Parser) consume(typ TokenType, msg string) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	p.error(msg)
	return false
}

func (p *Parser) error(msg string) {
	p.errorAt(p.current, msg)
}

func (p *Parser) errorAt(tok Token, msg string) {
	if tok.Type == ILLEGAL {
		msg = tok.Lexeme
	}
	p.errors = append(p.errors, "line "+strconv.Itoa(tok.Line)+", col "+strconv.Itoa(tok.Col)+": "+msg)
}
