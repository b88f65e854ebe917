// Package asm - Textual ABC assembly
// Design: Hand-written line-oriented scanner, one instruction per line
package asm

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType int

const (
	EOF TokenType = iota
	NEWLINE
	IDENT
	NUMBER
	STRING
	COLON
	COMMA
	ILLEGAL
)

var tokenNames = [...]string{
	EOF:     "end of input",
	NEWLINE: "end of line",
	IDENT:   "identifier",
	NUMBER:  "number",
	STRING:  "string",
	COLON:   "':'",
	COMMA:   "','",
	ILLEGAL: "illegal token",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Col    int
}

func (t Token) String() string {
	switch t.Type {
	case IDENT, NUMBER, STRING, ILLEGAL:
		return fmt.Sprintf("%s %q", t.Type, t.Lexeme)
	}
	return t.Type.String()
}

type Lexer struct {
	source []rune
	start  int
	pos    int
	line   int
	col    int
}

func NewLexer(source string) *Lexer {
	return &Lexer{
		source: []rune(source),
		line:   1,
		col:    1,
	}
}

func (l *Lexer) Next() Token {
	l.skipWhitespace()

	if l.isAtEnd() {
		return Token{Type: EOF, Line: l.line, Col: l.col}
	}

	l.start = l.pos
	c := l.advance()

	switch c {
	case '\n':
		l.line++
		l.col = 1
		return Token{Type: NEWLINE, Lexeme: "\n", Line: l.line - 1}
	case ':':
		return l.makeToken(COLON)
	case ',':
		return l.makeToken(COMMA)
	case '"':
		return l.str()
	case '-', '+':
		// signed numbers and -Infinity style constants
		if unicode.IsDigit(l.peek()) {
			return l.number()
		}
		if unicode.IsLetter(l.peek()) {
			return l.identifier()
		}
	}

	if unicode.IsDigit(c) {
		return l.number()
	}

	if isIdentStart(c) {
		return l.identifier()
	}

	return l.error(fmt.Sprintf("unexpected character: %c", c))
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance()
		case c == '#':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) number() Token {
	for {
		c := l.peek()
		prev := l.source[l.pos-1]
		isExpSign := (c == '+' || c == '-') && (prev == 'e' || prev == 'E') && !l.isHex()
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && c != '.' && c != '_' && !isExpSign {
			break
		}
		l.advance()
	}
	return l.makeToken(NUMBER)
}

// isHex reports whether the number being scanned has a 0x prefix
func (l *Lexer) isHex() bool {
	text := strings.TrimLeft(string(l.source[l.start:l.pos]), "+-")
	return strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")
}

func (l *Lexer) identifier() Token {
	for isIdentPart(l.peek()) {
		l.advance()
	}
	return l.makeToken(IDENT)
}

// str scans a double-quoted string; the lexeme keeps the quotes and escapes
func (l *Lexer) str() Token {
	for !l.isAtEnd() {
		switch l.peek() {
		case '"':
			l.advance()
			return l.makeToken(STRING)
		case '\\':
			l.advance()
			if l.isAtEnd() {
				return l.error("unterminated string")
			}
		case '\n':
			return l.error("unterminated string")
		}
		l.advance()
	}
	return l.error("unterminated string")
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_' || c == '$'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || unicode.IsDigit(c) || c == '.' || c == '<' || c == '>'
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return '\x00'
	}
	return l.source[l.pos]
}

func (l *Lexer) advance() rune {
	c := l.source[l.pos]
	l.pos++
	l.col++
	return c
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) makeToken(typ TokenType) Token {
	lexeme := string(l.source[l.start:l.pos])
	return Token{
		Type:   typ,
		Lexeme: lexeme,
		Line:   l.line,
		Col:    l.col - (l.pos - l.start),
	}
}

func (l *Lexer) error(msg string) Token {
	return Token{
		Type:   ILLEGAL,
		Lexeme: msg,
		Line:   l.line,
		Col:    l.col,
	}
}
