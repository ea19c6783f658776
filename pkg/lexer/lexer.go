// Package lexer implements the brush language tokenizer.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/thomasrohde/brush/pkg/ast"
	"github.com/thomasrohde/brush/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	TokNumber TokenType = iota
	TokString
	// TokIdent covers names as well as operators and brackets; the token
	// value carries the literal text.
	TokIdent
	TokEOF
)

func (t TokenType) String() string {
	switch t {
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokIdent:
		return "identifier"
	case TokEOF:
		return "end of file"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
}

// Text returns the token as it should appear in messages.
func (t Token) Text() string {
	if t.Type == TokEOF {
		return "EOF"
	}
	return t.Value
}

// Two-character operators are tried before single-character ones.
var twoCharOps = []string{"==", "!=", "<=", ">=", "<<", ">>", "&&", "||"}

func isSingleCharOp(ch byte) bool {
	switch ch {
	case '<', '>', '+', '-', '*', '/', '%', '&', '|', '^', '=', '!',
		'(', ')', '{', '}', '[', ']':
		return true
	}
	return false
}

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

func (s *scanner) skipWhitespace() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n':
			s.advance()
		default:
			return
		}
	}
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return isAlpha(ch) || isDigit(ch) || ch == '_'
}

// scanString keeps the text between the quotes verbatim, escapes included.
func (s *scanner) scanString() (Token, error) {
	startLine, startCol := s.line, s.col
	s.advance() // consume opening "
	start := s.pos

	for !s.atEnd() {
		ch := s.peek()
		if ch == '"' {
			text := s.source[start:s.pos]
			s.advance() // consume closing "
			return Token{
				Type:  TokString,
				Value: text,
				Span:  s.span(startLine, startCol),
			}, nil
		}
		if ch == '\\' {
			s.advance()
			if s.atEnd() {
				break
			}
		}
		s.advance()
	}
	err := s.lexError(startLine, startCol, "unterminated string literal")
	err.Incomplete = true
	return Token{}, err
}

func (s *scanner) scanNumber() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isDigit(s.peek()) {
		s.advance()
	}

	// Fraction and exponent are only consumed when digits follow, so "1." and
	// "1e" lex as a number followed by something else.
	if s.peek() == '.' && isDigit(s.peekAt(1)) {
		s.advance()
		for !s.atEnd() && isDigit(s.peek()) {
			s.advance()
		}
	}

	if s.peek() == 'e' || s.peek() == 'E' {
		digitAt := 1
		if s.peekAt(1) == '+' || s.peekAt(1) == '-' {
			digitAt = 2
		}
		if isDigit(s.peekAt(digitAt)) {
			for i := 0; i < digitAt; i++ {
				s.advance()
			}
			for !s.atEnd() && isDigit(s.peek()) {
				s.advance()
			}
		}
	}

	return Token{
		Type:  TokNumber,
		Value: s.source[startPos:s.pos],
		Span:  s.span(startLine, startCol),
	}
}

func (s *scanner) scanIdent() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isIdentChar(s.peek()) {
		s.advance()
	}

	return Token{
		Type:  TokIdent,
		Value: s.source[startPos:s.pos],
		Span:  s.span(startLine, startCol),
	}
}

func (s *scanner) lexError(line, col int, msg string) *LexError {
	diag := diagnostics.MakeDiag(
		diagnostics.ELex,
		msg,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
	// Incomplete is set when the source ended inside a string literal.
	Incomplete bool
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

func (s *scanner) nextToken() (Token, error) {
	s.skipWhitespace()

	if s.atEnd() {
		return Token{
			Type:  TokEOF,
			Value: "",
			Span:  s.span(s.line, s.col),
		}, nil
	}

	ch := s.peek()
	startLine, startCol := s.line, s.col

	if isDigit(ch) {
		return s.scanNumber(), nil
	}
	if isAlpha(ch) {
		return s.scanIdent(), nil
	}
	if ch == '"' {
		return s.scanString()
	}

	for _, op := range twoCharOps {
		if ch == op[0] && s.peekAt(1) == op[1] {
			s.advance()
			s.advance()
			return Token{Type: TokIdent, Value: op, Span: s.span(startLine, startCol)}, nil
		}
	}
	if isSingleCharOp(ch) {
		s.advance()
		return Token{Type: TokIdent, Value: string(ch), Span: s.span(startLine, startCol)}, nil
	}

	r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
	if r == utf8.RuneError {
		return Token{}, s.lexError(startLine, startCol, "invalid UTF-8 in source")
	}
	return Token{}, s.lexError(startLine, startCol, fmt.Sprintf("unexpected character '%c'", r))
}

// Tokenize breaks source code into a slice of tokens ending in exactly one EOF.
func Tokenize(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)
	var tokens []Token

	for {
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}

// Lex tokenizes source into a Queue ready for the parser.
func Lex(source, filename string) (*Queue, error) {
	tokens, err := Tokenize(source, filename)
	if err != nil {
		return nil, err
	}
	return NewQueue(tokens), nil
}
