// Package parser implements the brush recursive-descent parser.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/thomasrohde/brush/pkg/ast"
	"github.com/thomasrohde/brush/pkg/diagnostics"
	"github.com/thomasrohde/brush/pkg/lexer"
)

// DefaultMaxDepth bounds bracket nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

// Options configures a Parser.
type Options struct {
	// MaxDepth is the deepest bracket nesting accepted. Zero means DefaultMaxDepth.
	MaxDepth int
}

// ParseError wraps the diagnostic for a failed parse.
type ParseError struct {
	Diag diagnostics.Diagnostic
	// Incomplete is set when the input ended in the middle of a form, so
	// more input could still make it valid.
	Incomplete bool
}

func (e *ParseError) Error() string {
	return e.Diag.Message
}

// Parser consumes a token queue and builds AST nodes.
type Parser struct {
	tokens   *lexer.Queue
	maxDepth int
	depth    int
}

// New creates a parser reading from tokens.
func New(tokens *lexer.Queue, opts Options) *Parser {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Parser{tokens: tokens, maxDepth: maxDepth}
}

// Parse tokenizes source and parses it into a program.
func Parse(source, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	return ParseWith(source, filename, Options{})
}

// ParseWith is Parse with explicit parser options.
func ParseWith(source, filename string, opts Options) (*ast.Program, []diagnostics.Diagnostic) {
	prog, err := ParseProgram(source, filename, opts)
	if err != nil {
		return nil, []diagnostics.Diagnostic{Diagnostic(err)}
	}
	return prog, nil
}

// ParseProgram lexes and parses source, returning the first *lexer.LexError
// or *ParseError encountered.
func ParseProgram(source, filename string, opts Options) (*ast.Program, error) {
	tokens, err := lexer.Lex(source, filename)
	if err != nil {
		return nil, err
	}
	return New(tokens, opts).Program()
}

// ParseExpr parses exactly one expression. Trailing tokens are an error.
func ParseExpr(source, filename string) (ast.Node, []diagnostics.Diagnostic) {
	tokens, err := lexer.Lex(source, filename)
	if err != nil {
		return nil, []diagnostics.Diagnostic{Diagnostic(err)}
	}

	p := New(tokens, Options{})
	node, err := p.Expr()
	if err != nil {
		return nil, []diagnostics.Diagnostic{Diagnostic(err)}
	}
	if !p.IsEnd() {
		tok := p.tokens.Peek()
		return nil, []diagnostics.Diagnostic{p.errorAt(tok, fmt.Sprintf("unexpected '%s' after expression", tok.Text())).Diag}
	}
	return node, nil
}

// IsIncomplete reports whether parsing failed only because the input ended
// inside an unfinished form or string.
func IsIncomplete(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Incomplete
	}
	var le *lexer.LexError
	return errors.As(err, &le) && le.Incomplete
}

// Diagnostic extracts the diagnostic carried by a lex or parse error.
func Diagnostic(err error) diagnostics.Diagnostic {
	var le *lexer.LexError
	if errors.As(err, &le) {
		return le.Diag
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Diag
	}
	return diagnostics.MakeDiag(diagnostics.EParse, err.Error(), nil, "")
}

func (p *Parser) errorAt(tok lexer.Token, msg string) *ParseError {
	span := tok.Span
	return &ParseError{
		Diag:       diagnostics.MakeDiag(diagnostics.EParse, msg, &span, ""),
		Incomplete: tok.Type == lexer.TokEOF,
	}
}

// token consumes the next token, which must be the identifier-kind token expected.
func (p *Parser) token(expected string) (lexer.Token, error) {
	tok := p.tokens.Read()
	if tok.Type != lexer.TokIdent || tok.Value != expected {
		return tok, p.errorAt(tok, fmt.Sprintf("invalid token '%s', expected '%s'", tok.Text(), expected))
	}
	return tok, nil
}

// istoken peeks at the next token without consuming it.
func (p *Parser) istoken(expected string) bool {
	tok := p.tokens.Peek()
	return tok.Type == lexer.TokIdent && tok.Value == expected
}

// IsEnd reports whether the whole input has been consumed.
func (p *Parser) IsEnd() bool {
	return p.tokens.Peek().Type == lexer.TokEOF
}

func isBracket(s string) bool {
	switch s {
	case "(", ")", "[", "]", "{", "}":
		return true
	}
	return false
}

// ident consumes a token that must be a name or operator.
func (p *Parser) ident() (lexer.Token, error) {
	tok := p.tokens.Read()
	switch tok.Type {
	case lexer.TokIdent:
		if isBracket(tok.Value) {
			return tok, p.errorAt(tok, fmt.Sprintf("'%s' is not an identifier", tok.Value))
		}
		return tok, nil
	case lexer.TokString:
		return tok, p.errorAt(tok, fmt.Sprintf("string literal \"%s\" is not an identifier", tok.Value))
	case lexer.TokNumber:
		return tok, p.errorAt(tok, fmt.Sprintf("number '%s' is not an identifier", tok.Value))
	default:
		return tok, p.errorAt(tok, "'EOF' is not an identifier")
	}
}

func (p *Parser) enter(tok lexer.Token) error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorAt(tok, fmt.Sprintf("nesting exceeds maximum depth of %d", p.maxDepth))
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

func spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

// Expr parses one expression.
func (p *Parser) Expr() (ast.Node, error) {
	switch {
	case p.istoken("("):
		return p.parseOperator()
	case p.istoken("["):
		return p.parseBlock()
	case p.istoken("{"):
		return p.parseIdList()
	}

	tok := p.tokens.Read()
	switch tok.Type {
	case lexer.TokNumber:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, p.errorAt(tok, fmt.Sprintf("invalid number '%s'", tok.Value))
		}
		return &ast.Number{Span: tok.Span, Value: v}, nil
	case lexer.TokString:
		return &ast.Str{Span: tok.Span, Value: tok.Value}, nil
	case lexer.TokIdent:
		if isBracket(tok.Value) {
			return nil, p.errorAt(tok, fmt.Sprintf("unexpected '%s'", tok.Value))
		}
		return &ast.Ident{Span: tok.Span, Name: tok.Value}, nil
	default:
		return nil, p.errorAt(tok, "unexpected end of input")
	}
}

func (p *Parser) parseOperator() (ast.Node, error) {
	open, err := p.token("(")
	if err != nil {
		return nil, err
	}
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	head, err := p.ident()
	if err != nil {
		return nil, err
	}
	var children []ast.Node
	for !p.istoken(")") {
		child, err := p.Expr()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	closeTok, err := p.token(")")
	if err != nil {
		return nil, err
	}
	return &ast.Operator{Span: spanFromTo(open.Span, closeTok.Span), Name: head.Value, Children: children}, nil
}

func (p *Parser) parseBlock() (ast.Node, error) {
	open, err := p.token("[")
	if err != nil {
		return nil, err
	}
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	var children []ast.Node
	for !p.istoken("]") {
		child, err := p.Expr()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	closeTok, err := p.token("]")
	if err != nil {
		return nil, err
	}
	return &ast.Block{Span: spanFromTo(open.Span, closeTok.Span), Children: children}, nil
}

func (p *Parser) parseIdList() (ast.Node, error) {
	open, err := p.token("{")
	if err != nil {
		return nil, err
	}

	var names []string
	for !p.istoken("}") {
		tok, err := p.ident()
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Value)
	}
	closeTok, err := p.token("}")
	if err != nil {
		return nil, err
	}
	return &ast.IdList{Span: spanFromTo(open.Span, closeTok.Span), Names: names}, nil
}

// Program parses expressions until EOF.
func (p *Parser) Program() (*ast.Program, error) {
	start := p.tokens.Peek().Span
	prog := &ast.Program{}
	for !p.IsEnd() {
		form, err := p.Expr()
		if err != nil {
			return nil, err
		}
		prog.Forms = append(prog.Forms, form)
	}
	prog.Span = spanFromTo(start, p.tokens.Peek().Span)
	return prog, nil
}
