package lexer

import (
	"github.com/edwingeng/deque"
)

// Queue is the FIFO of tokens consumed by the parser. It always ends in an
// EOF token; once only EOF remains, Peek and Read keep returning it.
type Queue struct {
	tokens deque.Deque
	eof    Token
}

// NewQueue builds a queue from tokens. A trailing EOF is appended when the
// slice does not already end with one.
func NewQueue(tokens []Token) *Queue {
	q := &Queue{tokens: deque.NewDeque(), eof: Token{Type: TokEOF}}
	for _, tok := range tokens {
		if tok.Type == TokEOF {
			q.eof = tok
			break
		}
		q.tokens.PushBack(tok)
	}
	return q
}

// Peek returns the next token without consuming it.
func (q *Queue) Peek() Token {
	if q.tokens.Empty() {
		return q.eof
	}
	return q.tokens.Front().(Token)
}

// Read consumes and returns the next token.
func (q *Queue) Read() Token {
	if q.tokens.Empty() {
		return q.eof
	}
	tok := q.tokens.Front().(Token)
	q.tokens.PopFront()
	return tok
}

// Len reports the number of tokens left, not counting EOF.
func (q *Queue) Len() int {
	return q.tokens.Len()
}

// AtEOF reports whether only EOF remains.
func (q *Queue) AtEOF() bool {
	return q.tokens.Empty()
}
