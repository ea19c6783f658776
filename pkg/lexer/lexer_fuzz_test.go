package lexer

import (
	"testing"
)

// FuzzTokenize feeds random inputs to the lexer to catch panics.
// The lexer should never panic; it should return an error for invalid input.
func FuzzTokenize(f *testing.F) {
	seeds := []string{
		// Forms
		`(set x 5)`,
		`(const y "hi")`,
		`(set f (func {a b} (* a b))) (f 3 4)`,
		`[1 2 3]`,
		`(paint 1 2 255 0 0)`,
		// Literals
		`42 3.14 1e10 2.5E-3 0`,
		`"hello" "with\nescape" "quote\""`,
		// Operators
		`== != <= >= << >> && || < > + - * / % & | ^ = !`,
		// Brackets
		`( ) { } [ ]`,
		// Edge cases
		``,
		`   `,
		"\t\n\r",
		`"unterminated`,
		`"""`,
		`@#$^&`,
		`\x00`,
		`1e`,
		`1.`,
		`_x`,
		"\xff",
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Tokenize panicked on input %q: %v", input, r)
				}
			}()
			tokens, err := Tokenize(input, "fuzz.brush")
			if err == nil {
				if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokEOF {
					t.Fatalf("token stream for %q does not end in EOF", input)
				}
			}
		}()
	})
}
