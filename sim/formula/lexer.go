package formula

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

var tokenNames = map[tokenKind]string{
	tokEOF:    "end of input",
	tokNumber: "number",
	tokIdent:  "identifier",
	tokPlus:   "'+'",
	tokMinus:  "'-'",
	tokStar:   "'*'",
	tokSlash:  "'/'",
	tokLParen: "'('",
	tokRParen: "')'",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	switch t.kind {
	case tokNumber, tokIdent:
		return fmt.Sprintf("%s %q", t.kind, t.text)
	default:
		return t.kind.String()
	}
}

// lex splits src into tokens. Only ASCII identifiers, decimal numbers with an
// optional fraction and exponent, the four operators and parentheses exist;
// anything else is malformed.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			tokens = append(tokens, token{kind: tokPlus, text: "+", pos: i})
			i++
		case c == '-':
			tokens = append(tokens, token{kind: tokMinus, text: "-", pos: i})
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokStar, text: "*", pos: i})
			i++
		case c == '/':
			tokens = append(tokens, token{kind: tokSlash, text: "/", pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			end, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[i:end], pos: i})
			i = end
		case isIdentStart(c):
			end := i + 1
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[i:end], pos: i})
			i = end
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrMalformedExpression, rune(c), i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func scanNumber(src string, start int) (int, error) {
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j >= len(src) || !isDigit(src[j]) {
			return 0, fmt.Errorf("%w: incomplete exponent in %q at offset %d", ErrMalformedExpression, src[start:j], start)
		}
		for j < len(src) && isDigit(src[j]) {
			j++
		}
		i = j
	}
	// A number running straight into a letter ("2x") or a second dot ("1.2.3")
	// is not a literal this grammar knows.
	if i < len(src) && (isIdentStart(src[i]) || src[i] == '.') {
		return 0, fmt.Errorf("%w: invalid number %q at offset %d", ErrMalformedExpression, strings.TrimSpace(src[start:i+1]), start)
	}
	return i, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
