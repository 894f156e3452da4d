package lexer

import (
	"strings"

	"go.stu.dev/stu/internal/core/domain"
)

// isOperatorByte reports whether b is one of the bytes in Operators.
func isOperatorByte(b byte) bool {
	return strings.IndexByte(Operators, b) >= 0
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Lexer walks src byte by byte, tracking line/column for diagnostics.
type Lexer struct {
	file string
	src  string
	pos  int
	line int
	col  int
}

// New constructs a Lexer over src, attributing every Place to file.
func New(file, src string) *Lexer {
	return &Lexer{file: file, src: src, line: 1, col: 1}
}

func (l *Lexer) place() domain.Place {
	return domain.Place{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) peek() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) at(off int) (byte, bool) {
	if l.pos+off >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos+off], true
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

// Tokenize reads all of src and returns the resulting token stream,
// along with the Place just past the last token (used by the parser's
// "expected X" diagnostics when the stream runs out mid-construct).
func Tokenize(file, src string) ([]Token, domain.Place, error) {
	l := New(file, src)
	var tokens []Token
	for {
		l.skipSpaceAndComments()
		b, ok := l.peek()
		if !ok {
			break
		}
		switch {
		case b == '{':
			tok, err := l.lexCommand()
			if err != nil {
				return nil, l.place(), err
			}
			tokens = append(tokens, tok)
		case b == '\'' || b == '"':
			tok, err := l.lexQuoted(b)
			if err != nil {
				return nil, l.place(), err
			}
			tokens = append(tokens, tok)
		case b == '$':
			if next, ok := l.at(1); ok && next == '[' {
				at := l.place()
				l.advance()
				tokens = append(tokens, OperatorToken{Op: '$', At: at})
				continue
			}
			tok, err := l.lexName()
			if err != nil {
				return nil, l.place(), err
			}
			tokens = append(tokens, tok)
		case isOperatorByte(b):
			at := l.place()
			l.advance()
			tokens = append(tokens, OperatorToken{Op: b, At: at})
		default:
			tok, err := l.lexName()
			if err != nil {
				return nil, l.place(), err
			}
			tokens = append(tokens, tok)
		}
	}
	return tokens, l.place(), nil
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		b, ok := l.peek()
		if !ok {
			return
		}
		if isSpace(b) {
			l.advance()
			continue
		}
		if b == '#' {
			for {
				b, ok := l.peek()
				if !ok || b == '\n' {
					break
				}
				l.advance()
			}
			continue
		}
		return
	}
}

// lexQuoted reads a single- or double-quoted literal name with the
// conventional backslash escapes for the quote character itself and
// backslash.
func (l *Lexer) lexQuoted(quote byte) (Token, error) {
	at := l.place()
	l.advance() // opening quote
	var b strings.Builder
	for {
		c, ok := l.peek()
		if !ok {
			return nil, domain.NewSyntaxError(at, "unterminated quoted name")
		}
		if c == quote {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			if esc, ok := l.peek(); ok && (esc == quote || esc == '\\') {
				b.WriteByte(l.advance())
				continue
			}
			b.WriteByte('\\')
			continue
		}
		b.WriteByte(l.advance())
	}
	name, err := domain.NewParameterizedName([]string{b.String()}, nil)
	if err != nil {
		return nil, err
	}
	return NameToken{Name: name, At: at}, nil
}

// lexName reads an unquoted name, splitting any embedded `$param`
// references into fragments/params the way a rule's parameterized
// target name is built. A bare '$' immediately followed by '[' is never
// consumed here — the caller has already special-cased that as the
// start of a variable-dependency expression.
func (l *Lexer) lexName() (Token, error) {
	at := l.place()
	var fragments []string
	var params []string
	var cur strings.Builder

	for {
		b, ok := l.peek()
		if !ok {
			break
		}
		if b == '#' || isSpace(b) {
			break
		}
		if b == '$' {
			if next, ok := l.at(1); ok && next == '[' {
				break
			}
			l.advance() // '$'
			param, err := l.lexParamName()
			if err != nil {
				return nil, err
			}
			fragments = append(fragments, cur.String())
			cur.Reset()
			params = append(params, param)
			continue
		}
		if isOperatorByte(b) {
			break
		}
		cur.WriteByte(l.advance())
	}
	fragments = append(fragments, cur.String())

	if len(fragments) == 1 && fragments[0] == "" {
		return nil, domain.NewSyntaxError(at, "expected a name")
	}

	name, err := domain.NewParameterizedName(fragments, params)
	if err != nil {
		return nil, err
	}
	return NameToken{Name: name, At: at}, nil
}

// lexParamName reads the identifier following a '$' inside an unquoted
// name: letters, digits, and underscore, at least one character. Unlike
// the surrounding name text, a parameter identifier stops at the first
// byte that isn't part of an identifier, so the literal text following
// it (e.g. the ".o" in "lib$X.o") is correctly treated as the next
// fragment rather than swallowed into the parameter name.
func (l *Lexer) lexParamName() (string, error) {
	at := l.place()
	var b strings.Builder
	for {
		c, ok := l.peek()
		if !ok || !isIdentByte(c) {
			break
		}
		b.WriteByte(l.advance())
	}
	if b.Len() == 0 {
		return "", domain.NewSyntaxError(at, "expected a parameter name after '$'")
	}
	return b.String(), nil
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// lexCommand reads a brace-balanced command body starting at '{',
// tracking nested braces and suppressing brace-counting inside single-
// and double-quoted substrings and backtick-delimited substitutions, so
// a literal '{' or '}' inside a quoted string or a `` `...` `` command
// substitution never closes the body early (§6, §9 Open Question on the
// exact grammar of command bodies — this is the reference tokenizer's
// resolution: quote- and backtick-aware brace counting, the same
// technique a shell lexer uses for nested constructs).
func (l *Lexer) lexCommand() (Token, error) {
	at := l.place()
	l.advance() // opening '{'
	depth := 1
	var b strings.Builder
	var inSingle, inDouble, inBacktick bool

	for {
		c, ok := l.peek()
		if !ok {
			return nil, domain.NewSyntaxError(at, "unterminated command body")
		}
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
			b.WriteByte(l.advance())
		case inDouble:
			if c == '\\' {
				b.WriteByte(l.advance())
				if _, ok := l.peek(); ok {
					b.WriteByte(l.advance())
				}
				continue
			}
			if c == '"' {
				inDouble = false
			}
			b.WriteByte(l.advance())
		case inBacktick:
			if c == '`' {
				inBacktick = false
			}
			b.WriteByte(l.advance())
		case c == '\'':
			inSingle = true
			b.WriteByte(l.advance())
		case c == '"':
			inDouble = true
			b.WriteByte(l.advance())
		case c == '`':
			inBacktick = true
			b.WriteByte(l.advance())
		case c == '{':
			depth++
			b.WriteByte(l.advance())
		case c == '}':
			depth--
			l.advance()
			if depth == 0 {
				return CommandToken{Text: b.String(), At: at}, nil
			}
			b.WriteByte('}')
		default:
			b.WriteByte(l.advance())
		}
	}
}
