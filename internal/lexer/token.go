// Package lexer tokenizes stu source text into the token stream consumed
// by internal/parser. spec.md treats the tokenizer as an external
// collaborator (§6): only its contract with the parser is load-bearing —
// operator bytes come through as single-byte Operator tokens, names come
// through pre-assembled with any embedded `$param` references already
// split into fragments/params, and command bodies arrive already
// brace-delimited. This package is the reference implementation of that
// contract, grounded on the grammar and comment-handling rules of §6 and
// the tokenizer behavior implied by original_source/parser.hh (its
// Name_Token/Command/Operator token kinds and get_texts()/
// get_parameters() accessors).
package lexer

import "go.stu.dev/stu/internal/core/domain"

// Token is the sum type of the three token kinds the parser consumes.
type Token interface {
	Place() domain.Place
	tokenSealed()
}

// Operators is the full set of single-byte operators recognized outside
// of names and command bodies (§6: "the operator bytes :;=<>@()[]!?&$*").
const Operators = ":;=<>@()[]!?&$*"

// OperatorToken is a single operator byte.
type OperatorToken struct {
	Op byte
	At domain.Place
}

func (t OperatorToken) Place() domain.Place { return t.At }
func (OperatorToken) tokenSealed()          {}

// NameToken is a (possibly parameterized) name: a literal filename,
// transient-target name, or rule-target name, already split into
// fragments/params by the tokenizer the way the original's Name_Token
// does internally.
type NameToken struct {
	Name domain.ParameterizedName
	At   domain.Place
}

func (t NameToken) Place() domain.Place { return t.At }
func (NameToken) tokenSealed()          {}

// CommandToken is a brace-delimited command body, delivered as already
// brace-balanced literal text (§6: "the parser relies on command tokens
// arriving already delimited").
type CommandToken struct {
	Text string
	At   domain.Place
}

func (t CommandToken) Place() domain.Place { return t.At }
func (CommandToken) tokenSealed()          {}
