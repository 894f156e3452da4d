// Package parser implements stu's recursive-descent grammar (§4.3),
// consuming the token stream produced by internal/lexer and producing a
// slice of *domain.Rule plus, for the command-line dependency form, a
// single top-level domain.Dependency. Grounded on
// original_source/parser.hh's method-per-production shape: one method
// per grammar symbol (parseRuleList, parseRule, parseExpressionList,
// parseExpression, parseVariableDependency, parseRedirectDependency),
// translated from the original's mutable shared-iterator style into a
// Go parser struct holding its own cursor.
package parser

import (
	"strings"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/lexer"
)

// Parser walks a token slice left to right. Constructed once per parse;
// never reused.
type Parser struct {
	tokens   []lexer.Token
	pos      int
	placeEnd domain.Place
}

// New constructs a Parser over tokens, with placeEnd used to attribute
// "unexpected end of input" diagnostics.
func New(tokens []lexer.Token, placeEnd domain.Place) *Parser {
	return &Parser{tokens: tokens, placeEnd: placeEnd}
}

func (p *Parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *Parser) peek() lexer.Token {
	if p.atEnd() {
		return nil
	}
	return p.tokens[p.pos]
}

func (p *Parser) place() domain.Place {
	if p.atEnd() {
		return p.placeEnd
	}
	return p.tokens[p.pos].Place()
}

func (p *Parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) isOperator(op byte) bool {
	t := p.peek()
	if t == nil {
		return false
	}
	o, ok := t.(lexer.OperatorToken)
	return ok && o.Op == op
}

func (p *Parser) name() (lexer.NameToken, bool) {
	t := p.peek()
	if t == nil {
		return lexer.NameToken{}, false
	}
	n, ok := t.(lexer.NameToken)
	return n, ok
}

func (p *Parser) command() (lexer.CommandToken, bool) {
	t := p.peek()
	if t == nil {
		return lexer.CommandToken{}, false
	}
	c, ok := t.(lexer.CommandToken)
	return c, ok
}

func errAt(place domain.Place, msg string) error {
	return domain.NewSyntaxError(place, msg)
}

// errLogicalAt reports one of §4.3's semantic checks (enforced during
// parse but LOGICAL rather than SYNTAX, per "On any violation, throw
// LOGICAL with the recorded source places of the offending and context
// tokens").
func errLogicalAt(place domain.Place, msg string) error {
	return domain.NewLogicalError(place, msg)
}

// ParseRuleList consumes the entire token stream as a rule_list (§4.3),
// erroring if any trailing tokens remain unconsumed.
func ParseRuleList(tokens []lexer.Token, placeEnd domain.Place) ([]*domain.Rule, error) {
	p := New(tokens, placeEnd)
	var rules []*domain.Rule
	for !p.atEnd() {
		before := p.pos
		r, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		if r == nil {
			if p.pos != before {
				return nil, errAt(p.place(), "internal parser error: rule production advanced without returning a rule")
			}
			break
		}
		rules = append(rules, r)
	}
	if !p.atEnd() {
		return nil, errAt(p.place(), "expected a rule")
	}
	return rules, nil
}

// ParseExpressionList consumes the entire token stream as a top-level
// dependency expr_list rather than a rule body (used to parse the
// contents of a dynamic dependency's list file).
func ParseExpressionList(tokens []lexer.Token, placeEnd domain.Place) ([]domain.Dependency, error) {
	p := New(tokens, placeEnd)
	deps, err := p.parseExpressionList(nil)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, errAt(p.place(), "expected a dependency")
	}
	return deps, nil
}

// parseRule implements the `rule` production. Returns (nil, nil) when
// nothing was consumed — that is how parseRuleList detects the end of
// the rule list.
func (p *Parser) parseRule() (*domain.Rule, error) {
	start := p.pos

	var targets []domain.RuleTarget
	outputRedirectIndex := -1
	var outputRedirectAt domain.Place

	for !p.atEnd() {
		var newOutputAt domain.Place
		hasNewOutput := false
		if p.isOperator('>') {
			newOutputAt = p.place()
			hasNewOutput = true
			p.advance()
		}

		kind := domain.FileTarget
		targetAt := p.place()
		if p.isOperator('@') {
			atPlace := p.place()
			p.advance()
			if _, ok := p.name(); !ok {
				return nil, errAt(p.place(), "expected the name of a transient target after '@'")
			}
			if hasNewOutput {
				return nil, errLogicalAt(newOutputAt, "transient target must not use output redirection")
			}
			kind = domain.TransientTarget
			targetAt = atPlace
		}

		n, ok := p.name()
		if !ok {
			if hasNewOutput {
				return nil, errAt(p.place(), "expected a filename after output redirection")
			}
			break
		}
		p.advance()

		if hasNewOutput {
			if outputRedirectIndex >= 0 {
				return nil, errLogicalAt(newOutputAt, "rule must not have a second output redirection")
			}
			outputRedirectIndex = len(targets)
			outputRedirectAt = newOutputAt
		}

		targets = append(targets, domain.RuleTarget{Kind: kind, Name: n.Name, At: targetAt})
	}

	if len(targets) == 0 {
		if p.pos != start {
			return nil, errAt(p.place(), "internal parser error in target list")
		}
		return nil, nil
	}

	if err := checkSharedParams(targets); err != nil {
		return nil, err
	}

	if p.atEnd() {
		return nil, errAt(p.placeEnd, "expected a command, ':', ';', or '=' after target list")
	}

	var deps []domain.Dependency
	var inputRedirectName *domain.ParameterizedName
	var inputRedirectAt domain.Place
	hadColon := false

	if p.isOperator(':') {
		hadColon = true
		p.advance()
		var err error
		deps, inputRedirectName, inputRedirectAt, err = p.parseExpressionListTop(targets)
		if err != nil {
			return nil, err
		}
	}

	if p.atEnd() {
		return nil, errAt(p.placeEnd, "expected a command after target list")
	}

	r := &domain.Rule{
		Targets:             targets,
		OutputRedirectIndex: outputRedirectIndex,
		InputRedirectIndex:  -1,
		At:                  targets[0].At,
	}

	switch {
	case p.isCommand():
		c, _ := p.command()
		p.advance()
		r.Command = c.Text
		r.CommandAt = c.At

	case !hadColon && p.isOperator('='):
		equalAt := p.place()
		p.advance()
		if p.atEnd() {
			return nil, errAt(p.placeEnd, "expected a filename or command after '='")
		}
		if c, ok := p.command(); ok {
			if len(targets) != 1 {
				return nil, errLogicalAt(equalAt, "hardcoded content with '=' requires a single target")
			}
			if targets[0].Kind == domain.TransientTarget {
				return nil, errLogicalAt(equalAt, "hardcoded content with '=' cannot target a transient")
			}
			p.advance()
			r.IsHardcoded = true
			r.Hardcoded = c.Text
		} else {
			forceCopy := false
			for p.isOperator('!') {
				forceCopy = true
				p.advance()
			}
			if src, ok := p.name(); ok {
				p.advance()
				if len(targets) != 1 {
					return nil, errLogicalAt(equalAt, "copy rule cannot have multiple targets")
				}
				if targets[0].Kind == domain.TransientTarget {
					return nil, errLogicalAt(equalAt, "copy rule cannot target a transient")
				}
				if outputRedirectIndex >= 0 {
					return nil, errLogicalAt(outputRedirectAt, "copy rule must not use output redirection")
				}
				for _, param := range src.Name.Params {
					if !containsString(targets[0].Name.Params, param) {
						return nil, errLogicalAt(src.At, "parameter '"+param+"' in copy source must also appear in the target")
					}
				}
				if !p.isOperator(';') {
					return nil, errAt(p.place(), "expected ';' after copy dependency")
				}
				p.advance()

				r.IsCopy = true
				r.CopySource = appendCopyTail(src.Name, targets[0].Name)
				r.ForceCopy = forceCopy
				return r, nil
			}
			return nil, errAt(p.place(), "expected a filename or command after '='")
		}

	case p.isOperator(';'):
		p.advance()

	default:
		if hadColon {
			return nil, errAt(p.place(), "expected a dependency, a command, or ';'")
		}
		return nil, errAt(p.place(), "expected a command, ':', ';', or '='")
	}

	if outputRedirectIndex >= 0 {
		if r.IsHardcoded {
			return nil, errLogicalAt(outputRedirectAt, "output redirection must not be used with hardcoded content")
		}
		t := targets[outputRedirectIndex]
		if t.Kind == domain.TransientTarget {
			return nil, errLogicalAt(t.At, "output-redirected target must be a file target")
		}
		if t.Name.IsParameterized() {
			return nil, errLogicalAt(t.At, "output-redirected target must be unparameterized")
		}
	}

	if inputRedirectName != nil {
		if r.Command == "" && !r.IsHardcoded {
			return nil, errLogicalAt(inputRedirectAt, "input redirection must not be used in a rule without a command")
		}
	}
	if deps != nil {
		r.Deps = &domain.Compound{Elements: deps}
	}
	if inputRedirectName != nil {
		flat := domain.SplitCompound(r.Deps)
		r.InputRedirectIndex = indexOfInputRedirect(flat, *inputRedirectName)
	}

	return r, nil
}

// indexOfInputRedirect finds, in the flattened dependency list, the Direct
// node matching the '<'-redirected name recorded while walking the
// expression grammar. Compares the full parameterized name (fragments and
// parameter names), not just its literal skeleton, since SplitCompound
// copies each Direct's struct (to push Compound flags down onto it) so the
// original pointer identity doesn't survive flattening.
func indexOfInputRedirect(deps []domain.Dependency, name domain.ParameterizedName) int {
	for i, d := range deps {
		if direct, ok := d.(*domain.Direct); ok && sameParamName(direct.Target, name) {
			return i
		}
	}
	return -1
}

func sameParamName(a, b domain.ParameterizedName) bool {
	if len(a.Fragments) != len(b.Fragments) || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Fragments {
		if a.Fragments[i] != b.Fragments[i] {
			return false
		}
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// appendCopyTail implements append_copy from original_source/parser.hh:
// if the copy source name ends in '/', append the part of the target
// name past its last '/' (or the whole target name if it has none).
func appendCopyTail(source, target domain.ParameterizedName) domain.ParameterizedName {
	if len(source.Fragments) == 0 {
		return source
	}
	last := source.Fragments[len(source.Fragments)-1]
	if last == "" || last[len(last)-1] != '/' {
		return source
	}
	tail := target.Literal0()
	if idx := strings.LastIndexByte(tail, '/'); idx >= 0 {
		tail = tail[idx+1:]
	}
	fragments := append([]string(nil), source.Fragments...)
	fragments[len(fragments)-1] = last + tail
	return domain.ParameterizedName{Fragments: fragments, Params: source.Params}
}

func (p *Parser) isCommand() bool {
	_, ok := p.command()
	return ok
}

func checkSharedParams(targets []domain.RuleTarget) error {
	base := paramSet(targets[0].Name.Params)
	for i := 1; i < len(targets); i++ {
		if !sameSet(base, paramSet(targets[i].Name.Params)) {
			return errLogicalAt(targets[i].At, "all targets of a rule must share the same parameters")
		}
	}
	return nil
}

func paramSet(params []string) map[string]bool {
	m := make(map[string]bool, len(params))
	for _, p := range params {
		m[p] = true
	}
	return m
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
