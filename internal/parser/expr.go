package parser

import (
	"strings"

	"go.stu.dev/stu/internal/core/domain"
)

// inputRedirectState threads the "at most one <-redirected dependency
// per rule" check through the recursive expression grammar, mirroring
// original_source/parser.hh's place_param_name_input/place_input
// out-parameters.
type inputRedirectState struct {
	name *domain.ParameterizedName
	at   domain.Place
}

// parseExpressionListTop parses a rule body's dependency list and
// returns it flattened into a Compound's element slice, plus the
// single allowed input-redirected dependency's name (nil if none).
func (p *Parser) parseExpressionListTop(targets []domain.RuleTarget) ([]domain.Dependency, *domain.ParameterizedName, domain.Place, error) {
	var state inputRedirectState
	deps, err := p.parseExpressionList(&state)
	if err != nil {
		return nil, nil, domain.Place{}, err
	}
	return deps, state.name, state.at, nil
}

// parseExpressionList implements expr_list := expr* (§4.3).
func (p *Parser) parseExpressionList(state *inputRedirectState) ([]domain.Dependency, error) {
	var out []domain.Dependency
	for !p.atEnd() {
		deps, ok, err := p.parseExpression(state)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, deps...)
	}
	return out, nil
}

// parseExpression implements the `expr` production (§4.3): grouping,
// dynamic, and the four prefix-flag/variable/redirect forms.
func (p *Parser) parseExpression(state *inputRedirectState) ([]domain.Dependency, bool, error) {
	switch {
	case p.isOperator('('):
		return p.parseGroup(state)
	case p.isOperator('['):
		return p.parseDynamic(state)
	case p.isOperator('!'):
		return p.parsePrefixFlag('!', domain.IgnoreTimestamp, state)
	case p.isOperator('?'):
		return p.parsePrefixFlag('?', domain.Optional, state)
	case p.isOperator('&'):
		return p.parsePrefixFlag('&', domain.Trivial, state)
	}

	if dep, ok, err := p.parseVariableDependency(state); err != nil {
		return nil, false, err
	} else if ok {
		return []domain.Dependency{dep}, true, nil
	}

	if dep, ok, err := p.parseRedirectDependency(state); err != nil {
		return nil, false, err
	} else if ok {
		return []domain.Dependency{dep}, true, nil
	}

	return nil, false, nil
}

func (p *Parser) parseGroup(state *inputRedirectState) ([]domain.Dependency, bool, error) {
	openAt := p.place()
	p.advance()
	elems, err := p.parseExpressionList(state)
	if err != nil {
		return nil, false, err
	}
	if p.atEnd() {
		return nil, false, errAt(p.placeEnd, "expected ')' after opening '('")
	}
	if !p.isOperator(')') {
		return nil, false, errAt(p.place(), "expected ')'")
	}
	p.advance()
	return []domain.Dependency{&domain.Compound{Elements: elems, At: openAt}}, true, nil
}

func (p *Parser) parseDynamic(state *inputRedirectState) ([]domain.Dependency, bool, error) {
	openAt := p.place()
	p.advance()
	elems, err := p.parseExpressionList(state)
	if err != nil {
		return nil, false, err
	}
	if p.atEnd() {
		return nil, false, errAt(p.placeEnd, "expected ']' after opening '['")
	}
	if !p.isOperator(']') {
		return nil, false, errAt(p.place(), "expected ']'")
	}
	p.advance()

	out := make([]domain.Dependency, len(elems))
	for i, e := range elems {
		if at, bad := forbiddenInDynamic(e); bad {
			return nil, false, errLogicalAt(at, "'$[...]' and '@' dependencies must not appear within a dynamic dependency")
		}
		out[i] = &domain.Dynamic{Inner: e, At: openAt}
	}
	return out, true, nil
}

// forbiddenInDynamic walks dep looking for a Variable-flagged dependency or
// a transient-target reference, both of which §4.3 forbids anywhere inside
// a '[...]' dynamic dependency (not just at its top level).
func forbiddenInDynamic(dep domain.Dependency) (domain.Place, bool) {
	switch d := dep.(type) {
	case *domain.Direct:
		if d.Flags.Has(domain.Variable) || d.Kind == domain.TransientTarget {
			return d.At, true
		}
	case *domain.Dynamic:
		return forbiddenInDynamic(d.Inner)
	case *domain.Compound:
		for _, e := range d.Elements {
			if at, bad := forbiddenInDynamic(e); bad {
				return at, true
			}
		}
	case *domain.Concatenated:
		for _, e := range d.Elements {
			if at, bad := forbiddenInDynamic(e); bad {
				return at, true
			}
		}
	}
	return domain.Place{}, false
}

func (p *Parser) parsePrefixFlag(op byte, flag domain.Flags, state *inputRedirectState) ([]domain.Dependency, bool, error) {
	flagAt := p.place()
	p.advance()
	elems, ok, err := p.parseExpression(state)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, errAt(p.place(), "expected a dependency after prefix operator")
	}
	for i, e := range elems {
		elems[i] = applyFlag(e, flag, flagAt)
	}
	return elems, true, nil
}

// applyFlag sets flag (and records its place for transitive propagation)
// on a Direct or Dynamic dependency's own flag set.
func applyFlag(dep domain.Dependency, flag domain.Flags, at domain.Place) domain.Dependency {
	switch d := dep.(type) {
	case *domain.Direct:
		nd := *d
		nd.Flags |= flag
		setTransitivePlace(&nd.FlagPlaces, flag, at)
		return &nd
	case *domain.Dynamic:
		nd := *d
		nd.Flags |= flag
		setTransitivePlace(&nd.FlagPlaces, flag, at)
		return &nd
	case *domain.Compound:
		nd := *d
		nd.Flags |= flag
		return &nd
	default:
		return dep
	}
}

func setTransitivePlace(places *domain.TransitivePlaces, flag domain.Flags, at domain.Place) {
	for i := 0; i < 3; i++ {
		if flag == domain.Flags(1<<uint(i)) {
			places[i] = at
		}
	}
}

// parseVariableDependency implements `$[flags? '<'? name ('=' name)? ]`.
func (p *Parser) parseVariableDependency(state *inputRedirectState) (domain.Dependency, bool, error) {
	if !p.isOperator('$') {
		return nil, false, nil
	}
	dollarAt := p.place()
	p.advance()
	if p.atEnd() || !p.isOperator('[') {
		return nil, false, errAt(p.place(), "expected '[' after '$'")
	}
	p.advance()

	var flags domain.Flags = domain.Variable
	for p.isOperator('!') || p.isOperator('&') || p.isOperator('?') {
		if p.isOperator('!') {
			flags |= domain.IgnoreTimestamp
		} else if p.isOperator('&') {
			flags |= domain.Trivial
		}
		// '?' inside $[...] is rejected per §4.3 ("$[...] may not contain ?")
		if p.isOperator('?') {
			return nil, false, errLogicalAt(p.place(), "'?' must not appear within a variable dependency")
		}
		p.advance()
	}

	hasInput := false
	var inputAt domain.Place
	if p.isOperator('<') {
		hasInput = true
		inputAt = p.place()
		p.advance()
	}

	n, ok := p.name()
	if !ok {
		return nil, false, errAt(p.place(), "expected a filename in variable dependency")
	}
	p.advance()

	if hasInput {
		if state != nil && state.name != nil {
			return nil, false, errLogicalAt(n.At, "rule must not have a second input-redirected dependency")
		}
	}

	for _, frag := range n.Name.Fragments {
		if strings.Contains(frag, "=") {
			return nil, false, errLogicalAt(n.At, "name of variable dependency must not contain '='")
		}
	}

	variableName := ""
	name := n.Name
	if p.isOperator('=') {
		p.advance()
		if p.atEnd() {
			return nil, false, errAt(p.placeEnd, "expected a filename after '=' in variable dependency")
		}
		aliasName, ok := p.name()
		if !ok {
			return nil, false, errAt(p.place(), "expected a filename after '=' in variable dependency")
		}
		p.advance()
		if n.Name.IsParameterized() {
			return nil, false, errLogicalAt(n.At, "variable name must be unparameterized")
		}
		variableName = n.Name.Literal()
		name = aliasName.Name
	}

	if !p.isOperator(']') {
		return nil, false, errAt(p.place(), "expected ']' closing '$['")
	}
	p.advance()

	if hasInput {
		nameCopy := name
		if state != nil {
			state.name = &nameCopy
			state.at = inputAt
		}
	}

	return &domain.Direct{
		Target:       name,
		Kind:         domain.FileTarget,
		Flags:        flags,
		VariableName: variableName,
		At:           dollarAt,
	}, true, nil
}

// parseRedirectDependency implements `<? @? name` (§4.3).
func (p *Parser) parseRedirectDependency(state *inputRedirectState) (domain.Dependency, bool, error) {
	hasInput := false
	var inputAt domain.Place
	if p.isOperator('<') {
		hasInput = true
		inputAt = p.place()
		p.advance()
	}

	hasTransient := false
	var atAt domain.Place
	if p.isOperator('@') {
		atAt = p.place()
		if hasInput {
			return nil, false, errAt(atAt, "expected a filename, not '@' after input redirection")
		}
		p.advance()
		hasTransient = true
	}

	n, ok := p.name()
	if !ok {
		if hasInput {
			return nil, false, errAt(p.place(), "expected a filename after input redirection")
		}
		if hasTransient {
			return nil, false, errAt(p.place(), "expected the name of a transient target after '@'")
		}
		return nil, false, nil
	}
	p.advance()

	if hasInput {
		if state != nil && state.name != nil {
			return nil, false, errLogicalAt(n.At, "rule must not have a second input-redirected dependency")
		}
		if state != nil {
			nameCopy := n.Name
			state.name = &nameCopy
			state.at = inputAt
		}
	}

	kind := domain.FileTarget
	at := n.At
	if hasTransient {
		kind = domain.TransientTarget
		at = atAt
	}

	return &domain.Direct{Target: n.Name, Kind: kind, At: at}, true, nil
}
