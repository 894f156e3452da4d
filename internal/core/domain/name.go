package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// ParameterizedName is an alternating sequence of literal text fragments
// and parameter names such that the rendered name is
// fragments[0] + value(params[0]) + fragments[1] + ... + fragments[n].
// len(fragments) == len(params)+1 always holds.
//
// Invariants (§3): consecutive parameters are separated by at least one
// literal character (fragments[i] != "" for 0 < i < len(params)); no
// parameter name repeats.
type ParameterizedName struct {
	Fragments []string
	Params    []string
}

// ErrDuplicateParameter is raised when a parameterized name repeats a
// parameter name.
var ErrDuplicateParameter = zerr.New("duplicate parameter in name")

// ErrEmptySeparator is raised when two parameters in a name are not
// separated by at least one literal character.
var ErrEmptySeparator = zerr.New("parameters not separated by literal text")

// NewParameterizedName validates and constructs a ParameterizedName.
func NewParameterizedName(fragments []string, params []string) (ParameterizedName, error) {
	if len(fragments) != len(params)+1 {
		return ParameterizedName{}, zerr.New("malformed parameterized name: fragment/param count mismatch")
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p] {
			return ParameterizedName{}, zerr.With(ErrDuplicateParameter, "parameter", p)
		}
		seen[p] = true
	}
	for i := 1; i < len(params); i++ {
		if fragments[i] == "" {
			return ParameterizedName{}, zerr.With(ErrEmptySeparator, "between", strings.Join([]string{params[i-1], params[i]}, ","))
		}
	}
	return ParameterizedName{Fragments: fragments, Params: params}, nil
}

// IsParameterized reports whether the name contains any parameters.
func (n ParameterizedName) IsParameterized() bool {
	return len(n.Params) > 0
}

// Literal returns the plain name text when the name carries no parameters;
// it is only valid to call when IsParameterized() is false.
func (n ParameterizedName) Literal() string {
	if len(n.Fragments) == 0 {
		return ""
	}
	return n.Fragments[0]
}

// ErrUnboundParameter is raised by Instantiate when a required binding is
// missing.
var ErrUnboundParameter = zerr.New("unbound parameter")

// ErrEmptyParameterValue is raised when a bound parameter value is empty.
var ErrEmptyParameterValue = zerr.New("empty parameter value")

// ErrSlashInParameterValue is raised when a bound parameter value contains
// '/' while the name itself contains none (§3, §4.2).
var ErrSlashInParameterValue = zerr.New("parameter value contains '/'")

// Instantiate substitutes every parameter using binding and returns the
// concrete rendered name.
func (n ParameterizedName) Instantiate(binding map[string]string) (string, error) {
	var b strings.Builder
	nameHasSlash := strings.Contains(n.Literal0(), "/")
	b.WriteString(n.Fragments[0])
	for i, p := range n.Params {
		v, ok := binding[p]
		if !ok {
			return "", zerr.With(ErrUnboundParameter, "parameter", p)
		}
		if v == "" {
			return "", zerr.With(ErrEmptyParameterValue, "parameter", p)
		}
		if !nameHasSlash && strings.Contains(v, "/") {
			return "", zerr.With(ErrSlashInParameterValue, "parameter", p)
		}
		b.WriteString(v)
		b.WriteString(n.Fragments[i+1])
	}
	return b.String(), nil
}

// Literal0 reconstructs the name's literal skeleton (fragments joined
// without parameter values) solely to test it for a literal '/', per the
// no-slash-in-bound-value rule of §3 and §4.2, which is keyed off whether
// the *name itself* (not any bound value) contains a slash.
func (n ParameterizedName) Literal0() string {
	return strings.Join(n.Fragments, "")
}

// String renders the parameterized name with each parameter written as
// "$p" for diagnostics.
func (n ParameterizedName) String() string {
	var b strings.Builder
	b.WriteString(n.Fragments[0])
	for i, p := range n.Params {
		b.WriteString("$")
		b.WriteString(p)
		b.WriteString(n.Fragments[i+1])
	}
	return b.String()
}
