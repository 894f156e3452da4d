// Package ruleset indexes a parsed rule set for target lookup: exact-match
// on unparameterized targets, linear name-unification scan on
// parameterized ones (§4.2).
package ruleset

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"

	"go.stu.dev/stu/internal/core/domain"
)

// RuleSet holds every declared rule, indexed for Lookup.
type RuleSet struct {
	// unparameterized maps (kind, literal name) to the rule declaring it.
	unparameterized map[key]*domain.Rule
	// parameterized holds one entry per (rule, target-within-rule) pair
	// whose target name carries parameters, scanned linearly by Lookup.
	parameterized []entry
}

type key struct {
	kind domain.Kind
	name string
}

type entry struct {
	rule         *domain.Rule
	targetIndex  int
	pattern      *regexp.Regexp
	params       []string
	nameHasSlash bool // literal skeleton of the rule's name contains '/'
}

// New builds an empty RuleSet.
func New() *RuleSet {
	return &RuleSet{unparameterized: make(map[key]*domain.Rule)}
}

// ErrDuplicateUnparameterizedRule is raised by Add when two rules declare
// the exact same unparameterized target.
var ErrDuplicateUnparameterizedRule = zerr.New("duplicate rule for target")

// Add indexes every target of r. It is a LOGICAL error for two rules to
// declare the identical unparameterized target; parameterized targets are
// never rejected at Add time — ambiguity among them is a Lookup-time
// concern (§4.2).
func (rs *RuleSet) Add(r *domain.Rule) error {
	for i, t := range r.Targets {
		if !t.Name.IsParameterized() {
			k := key{kind: t.Kind, name: t.Name.Literal()}
			if _, ok := rs.unparameterized[k]; ok {
				return zerr.With(zerr.With(ErrDuplicateUnparameterizedRule, "target", k.name), "place", t.At.String())
			}
			rs.unparameterized[k] = r
			continue
		}
		pattern, err := compilePattern(t.Name)
		if err != nil {
			return err
		}
		rs.parameterized = append(rs.parameterized, entry{
			rule:         r,
			targetIndex:  i,
			pattern:      pattern,
			params:       t.Name.Params,
			nameHasSlash: strings.Contains(t.Name.Literal0(), "/"),
		})
	}
	return nil
}

// compilePattern builds a greedy-capture regular expression from a
// parameterized name: each literal fragment is quoted verbatim and each
// parameter becomes a capturing group, so unification always binds
// parameters to the maximal non-empty substrings consistent with the
// surrounding literal text (§4.2 "maximal non-empty substrings"), the
// same greedy-match convention every make-family tool uses for pattern
// targets. regexp is the standard library's only pattern-matching
// facility and no example repo in the pack brings a third-party
// alternative for this narrow a need, so it is used directly rather than
// hand-rolling backtracking search.
func compilePattern(name domain.ParameterizedName) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	b.WriteString(regexp.QuoteMeta(name.Fragments[0]))
	for i := range name.Params {
		b.WriteString("(.+)")
		b.WriteString(regexp.QuoteMeta(name.Fragments[i+1]))
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, zerr.Wrap(err, "compiling rule pattern")
	}
	return re, nil
}

// Result is the successful outcome of a Lookup.
type Result struct {
	Rule    *domain.Rule
	Binding map[string]string
}

// ErrEmptyBoundValue is raised when name unification would bind an empty
// parameter value.
var ErrEmptyBoundValue = zerr.New("bound parameter value is empty")

// ErrSlashInBoundValue is raised when a bound parameter value contains
// '/' while the rule's target name skeleton contains none (§4.2).
var ErrSlashInBoundValue = zerr.New("bound parameter value contains '/'")

// ErrNulInBoundValue is raised when a bound parameter value contains a
// NUL byte.
var ErrNulInBoundValue = zerr.New("bound parameter value contains NUL byte")

// Lookup resolves target to its rule and parameter binding (§4.2).
// Returns domain.ErrNoRule if no rule applies, domain.ErrAmbiguousRule if
// more than one parameterized rule matches after constraint checking.
func (rs *RuleSet) Lookup(target domain.Target) (Result, error) {
	name := target.Name.String()
	if r, ok := rs.unparameterized[key{kind: target.Kind, name: name}]; ok {
		return Result{Rule: r, Binding: map[string]string{}}, nil
	}

	var applicable []Result
	for _, e := range rs.parameterized {
		if e.rule.Targets[e.targetIndex].Kind != target.Kind {
			continue
		}
		m := e.pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		binding := make(map[string]string, len(e.params))
		ok := true
		for i, p := range e.params {
			v := m[i+1]
			if err := validateBoundValue(v, e.nameHasSlash); err != nil {
				ok = false
				break
			}
			binding[p] = v
		}
		if !ok {
			continue
		}
		applicable = append(applicable, Result{Rule: e.rule, Binding: binding})
	}

	switch len(applicable) {
	case 0:
		return Result{}, domain.ErrNoRule
	case 1:
		return applicable[0], nil
	default:
		return Result{}, domain.ErrAmbiguousRule
	}
}

func validateBoundValue(v string, ruleNameHasSlash bool) error {
	if v == "" {
		return ErrEmptyBoundValue
	}
	if !ruleNameHasSlash && strings.Contains(v, "/") {
		return ErrSlashInBoundValue
	}
	if strings.IndexByte(v, 0) >= 0 {
		return ErrNulInBoundValue
	}
	return nil
}
