package domain

import "go.trai.ch/zerr"

// Rule is the parsed form of one rule declaration (§3). All targets in one
// rule share the exact same parameter set (enforced by the parser, §4.3).
// At most one of Command, Hardcoded, or CopySource is set; a rule ending
// in ';' has none.
type Rule struct {
	Targets     []RuleTarget
	Deps        Dependency // nil for a rule with no dependency list
	Command     string
	CommandAt   Place
	IsHardcoded bool
	Hardcoded   string

	// InputRedirectIndex is the index into the flattened dependency list
	// (post SplitCompound) of the '<'-redirected dependency, or -1.
	InputRedirectIndex int
	// OutputRedirectIndex is the index into Targets of the '>'-redirected
	// target, or -1.
	OutputRedirectIndex int

	// CopySource is set for a copy rule ("= filename"); it keeps its
	// parameter structure (rather than a flattened literal) so a
	// parameterized copy rule's source can be instantiated against the
	// execution's own binding at build time (§4.4 "Copy rules"). ForceCopy
	// is the '!' prefix that inverts the staleness check.
	IsCopy     bool
	CopySource ParameterizedName
	ForceCopy  bool

	At Place
}

// RuleTarget is one of a rule's (possibly several) target declarations.
type RuleTarget struct {
	Kind Kind
	Name ParameterizedName
	At   Place
}

// HasCommand reports whether this rule executes a shell command (as
// opposed to hardcoded content or a copy).
func (r *Rule) HasCommand() bool {
	return !r.IsHardcoded && !r.IsCopy
}

// Params returns the parameter set shared by every target in the rule, as
// declared on the first target (the parser has already verified they all
// match).
func (r *Rule) Params() []string {
	if len(r.Targets) == 0 {
		return nil
	}
	return r.Targets[0].Name.Params
}

// Validation errors for rule-level semantic checks (§4.3). Each is raised
// with a LOGICAL kind and the offending Place attached via zerr.With.
var (
	ErrMultipleInputRedirects  = zerr.New("rule has more than one input-redirected dependency")
	ErrMultipleOutputRedirects = zerr.New("rule has more than one output-redirected target")
	ErrOutputRedirectTransient = zerr.New("output-redirected target must be a file target")
	ErrOutputRedirectParam     = zerr.New("output-redirected target must be unparameterized")
	ErrMultiTargetHardcoded    = zerr.New("multi-target rule cannot have hardcoded content")
	ErrMultiTargetCopy         = zerr.New("multi-target rule cannot be a copy rule")
	ErrTransientHardcoded      = zerr.New("transient target cannot have hardcoded content")
	ErrCopyTransientTarget     = zerr.New("copy rule cannot have a transient target")
	ErrCopyOptionalOrTrivial   = zerr.New("copy rule dependency cannot be optional or trivial")
	ErrCopyMultipleTargets     = zerr.New("copy rule cannot have multiple targets")
	ErrCopyOutputRedirect      = zerr.New("copy rule cannot have output redirection")
	ErrCopyUnboundParam        = zerr.New("copy source parameter does not appear in target")
)

// Validate checks the rule-level semantic rules of §4.3 that are not
// already enforced structurally by the parser's grammar (those are
// re-checked here so a hand-built Rule, e.g. in tests, is held to the same
// invariants as a parsed one).
func (r *Rule) Validate() error {
	if r.IsCopy {
		if len(r.Targets) != 1 {
			return tag(zerr.With(ErrCopyMultipleTargets, "place", r.At.String()), Logical, r.At)
		}
		if r.Targets[0].Kind == TransientTarget {
			return tag(zerr.With(ErrCopyTransientTarget, "place", r.Targets[0].At.String()), Logical, r.Targets[0].At)
		}
		if r.OutputRedirectIndex >= 0 {
			return tag(zerr.With(ErrCopyOutputRedirect, "place", r.At.String()), Logical, r.At)
		}
		return nil
	}

	if len(r.Targets) > 1 {
		if r.IsHardcoded {
			return tag(zerr.With(ErrMultiTargetHardcoded, "place", r.At.String()), Logical, r.At)
		}
	}
	if r.IsHardcoded {
		for _, t := range r.Targets {
			if t.Kind == TransientTarget {
				return tag(zerr.With(ErrTransientHardcoded, "place", t.At.String()), Logical, t.At)
			}
		}
	}
	if r.OutputRedirectIndex >= 0 {
		t := r.Targets[r.OutputRedirectIndex]
		if t.Kind == TransientTarget {
			return tag(zerr.With(ErrOutputRedirectTransient, "place", t.At.String()), Logical, t.At)
		}
		if t.Name.IsParameterized() {
			return tag(zerr.With(ErrOutputRedirectParam, "place", t.At.String()), Logical, t.At)
		}
	}
	return nil
}
