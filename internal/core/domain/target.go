package domain

// Kind distinguishes the two kinds of target stu can build.
type Kind int

const (
	// FileTarget is a target backed by a file on disk.
	FileTarget Kind = iota
	// TransientTarget is a named dependency bundle with no on-disk artifact;
	// it is rebuilt each time it is referenced.
	TransientTarget
)

// String renders the kind the way it appears in diagnostics and the
// source grammar ("@name" marks a transient target).
func (k Kind) String() string {
	if k == TransientTarget {
		return "transient"
	}
	return "file"
}

// Target is a pair (kind, name) identifying a buildable thing, together
// with the dynamic depth at which it is referenced: depth 0 is the target
// itself, depth d>0 is "the dependency list of the target at depth d-1".
//
// Target is a plain comparable value so it can be used directly as a map
// key for interning (the execution arena, §4.4) and for the rule-set
// lookup index (§4.2).
type Target struct {
	Kind  Kind
	Name  InternedString
	Depth uint8
}

// MaxDepth is the largest dynamic depth stu supports (§3: "depth up to at
// least 31"). FlagStack.PeelDynamic refuses to grow a stack past this
// depth.
const MaxDepth = 31

// String renders the target the way stu's terse diagnostics format does:
// "@name" for transient targets, bracket-nested per dynamic depth.
func (t Target) String() string {
	s := t.Name.String()
	if t.Kind == TransientTarget {
		s = "@" + s
	}
	for i := uint8(0); i < t.Depth; i++ {
		s = "[" + s + "]"
	}
	return s
}
