// Package domain contains the core domain model of stu: targets, parameter-
// ized names, flags, dependencies, and rules. It has no knowledge of the
// source grammar (internal/parser), the execution graph (internal/engine),
// or any I/O; everything here is an immutable value constructed once and
// shared by reference thereafter (§9 "Shared ownership of immutable
// dependencies").
package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// Dependency is the sum type of the four dependency variants of §3. It is
// implemented as a tagged union dispatched by a type switch on the
// concrete *Direct / *Dynamic / *Compound / *Concatenated pointer types,
// the natural Go replacement for the original implementation's class
// hierarchy with dynamic downcasting (§9).
type Dependency interface {
	// Place returns the dependency's source location for diagnostics.
	Place() Place
	// dependencySealed restricts Dependency to this package's variants.
	dependencySealed()
}

// Direct is a concrete reference to a single parameterized target.
type Direct struct {
	Target       ParameterizedName
	Kind         Kind
	Flags        Flags
	FlagPlaces   TransitivePlaces
	VariableName string // non-empty iff Flags.Has(Variable)
	At           Place
}

func (d *Direct) Place() Place    { return d.At }
func (*Direct) dependencySealed() {}

// Dynamic wraps an inner dependency, representing "[inner]": the actual
// dependency list of this target is loaded, at build time, from the file
// (or transient) that inner resolves to.
type Dynamic struct {
	Inner      Dependency
	Flags      Flags
	FlagPlaces TransitivePlaces
	At         Place
}

func (d *Dynamic) Place() Place    { return d.At }
func (*Dynamic) dependencySealed() {}

// Compound is an ordered list of dependencies sharing a surrounding place
// ("(...)" in the grammar); its outer flags distribute over its members
// during SplitCompound.
type Compound struct {
	Elements []Dependency
	Flags    Flags
	At       Place
}

func (c *Compound) Place() Place    { return c.At }
func (*Compound) dependencySealed() {}

// Concatenated is an ordered list of dependencies whose semantic meaning
// is the pairwise Cartesian product ("*" in the grammar).
type Concatenated struct {
	Elements []Dependency
	At       Place
}

func (c *Concatenated) Place() Place    { return c.At }
func (*Concatenated) dependencySealed() {}

// ErrEqualsInVariableName is raised by Instantiate when a VARIABLE-flagged
// dependency's substituted name would contain '=' — such a name could
// never be a valid "NAME=value" environment entry (§4.1).
var ErrEqualsInVariableName = zerr.New("variable dependency name contains '='")

// Instantiate returns a new dependency with every parameter substituted
// using binding (§4.1).
func Instantiate(dep Dependency, binding map[string]string) (Dependency, error) {
	switch d := dep.(type) {
	case *Direct:
		name, err := d.Target.Instantiate(binding)
		if err != nil {
			return nil, err
		}
		if d.Flags.Has(Variable) && strings.Contains(name, "=") {
			return nil, zerr.With(ErrEqualsInVariableName, "name", name)
		}
		nd := *d
		nd.Target = literalName(name)
		return &nd, nil
	case *Dynamic:
		inner, err := Instantiate(d.Inner, binding)
		if err != nil {
			return nil, err
		}
		nd := *d
		nd.Inner = inner
		return &nd, nil
	case *Compound:
		elems := make([]Dependency, len(d.Elements))
		for i, e := range d.Elements {
			ne, err := Instantiate(e, binding)
			if err != nil {
				return nil, err
			}
			elems[i] = ne
		}
		nc := *d
		nc.Elements = elems
		return &nc, nil
	case *Concatenated:
		elems := make([]Dependency, len(d.Elements))
		for i, e := range d.Elements {
			ne, err := Instantiate(e, binding)
			if err != nil {
				return nil, err
			}
			elems[i] = ne
		}
		ncat := *d
		ncat.Elements = elems
		return &ncat, nil
	default:
		return nil, zerr.New("unhandled dependency variant in Instantiate")
	}
}

// literalName builds a ParameterizedName with no parameters from a plain
// string, used after substitution has resolved every parameter.
func literalName(s string) ParameterizedName {
	return ParameterizedName{Fragments: []string{s}}
}

// addFlags computes the flags a child should carry after a Compound's
// outer flags distribute onto it: F_outer | F_child, and for each
// transitive bit set in outer but unset in child, the outer's place for
// that bit is copied onto the child (§4.1 flag algebra). overwrite
// controls whether an already-set child place is replaced; SplitCompound
// always calls this with overwrite=false, matching the original
// implementation's add_flags(..., /*overwrite_places=*/false).
func addFlags(childFlags Flags, childPlaces TransitivePlaces, outerFlags Flags, outerPlaces TransitivePlaces, overwrite bool) (Flags, TransitivePlaces) {
	newFlags := outerFlags | childFlags
	newPlaces := childPlaces
	for i := 0; i < transitiveCount; i++ {
		bit := Flags(1 << uint(i))
		if outerFlags&bit == 0 {
			continue
		}
		if childFlags&bit == 0 || overwrite {
			if newPlaces[i].IsZero() || overwrite {
				newPlaces[i] = outerPlaces[i]
			}
		}
	}
	return newFlags, newPlaces
}

// SplitCompound recursively flattens Compound nodes, pushing the
// compound's outer flags down onto each child without overwriting a
// child's already-set flag place (§4.1). Dynamic children recurse into
// their inner dependency and rewrap each result. Concatenated nodes
// expand into the Cartesian product of their operands' flattened lists,
// unioning flags pairwise — the semantics the original implementation
// left unimplemented (SPEC_FULL.md §9 SUPPLEMENT), validated here against
// the package's dependency_test.go concatenation cases.
func SplitCompound(dep Dependency) []Dependency {
	switch d := dep.(type) {
	case *Direct:
		return []Dependency{d}

	case *Dynamic:
		children := SplitCompound(d.Inner)
		out := make([]Dependency, len(children))
		for i, c := range children {
			out[i] = &Dynamic{Inner: c, Flags: d.Flags, FlagPlaces: d.FlagPlaces, At: d.At}
		}
		return out

	case *Compound:
		var out []Dependency
		for _, e := range d.Elements {
			for _, flat := range SplitCompound(e) {
				out = append(out, pushFlags(flat, d.Flags, transitivePlacesOf(d)))
			}
		}
		return out

	case *Concatenated:
		if len(d.Elements) == 0 {
			return nil
		}
		product := SplitCompound(d.Elements[0])
		for _, operand := range d.Elements[1:] {
			product = cartesian(product, SplitCompound(operand))
		}
		return product

	default:
		return nil
	}
}

// transitivePlacesOf returns a TransitivePlaces populated with the
// Compound's own place for every transitive bit it sets, since a Compound
// carries one place for the whole group rather than one per flag.
func transitivePlacesOf(c *Compound) TransitivePlaces {
	var places TransitivePlaces
	for i := range places {
		places[i] = c.At
	}
	return places
}

// pushFlags applies the Compound/Concatenated flag-union rule to a single
// flattened Direct or Dynamic dependency.
func pushFlags(dep Dependency, outerFlags Flags, outerPlaces TransitivePlaces) Dependency {
	switch d := dep.(type) {
	case *Direct:
		nd := *d
		nd.Flags, nd.FlagPlaces = addFlags(d.Flags, d.FlagPlaces, outerFlags, outerPlaces, false)
		return &nd
	case *Dynamic:
		nd := *d
		nd.Flags, nd.FlagPlaces = addFlags(d.Flags, d.FlagPlaces, outerFlags, outerPlaces, false)
		return &nd
	default:
		return dep
	}
}

// cartesian computes the pairwise cross-product of two flattened
// dependency lists, unioning each pair's flags the same way a Compound
// unions outer and child flags.
func cartesian(left, right []Dependency) []Dependency {
	out := make([]Dependency, 0, len(left)*len(right))
	for _, l := range left {
		lf, lp := flagsOf(l)
		for _, r := range right {
			out = append(out, pushFlags(r, lf, lp))
		}
	}
	return out
}

func flagsOf(dep Dependency) (Flags, TransitivePlaces) {
	switch d := dep.(type) {
	case *Direct:
		return d.Flags, d.FlagPlaces
	case *Dynamic:
		return d.Flags, d.FlagPlaces
	default:
		return 0, TransitivePlaces{}
	}
}

// CloneShallow copies the top node only, matching the original
// implementation's clone_dependency (§4.1, §9).
func CloneShallow(dep Dependency) Dependency {
	switch d := dep.(type) {
	case *Direct:
		nd := *d
		return &nd
	case *Dynamic:
		nd := *d
		return &nd
	case *Compound:
		nd := *d
		nd.Elements = append([]Dependency(nil), d.Elements...)
		return &nd
	case *Concatenated:
		nd := *d
		nd.Elements = append([]Dependency(nil), d.Elements...)
		return &nd
	default:
		return dep
	}
}

// Style selects one of the three diagnostic renderings of §4.1.
type Style int

const (
	// StyleTerse is the compact rendering used inline in messages.
	StyleTerse Style = iota
	// StyleWord quotes the name as a standalone word, the way a shell
	// argument would be quoted.
	StyleWord
	// StyleOut is the rendering used for the final "needed by" target name.
	StyleOut
)

// Format renders dep in the requested style (§4.1).
func Format(dep Dependency, style Style) string {
	switch d := dep.(type) {
	case *Direct:
		name := d.Target.String()
		if d.Kind == TransientTarget {
			name = "@" + name
		}
		prefix := d.Flags.Format()
		switch style {
		case StyleWord:
			return fmt.Sprintf("%s%q", prefix, name)
		case StyleOut:
			return name
		default:
			return prefix + name
		}
	case *Dynamic:
		return "[" + Format(d.Inner, style) + "]"
	case *Compound:
		parts := make([]string, len(d.Elements))
		for i, e := range d.Elements {
			parts[i] = Format(e, style)
		}
		return "(" + strings.Join(parts, " ") + ")"
	case *Concatenated:
		parts := make([]string, len(d.Elements))
		for i, e := range d.Elements {
			parts[i] = Format(e, style)
		}
		return strings.Join(parts, "*")
	default:
		return "?"
	}
}

// IsUnparameterized reports whether every nested parameterized name has
// zero parameters (§3).
func IsUnparameterized(dep Dependency) bool {
	switch d := dep.(type) {
	case *Direct:
		return !d.Target.IsParameterized()
	case *Dynamic:
		return IsUnparameterized(d.Inner)
	case *Compound:
		for _, e := range d.Elements {
			if !IsUnparameterized(e) {
				return false
			}
		}
		return true
	case *Concatenated:
		for _, e := range d.Elements {
			if !IsUnparameterized(e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
