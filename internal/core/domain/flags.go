package domain

import "strings"

// Flags is a bit set over the per-edge dependency modifiers of §3. The
// bit layout mirrors the original Stu implementation's flags.hh: the
// simplest dependency is zero, and every flag enables one feature.
type Flags uint32

const (
	// Persistent (-p): ignore this dependency's mtime when deciding to rebuild.
	Persistent Flags = 1 << iota
	// Optional (-o): don't fail if the dependency is absent.
	Optional
	// Trivial (-t): this edge alone never forces a rebuild.
	Trivial
	// IgnoreTimestamp (!): never compare this dependency's mtime.
	IgnoreTimestamp
	// Read ('<'): this is the input-redirected dependency.
	Read
	// Variable ($[...]): the dependency's file content becomes an
	// environment variable for the command.
	Variable
	// OverrideTrivial is set only on a graph Edge during the second rebuild pass
	// (§4.4) to mean "a non-trivial dependency also demanded a rebuild".
	// It is never set on a parsed Dependency.
	OverrideTrivial
	// NewlineSeparated (-n): the dynamic dependency's file is a plain list
	// of newline-separated names.
	NewlineSeparated
	// NulSeparated (-0): the dynamic dependency's file is a plain list of
	// NUL-separated names.
	NulSeparated
)

// transitiveCount is the number of flag bits that propagate across dynamic
// expansion (§3: "The first three are transitive").
const transitiveCount = 3

// transitive is the mask of flags that propagate across a Dynamic wrapper.
const transitive = Persistent | Optional | Trivial

// TransitiveMask returns the mask of flags that propagate across a
// Dynamic wrapper (Persistent, Optional, Trivial), for callers outside
// this package that need to isolate just the transitive bits of a flag
// set (e.g. the execution graph's dynamic-expansion flag inheritance).
func TransitiveMask() Flags { return transitive }

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Any reports whether at least one bit in mask is set.
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }

// flagChars holds one rendering character per flag bit, in bit order. It is
// not a copy of the original flags.hh FLAGS_CHARS table: IgnoreTimestamp and
// Read render as the grammar's own '!' and '<' operators.
var flagChars = [...]byte{'p', 'o', 't', '!', '<', '$', 'T', 'n', '0'}

// Format renders the flag set the way verbose diagnostics show it:
// "-p -o " style tokens, one per set bit, empty when flags are empty.
// Carried from the original implementation's flags_format (see
// SPEC_FULL.md §9 SUPPLEMENT).
func (f Flags) Format() string {
	var b strings.Builder
	for i, c := range flagChars {
		if f&(1<<uint(i)) != 0 {
			b.WriteByte('-')
			b.WriteByte(c)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// TransitivePlaces records, for each transitive flag bit, the source Place
// where that flag was set (one TransitivePlaces per dependency or per
// FlagStack layer, so it has no depth dimension of its own) — used to build
// "needed by" diagnostic chains that point at the declaration that caused
// a flag to propagate.
type TransitivePlaces [transitiveCount]Place
