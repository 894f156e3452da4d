package domain

import "fmt"

// Place identifies a location within a source file, used to annotate
// dependencies and rules for diagnostics.
type Place struct {
	File   string
	Line   int
	Column int
}

// String renders the place as "<file>:<line>:<col>".
func (p Place) String() string {
	if p.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// IsZero reports whether the place carries no location information.
func (p Place) IsZero() bool {
	return p.File == "" && p.Line == 0 && p.Column == 0
}
