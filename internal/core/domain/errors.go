package domain

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

// ErrorKind is stu's error taxonomy (§7): each error raised anywhere in the
// engine carries one of these, attached as a "kind" field via zerr.With so
// the top-level reporter (internal/format) can choose the right exit code
// and message prefix without re-deriving it from the error chain.
type ErrorKind string

const (
	// Syntax: malformed token stream or grammar violation.
	Syntax ErrorKind = "syntax"
	// Logical: structurally legal but semantically invalid.
	Logical ErrorKind = "logical"
	// Build: a child command exited nonzero or died on signal.
	Build ErrorKind = "build"
	// System: an OS-level failure (stat/open/fork/rename).
	System ErrorKind = "system"
	// Fatal: an invariant violation. Aborts immediately.
	Fatal ErrorKind = "fatal"
)

// ExitCode returns the process exit code associated with an ErrorKind, per §6.
func (k ErrorKind) ExitCode() int {
	switch k {
	case Syntax, Logical:
		return 2
	default:
		return 1
	}
}

const kindField = "kind"

func withKind(err error, kind ErrorKind) error {
	return zerr.With(err, kindField, string(kind))
}

// tagged carries an ErrorKind and an optional Place alongside a zerr-
// decorated cause, so internal/format can recover both with errors.As
// instead of reaching into zerr's own field store (whose accessor API
// this module never needs elsewhere). zerr.With still carries the
// structured "kind"/"place" fields for its own %+v report; tagged is an
// additional, cheaply-typed view of the same two facts.
type tagged struct {
	cause error
	kind  ErrorKind
	place Place
}

func (t *tagged) Error() string { return t.cause.Error() }
func (t *tagged) Unwrap() error { return t.cause }

// Format delegates to the cause's own fmt.Formatter (zerr errors render a
// stack trace and their With fields under %+v) so wrapping in tagged never
// flattens that report to a plain Error() string.
func (t *tagged) Format(s fmt.State, verb rune) {
	if f, ok := t.cause.(fmt.Formatter); ok {
		f.Format(s, verb)
		return
	}
	_, _ = fmt.Fprint(s, t.cause.Error())
}

func tag(err error, kind ErrorKind, place Place) error {
	return &tagged{cause: err, kind: kind, place: place}
}

// KindOf reports the ErrorKind attached by NewSyntaxError, NewLogicalError,
// NewSystemError, NewFatalError, or NewBuildError, defaulting to FATAL for
// an error that never passed through one of those constructors.
func KindOf(err error) ErrorKind {
	var t *tagged
	if errors.As(err, &t) {
		return t.kind
	}
	return Fatal
}

// PlaceOf reports the Place attached by NewSyntaxError or NewLogicalError,
// the zero Place otherwise.
func PlaceOf(err error) Place {
	var t *tagged
	if errors.As(err, &t) {
		return t.place
	}
	return Place{}
}

func syntaxError(msg string) error  { return withKind(zerr.New(msg), Syntax) }
func logicalError(msg string) error { return withKind(zerr.New(msg), Logical) }
func fatalError(msg string) error   { return withKind(zerr.New(msg), Fatal) }

// NewSyntaxError constructs a SYNTAX error at place.
func NewSyntaxError(place Place, msg string) error {
	return tag(zerr.With(syntaxError(msg), "place", place.String()), Syntax, place)
}

// NewLogicalError constructs a LOGICAL error at place.
func NewLogicalError(place Place, msg string) error {
	return tag(zerr.With(logicalError(msg), "place", place.String()), Logical, place)
}

// NewSystemError wraps an OS-level error as SYSTEM.
func NewSystemError(cause error, msg string) error {
	return tag(withKind(zerr.Wrap(cause, msg), System), System, Place{})
}

// NewFatalError constructs a FATAL error.
func NewFatalError(msg string) error {
	return tag(fatalError(msg), Fatal, Place{})
}

// NewBuildError reports a failed child command.
func NewBuildError(target string, exitCode int) error {
	err := withKind(zerr.New("command failed"), Build)
	err = zerr.With(err, "target", target)
	err = zerr.With(err, "exit_code", exitCode)
	return tag(err, Build, Place{})
}

// Sentinel errors referenced by name elsewhere in the domain package.
var (
	// ErrAmbiguousRule is raised when more than one rule matches a target
	// (§4.2).
	ErrAmbiguousRule = tag(logicalError("ambiguous rule match"), Logical, Place{})
	// ErrNoRule is raised when a FILE target has no matching rule and no
	// file exists, or a TRANSIENT target has no matching rule at all (§4.4).
	ErrNoRule = tag(logicalError("no rule to make target"), Logical, Place{})
	// ErrCycle names the FATAL dependency-cycle error. Nothing raises it:
	// graph.ExpandDynamic reports a cycle with its own NewFatalError.
	ErrCycle = tag(fatalError("dependency cycle detected"), Fatal, Place{})
)
