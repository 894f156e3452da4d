package ports

import "context"

// ExecSpec is a fully resolved shell invocation (§4.4 "Command
// construction"): parameters already substituted into Command, redirect
// paths already resolved, and the VARIABLE environment already computed.
// It is a plain value type (not a graph.CommandSpec) so this port has no
// import-cycle dependency on internal/engine/graph.
type ExecSpec struct {
	Command string

	// InputPath, if non-empty, is opened and wired as the child's stdin.
	InputPath string
	// OutputPath, if non-empty, receives the child's stdout, written to
	// "<OutputPath>.tmp.<pid>" and renamed into place by Execute itself
	// only when the command exits 0 (§5 "atomic publication").
	OutputPath string

	// Env holds VARIABLE-dependency NAME=value pairs to merge over the
	// inherited process environment.
	Env map[string]string
}

// Executor runs a resolved shell command (§4.4, §4.5: "fork + exec of
// /bin/sh -c <cmd> with the prepared fds and environment").
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs spec to completion and returns its exit code (0 on
	// success) or an error if the process could not be started at all.
	Execute(ctx context.Context, spec ExecSpec) (exitCode int, err error)
}
