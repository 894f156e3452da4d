package ports

import (
	"context"
	"io"

	"go.stu.dev/stu/internal/core/domain"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Telemetry records build progress as a sequence of vertices, one per
// Execution, driving the terminal progress display (§4.5). The -z and
// SIGUSR1 statistics come from Scheduler.Stats, not from here.
type Telemetry interface {
	// Record starts tracking a new vertex named after a target.
	Record(ctx context.Context, name string) (context.Context, Vertex)
	// Close flushes and closes the recording session.
	Close() error
}

// Vertex is a single Execution's progress entry: the terminal projection
// of its INIT→WAITING→BUILDING→DONE/FAILED phase walk (§4.4).
type Vertex interface {
	// Stdout returns a writer for the vertex's standard output stream.
	Stdout() io.Writer
	// Stderr returns a writer for the vertex's standard error stream.
	Stderr() io.Writer
	// Log records a structured message against this vertex.
	Log(level domain.LogLevel, msg string)
	// Complete marks the vertex DONE (err == nil) or FAILED.
	Complete(err error)
	// Cached marks the vertex as satisfied without running a command.
	Cached()
}
