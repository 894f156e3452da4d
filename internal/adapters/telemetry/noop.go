// Package telemetry holds the no-op Telemetry used when progress
// rendering is disabled (§6 "-q"); the real implementation wrapping
// progrock lives in internal/adapters/telemetry/progrock.
package telemetry

import (
	"context"
	"io"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/core/ports"
)

// NoOp is a Telemetry that discards everything.
type NoOp struct{}

// NewNoOp creates a new NoOp Telemetry.
func NewNoOp() ports.Telemetry {
	return &NoOp{}
}

// Record returns ctx unchanged and a Vertex that discards everything.
func (NoOp) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, noOpVertex{}
}

// Close does nothing.
func (NoOp) Close() error { return nil }

type noOpVertex struct{}

func (noOpVertex) Stdout() io.Writer              { return io.Discard }
func (noOpVertex) Stderr() io.Writer              { return io.Discard }
func (noOpVertex) Log(_ domain.LogLevel, _ string) {}
func (noOpVertex) Complete(_ error)                {}
func (noOpVertex) Cached()                         {}
