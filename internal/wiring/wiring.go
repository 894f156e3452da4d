// Package wiring registers every adapter's graft.Node for init-time
// dependency injection (SPEC_FULL.md §2 AMBIENT STACK: "one graft.Node per
// adapter ... composed in cmd/stu").
package wiring

import (
	// Register adapter nodes.
	_ "go.stu.dev/stu/internal/adapters/fs"
	_ "go.stu.dev/stu/internal/adapters/logger"
	_ "go.stu.dev/stu/internal/adapters/scriptloader"
	_ "go.stu.dev/stu/internal/adapters/shell"
	_ "go.stu.dev/stu/internal/adapters/telemetry/progrock"
)
