package commands

import (
	"context"

	"github.com/grindlemire/graft"

	"go.stu.dev/stu/internal/adapters/fs"
	"go.stu.dev/stu/internal/adapters/logger"
	"go.stu.dev/stu/internal/adapters/scriptloader"
	"go.stu.dev/stu/internal/adapters/shell"
	"go.stu.dev/stu/internal/adapters/telemetry/progrock"
	"go.stu.dev/stu/internal/core/ports"
)

// components bundles every adapter the root command needs. Unlike the
// teacher's internal/app.Components, this aggregate is owned by cmd/stu
// itself rather than a separate application layer: SPEC_FULL.md's DI
// section settles that stu "registers one graft.Node per adapter ... and
// composes them in cmd/stu", with no intervening injector package.
type components struct {
	Logger       ports.Logger
	Executor     ports.Executor
	ScriptLoader ports.ScriptLoader
	FS           ports.FileSystem
	Telemetry    ports.Telemetry
}

// componentsNodeID identifies the aggregate node in the wiring graph.
const componentsNodeID graft.ID = "cmd.stu.components"

func init() {
	graft.Register(graft.Node[*components]{
		ID:        componentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
			shell.NodeID,
			scriptloader.NodeID,
			fs.NodeID,
			progrock.NodeID,
		},
		Run: runComponentsNode,
	})
}

// Resolve runs the graft wiring graph to produce a components bundle.
// main.go holds the result only long enough to hand it to New.
func Resolve(ctx context.Context) (*components, error) {
	c, _, err := graft.ExecuteFor[*components](ctx)
	return c, err
}

func runComponentsNode(ctx context.Context) (*components, error) {
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	executor, err := graft.Dep[ports.Executor](ctx)
	if err != nil {
		return nil, err
	}
	loader, err := graft.Dep[ports.ScriptLoader](ctx)
	if err != nil {
		return nil, err
	}
	filesystem, err := graft.Dep[ports.FileSystem](ctx)
	if err != nil {
		return nil, err
	}
	telemetry, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}

	return &components{
		Logger:       log,
		Executor:     executor,
		ScriptLoader: loader,
		FS:           filesystem,
		Telemetry:    telemetry,
	}, nil
}
