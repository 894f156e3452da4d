package scriptloader

import (
	"context"

	"github.com/grindlemire/graft"
	"go.stu.dev/stu/internal/core/ports"
)

const NodeID graft.ID = "adapter.scriptloader"

func init() {
	graft.Register(graft.Node[ports.ScriptLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ScriptLoader, error) {
			return New(), nil
		},
	})
}
