package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.stu.dev/stu/internal/core/ports"
)

// NodeID identifies the FileSystem adapter node in the wiring graph.
const NodeID graft.ID = "adapter.fs.filesystem"

func init() {
	graft.Register(graft.Node[ports.FileSystem]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.FileSystem, error) {
			return New(), nil
		},
	})
}
