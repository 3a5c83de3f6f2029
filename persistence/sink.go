package persistence

import (
	"context"

	"github.com/cepro/besscontroller/flowmodel"
)

// Sink is the contract the control loop writes committed snapshots to
// every tick. Implementations must not block on network I/O: the local
// Store satisfies this by writing synchronously to SQLite only.
type Sink interface {
	Put(ctx context.Context, snap *flowmodel.PowerSnapshot) error
}
