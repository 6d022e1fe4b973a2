package engine

import "github.com/tommy-ca/gridbot/internal/snapshot"

// Snapshot bundles the strategy summary and grid ladder view broadcast to
// the live dashboard after every tick and every terminal fill.
type Snapshot struct {
	Summary snapshot.StrategySummary
	Grid    snapshot.GridState
}
