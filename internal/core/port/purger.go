package port

import (
	"context"
	"time"
)

// Purger is the explicit, idempotent expiry sweep every store exposes. It is
// invoked both by the background scheduler and opportunistically inline;
// callers never assume it has run.
type Purger interface {
	Purge(ctx context.Context, now time.Time) error
}
