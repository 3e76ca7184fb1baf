// Package dedup remembers handled trigger event ids so redelivered events are dispatched once.
package dedup

import (
	"context"
	"time"
)

// DefaultTTL bounds how long an event id is remembered.
const DefaultTTL = 24 * time.Hour

// Store tracks handled event ids. Callers check Seen before handling and call
// Remember only once handling finished, so a delivery that dies mid-way is
// still accepted when the platform retries it.
type Store interface {
	Seen(ctx context.Context, id string) (bool, error)
	Remember(ctx context.Context, id string) error
}
