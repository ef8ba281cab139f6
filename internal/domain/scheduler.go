package domain

import (
	"context"
	"time"
)

// Clock supplies the current time; swapped for a manual clock in tests.
type Clock interface {
	Now() time.Time
}

// Scheduler interface
type ExpiryScheduler interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	Start(ctx context.Context) error
	Stop() error
}
