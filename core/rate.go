package core

import (
	"context"
	"time"
)

// RateAllocation is a handle into a shared token bucket. Implementations
// live in package ratebudget; core only depends on the interface to avoid
// an import cycle between the Runner and the budget implementation.
type RateAllocation interface {
	// WaitForBudget suspends until at least tokens are available and
	// returns the duration actually waited (0 if none).
	WaitForBudget(ctx context.Context, tokens int) (time.Duration, error)
	// RecordUsage debits the bucket by actual tokens consumed.
	RecordUsage(tokens int)
}
