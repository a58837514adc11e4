// Package ratebudget implements the Rate Budget component (spec §4.7):
// a token-bucket allocation an Agent Context consults before every
// provider call, shared across concurrently running agents so the
// aggregate request rate to a provider stays within a configured
// ceiling. Built atop golang.org/x/time/rate the way the teacher's
// worker pools throttle concurrent activity.
package ratebudget

import (
	"context"
	"time"

	"agentcore/core"

	"golang.org/x/time/rate"
)

// Budget is a shared token-bucket rate limiter. One Budget is typically
// constructed per provider (or per model) and handed to every
// concurrently running AgentContext as their core.RateAllocation.
type Budget struct {
	limiter *rate.Limiter
}

// New returns a Budget that permits tokensPerSecond sustained throughput
// with a burst capacity of burst tokens.
func New(tokensPerSecond float64, burst int) *Budget {
	return &Budget{limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burst)}
}

// Unlimited returns a Budget that never blocks, used when no rate limit
// is configured.
func Unlimited() *Budget {
	return &Budget{limiter: rate.NewLimiter(rate.Inf, 0)}
}

var _ core.RateAllocation = (*Budget)(nil)

// WaitForBudget blocks until tokens worth of budget is available or ctx
// is cancelled, whichever comes first. It returns the wait duration
// actually incurred.
func (b *Budget) WaitForBudget(ctx context.Context, tokens int) (time.Duration, error) {
	if b.limiter == nil {
		return 0, nil
	}
	start := time.Now()
	if err := b.limiter.WaitN(ctx, tokens); err != nil {
		return time.Since(start), core.NewRateLimitedError(0, err.Error())
	}
	return time.Since(start), nil
}

// RecordUsage debits tokens from the bucket after the fact by reserving
// the full amount immediately. The Runner calls it with the usage the
// provider reports, on top of the estimate WaitForBudget already took,
// so a call is charged both; nothing is refunded, since
// golang.org/x/time/rate has no retroactive-debit primitive.
func (b *Budget) RecordUsage(tokens int) {
	if b.limiter == nil || tokens <= 0 {
		return
	}
	b.limiter.ReserveN(time.Now(), tokens)
}
