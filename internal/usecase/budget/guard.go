package budget

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/listbot/internal/metrics"
)

// Guard wraps a Tracker around provider calls and mirrors the remaining
// budget into the budget_tokens_remaining gauge. A nil *Guard allows every
// call and records nothing, so callers never deal with typed-nil interfaces.
type Guard struct {
	tracker *Tracker
}

// NewGuard returns nil when t is nil.
func NewGuard(t *Tracker) *Guard {
	if t == nil {
		return nil
	}
	return &Guard{tracker: t}
}

// Allow returns the tracker's exceeded error when the budget is spent and
// the action is reject.
func (g *Guard) Allow(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if err := g.tracker.Check(ctx); err != nil {
		return fmt.Errorf("%s budget: %w", g.tracker.Scope(), err)
	}
	return nil
}

// Spend records consumed tokens and refreshes the gauges.
func (g *Guard) Spend(tokens int) {
	if g == nil || tokens <= 0 {
		return
	}
	g.tracker.Record(int64(tokens))

	scope := g.tracker.Scope()
	metrics.BudgetTokensRemaining.WithLabelValues(scope, string(PeriodDaily)).Set(float64(g.tracker.RemainingDaily()))
	metrics.BudgetTokensRemaining.WithLabelValues(scope, string(PeriodMonthly)).Set(float64(g.tracker.RemainingMonthly()))
}

// Scope returns the tracker scope, "" for a nil Guard.
func (g *Guard) Scope() string {
	if g == nil {
		return ""
	}
	return g.tracker.Scope()
}
