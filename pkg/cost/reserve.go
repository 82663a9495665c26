package cost

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lonestarx1/gogrid/pkg/llm"
)

// ErrBudgetExceeded is returned by CheckBudget when committed and spent
// cost together exceed the configured limit. Callers use errors.Is to
// classify it as fatal.
var ErrBudgetExceeded = errors.New("cost: budget exceeded")

// BudgetExceededError carries the limit and the offending totals alongside
// ErrBudgetExceeded, so callers that want the numbers don't have to
// re-derive them.
type BudgetExceededError struct {
	Limit     float64
	Spent     float64
	Committed float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("cost: budget exceeded: spent %.4f + committed %.4f > limit %.4f",
		e.Spent, e.Committed, e.Limit)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// ReservationHandle identifies an in-flight reservation created by Reserve.
// It must be passed to exactly one of Finalize or Refund.
type ReservationHandle uint64

var nextHandle uint64

// Reserve records an expected upper-bound cost against totalCommitted and
// returns a handle to finalize or refund it later. The estimate is not
// attributed to any model or entity until Finalize records the actual
// usage.
func (t *Tracker) Reserve(estimate float64) ReservationHandle {
	h := ReservationHandle(atomic.AddUint64(&nextHandle, 1))

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committedByHandle == nil {
		t.committedByHandle = make(map[ReservationHandle]float64)
	}
	t.committedByHandle[h] = estimate
	t.totalCommitted += estimate
	return h
}

// Finalize settles a reservation with the usage actually billed for it. It
// releases the reservation's estimate from totalCommitted and records the
// real cost via AddForEntity, so total/records/entityCost are only ever
// mutated in one place. If the handle is unknown (already finalized or
// refunded) there is nothing to release, but Finalize still records the
// usage — the caller made a real model call and the usage must be recorded
// regardless of reservation bookkeeping. It returns the actual cost, matching AddForEntity.
func (t *Tracker) Finalize(h ReservationHandle, model, entity string, usage llm.Usage) float64 {
	t.mu.Lock()
	if estimate, ok := t.committedByHandle[h]; ok {
		delete(t.committedByHandle, h)
		t.totalCommitted -= estimate
	}
	t.mu.Unlock()

	return t.AddForEntity(model, entity, usage)
}

// Refund releases a reservation without recording any spend. Refund is a
// no-op if the handle is unknown.
func (t *Tracker) Refund(h ReservationHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	estimate, ok := t.committedByHandle[h]
	if !ok {
		return
	}
	delete(t.committedByHandle, h)
	t.totalCommitted -= estimate
}

// TotalCommitted returns the sum of outstanding (not yet finalized or
// refunded) reservations.
func (t *Tracker) TotalCommitted() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCommitted
}

// CheckBudget returns a *BudgetExceededError (wrapping ErrBudgetExceeded)
// when totalSpent + totalCommitted exceeds limit. A non-positive limit
// disables the check.
func (t *Tracker) CheckBudget(limit float64) error {
	if limit <= 0 {
		return nil
	}

	t.mu.Lock()
	spent := t.total
	committed := t.totalCommitted
	t.mu.Unlock()

	if spent+committed > limit {
		return &BudgetExceededError{Limit: limit, Spent: spent, Committed: committed}
	}
	return nil
}
