/*
allocator.go - FIFO redemption against the entitlement pool

PURPOSE:
  Given a group's current ledger entries (read back from persisted
  metadata) and the per-line quantities of one fulfillment event, deducts
  the total from the pool in FIFO-by-deadline order and recomputes the
  pool-wide aggregates.

FIFO DISCIPLINE:
  Entries are consumed in ascending deadline order - entitlement closest
  to expiry goes first. Ties break by stable input order. Entries with an
  unparseable stored deadline sort after every valid entry (they cannot
  participate in deadline ordering) but their remaining still counts
  toward the pool.

UNDER-FUNDED POOLS:
  Deducting more than the pool holds is not fatal: every entry is drained
  to zero, nothing goes negative, and an insufficient_pool_balance warning
  surfaces the shortfall for the operator. The update is still persisted.

INVARIANTS PRESERVED:
  - sum(entry.Remaining) == PoolRemaining after every call
  - Remaining is monotonically non-increasing per line absent a re-grant
  - The group deadline equals the earliest deadline among entries that
    still have remaining > 0, falling back to the earliest original
    deadline when the pool is fully drained

CALLER ERRORS:
  A request naming a line with no supplied entry, or a negative quantity,
  is structurally invalid input and is rejected outright - unlike data
  issues, which only warn.
*/
package engine

import (
	"fmt"
	"sort"
	"time"
)

// Redeem applies one fulfillment event's quantities to a group's ledger.
// It returns the updated entries (same order as the input), warnings for
// data issues, and an error only for structurally invalid requests.
//
// The request must be restricted to the supplied entries' lines; missing
// entries default to a zero deduction.
func Redeem(entries []LedgerEntry, request RedemptionRequest) ([]LedgerEntry, []Warning, error) {
	if err := validateRequest(entries, request); err != nil {
		return nil, nil, err
	}

	updated := make([]LedgerEntry, len(entries))
	copy(updated, entries)

	var warnings []Warning
	for i := range updated {
		if !updated[i].DeadlineValid {
			warnings = append(warnings, Warning{
				Code:      WarnMalformedDeadline,
				LineID:    updated[i].LineID,
				ProductID: updated[i].ProductID,
				Message:   "stored deadline is unparseable; entry excluded from FIFO ordering",
			})
		}
	}

	// 1. Total to deduct across the group.
	totalToDeduct := 0
	for _, qty := range request {
		totalToDeduct += qty
	}

	// 2. FIFO order: ascending deadline, stable ties, malformed deadlines
	// last in input order.
	order := make([]int, len(updated))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := updated[order[a]], updated[order[b]]
		if ea.DeadlineValid != eb.DeadlineValid {
			return ea.DeadlineValid
		}
		if !ea.DeadlineValid {
			return false
		}
		return ea.Deadline.Before(eb.Deadline)
	})

	// 3. Walk the ordered entries, draining each until the deduction is
	// satisfied or the pool is exhausted.
	remainingToDeduct := totalToDeduct
	for _, i := range order {
		if remainingToDeduct == 0 {
			break
		}
		deduct := min(updated[i].Remaining, remainingToDeduct)
		updated[i].Remaining -= deduct
		remainingToDeduct -= deduct
	}

	// 4. Shortfall is reported, never blocks the update.
	if remainingToDeduct > 0 {
		warnings = append(warnings, Warning{
			Code:      WarnInsufficientPoolBalance,
			ProductID: groupProduct(updated),
			Message: fmt.Sprintf("redemption of %d exceeds pool remaining by %d; pool drained to zero",
				totalToDeduct, remainingToDeduct),
		})
	}

	// 5. Recompute pool-wide aggregates.
	poolRemaining := 0
	for _, e := range updated {
		poolRemaining += e.Remaining
	}
	poolDeadline, haveDeadline := groupDeadline(updated)

	// 6. Write the same aggregates into every entry; each keeps its own
	// individual remaining. With no valid deadline anywhere, per-entry
	// deadlines stay untouched rather than being fabricated.
	for i := range updated {
		updated[i].PoolRemaining = poolRemaining
		if haveDeadline {
			updated[i].Deadline = poolDeadline
			updated[i].DeadlineValid = true
		}
	}

	return updated, warnings, nil
}

// validateRequest rejects structurally invalid requests outright.
func validateRequest(entries []LedgerEntry, request RedemptionRequest) error {
	known := make(map[LineID]bool, len(entries))
	for _, e := range entries {
		known[e.LineID] = true
	}
	for lineID, qty := range request {
		if !known[lineID] {
			return &UnknownLineError{LineID: lineID}
		}
		if qty < 0 {
			return fmt.Errorf("line %s: quantity %d: %w", lineID, qty, ErrNegativeRedemption)
		}
	}
	return nil
}

// groupDeadline returns the earliest deadline among entries that still
// have remaining > 0, falling back to the earliest original deadline so a
// fully drained pool still reports a defined one. Malformed deadlines are
// excluded from the minimum.
func groupDeadline(entries []LedgerEntry) (time.Time, bool) {
	earliest := func(positiveOnly bool) (time.Time, bool) {
		var best time.Time
		found := false
		for _, e := range entries {
			if !e.DeadlineValid {
				continue
			}
			if positiveOnly && e.Remaining <= 0 {
				continue
			}
			if !found || e.Deadline.Before(best) {
				best = e.Deadline
				found = true
			}
		}
		return best, found
	}

	if d, ok := earliest(true); ok {
		return d, true
	}
	return earliest(false)
}

// groupProduct returns the product identity shared by the entries.
func groupProduct(entries []LedgerEntry) ProductID {
	for _, e := range entries {
		if e.ProductID != "" {
			return e.ProductID
		}
	}
	return ""
}
