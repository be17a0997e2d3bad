/*
pool.go - Entitlement pool construction at grant time

PURPOSE:
  Turns a qualifying product group into the initial per-line ledger
  entries: each line is granted its own quantity, the group shares one
  expiry deadline, and the pool-wide remaining starts as the group total.

IDEMPOTENCE:
  The host event system delivers at least once. Building the ledger twice
  from identical inputs yields identical entries, so a replayed grant
  overwrites the metadata with the same values.

POOL AGGREGATION:
  PoolRemaining is eagerly computed here as sum(remaining) across the
  group. The metadata is the single source of truth read back on the next
  event, so the allocator must also accept entries whose PoolRemaining was
  never aggregated (it falls back to the entry's own remaining - see
  ParseLedgerEntry).
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// GrantConfig carries the grant-time parameters echoed into each entry.
type GrantConfig struct {
	// WindowDays is the redemption window length in whole days.
	WindowDays int

	// Discount is the granted discount value, echoed for operator
	// visibility.
	Discount decimal.Decimal
}

// BuildLedger constructs one ledger entry per line of a qualifying group.
//
//	granted = remaining = line quantity
//	deadline = grantAt + WindowDays (uniform across the group)
//	poolRemaining = sum of the group's quantities
//
// Pure and deterministic: no clock reads, no side effects beyond the
// returned entries for the caller to persist.
func BuildLedger(group *ProductGroup, grantAt time.Time, cfg GrantConfig) []LedgerEntry {
	deadline := grantAt.UTC().AddDate(0, 0, cfg.WindowDays)
	poolRemaining := group.TotalQuantity()

	entries := make([]LedgerEntry, 0, len(group.Lines))
	for _, line := range group.Lines {
		entries = append(entries, LedgerEntry{
			LineID:        line.ID,
			ProductID:     group.ProductID,
			Granted:       line.Quantity,
			Remaining:     line.Quantity,
			PoolRemaining: poolRemaining,
			Deadline:      deadline,
			DeadlineValid: true,
			Discount:      cfg.Discount,
			WindowDays:    cfg.WindowDays,
		})
	}
	return entries
}
