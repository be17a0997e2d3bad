/*
codec.go - Metadata codec: opaque key/value pairs <-> typed records

PURPOSE:
  The host platform stores line and product state as opaque ordered
  key/value string pairs. Inside the engine the entitlement ledger is an
  explicit typed record, not a dynamic map; this codec is the only place
  that marshals between the two representations.

ROUND-TRIP LAW:
  Decode(Encode(r)) == r for any record whose values are strings.
  Encode emits one pair per key sorted by key - "some total order" is all
  the contract promises, sorting makes it deterministic.

PARSING RULES (documented per field):
  bulk_eligible            "true" parses as true, anything else as false
  bulk_threshold           integer, 0 on missing/unparseable
  bulk_value               decimal, 0 on missing/unparseable
  bulk_quantity            integer, 0 on missing/unparseable
  bulk_internal_remaining  integer, falls back to bulk_quantity when absent
  bulk_remaining           integer, falls back to bulk_internal_remaining
  bulk_deadline            RFC 3339; unparseable marks the entry's deadline
                           invalid but keeps the entry in the pool
  redemption_window_days   integer, 0 on missing/unparseable

SEE ALSO:
  - allocator.go: Consumes LedgerEntry records and emits updated ones
  - pool.go: Creates LedgerEntry records at grant time
*/
package engine

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// METADATA KEYS
// =============================================================================

// Ledger keys, written to each line's private metadata.
const (
	KeyBulkPack              = "bulk_pack"
	KeyBulkQuantity          = "bulk_quantity"
	KeyBulkInternalRemaining = "bulk_internal_remaining"
	KeyBulkRemaining         = "bulk_remaining"
	KeyBulkDeadline          = "bulk_deadline"
	KeyBulkGroupProduct      = "bulk_group_product"
	KeyBulkDiscount          = "bulk_discount"
	KeyRedemptionWindowDays  = "redemption_window_days"
)

// Eligibility keys, read from product metadata.
const (
	KeyBulkEligible  = "bulk_eligible"
	KeyBulkThreshold = "bulk_threshold"
	KeyBulkValue     = "bulk_value"
)

// =============================================================================
// GENERIC PAIR CODEC
// =============================================================================

// Decode builds a record from ordered pairs. Last write wins when a key
// repeats.
func Decode(pairs []Pair) map[string]string {
	record := make(map[string]string, len(pairs))
	for _, p := range pairs {
		record[p.Key] = p.Value
	}
	return record
}

// Encode is the inverse of Decode: one pair per key, sorted by key.
func Encode(record map[string]string) []Pair {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: record[k]})
	}
	return pairs
}

// =============================================================================
// LEDGER ENTRY - A line's share of the entitlement pool
// =============================================================================

// LedgerEntry is one line's individual share of its product's entitlement
// pool, persisted as that line's private metadata.
//
// INVARIANTS:
//   - Remaining <= Granted
//   - PoolRemaining is identical across all entries of one group and
//     equals the sum of their Remaining
//   - Deadline is identical across the group and equals the earliest of
//     the group's individual expiry computations
type LedgerEntry struct {
	LineID    LineID
	ProductID ProductID

	// Granted is the quantity granted at discount time (the original line
	// quantity). Never changes after grant.
	Granted int

	// Remaining is this line's unredeemed share. Monotonically
	// non-increasing across allocator calls absent a re-grant.
	Remaining int

	// PoolRemaining is the pool-wide remaining, written identically into
	// every entry of the group.
	PoolRemaining int

	// Deadline is the pool-wide expiry. DeadlineValid is false when the
	// stored timestamp could not be parsed; such an entry is excluded from
	// FIFO ordering but its Remaining still counts toward the pool.
	Deadline      time.Time
	DeadlineValid bool

	// Grant-time configuration echo, carried for operator visibility.
	Discount   decimal.Decimal
	WindowDays int
}

// ParseLedgerEntry decodes a line's private metadata into a ledger entry.
// Returns ok=false when the line carries no entitlement (bulk_pack is not
// "true"); such lines are excluded from pooling.
func ParseLedgerEntry(lineID LineID, pairs []Pair) (LedgerEntry, bool) {
	record := Decode(pairs)
	if record[KeyBulkPack] != "true" {
		return LedgerEntry{}, false
	}

	granted := parseInt(record[KeyBulkQuantity])

	remaining, ok := parseIntOpt(record[KeyBulkInternalRemaining])
	if !ok {
		remaining = granted
	}

	poolRemaining, ok := parseIntOpt(record[KeyBulkRemaining])
	if !ok {
		poolRemaining = remaining
	}

	entry := LedgerEntry{
		LineID:        lineID,
		ProductID:     ProductID(record[KeyBulkGroupProduct]),
		Granted:       granted,
		Remaining:     remaining,
		PoolRemaining: poolRemaining,
		Discount:      parseDecimal(record[KeyBulkDiscount]),
		WindowDays:    parseInt(record[KeyRedemptionWindowDays]),
	}

	if deadline, err := time.Parse(time.RFC3339, record[KeyBulkDeadline]); err == nil {
		entry.Deadline = deadline
		entry.DeadlineValid = true
	}

	return entry, true
}

// Pairs encodes the entry back into metadata pairs. An invalid deadline is
// written back verbatim-empty rather than fabricated.
func (e LedgerEntry) Pairs() []Pair {
	record := map[string]string{
		KeyBulkPack:              "true",
		KeyBulkQuantity:          strconv.Itoa(e.Granted),
		KeyBulkInternalRemaining: strconv.Itoa(e.Remaining),
		KeyBulkRemaining:         strconv.Itoa(e.PoolRemaining),
		KeyBulkGroupProduct:      string(e.ProductID),
		KeyBulkDiscount:          e.Discount.String(),
		KeyRedemptionWindowDays:  strconv.Itoa(e.WindowDays),
	}
	if e.DeadlineValid {
		record[KeyBulkDeadline] = e.Deadline.UTC().Format(time.RFC3339)
	}
	return Encode(record)
}

// =============================================================================
// ELIGIBILITY SETTINGS CODEC
// =============================================================================

// ParseProductSettings reads eligibility settings from a product metadata
// bag. Returns ok=false when the bag carries no bulk_eligible key at all.
func ParseProductSettings(pairs []Pair) (EligibilitySettings, bool) {
	record := Decode(pairs)
	if _, present := record[KeyBulkEligible]; !present {
		return EligibilitySettings{}, false
	}
	return EligibilitySettings{
		Eligible:  record[KeyBulkEligible] == "true",
		Threshold: parseInt(record[KeyBulkThreshold]),
		Value:     parseDecimal(record[KeyBulkValue]),
	}, true
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parseInt parses an integer string, defaulting to 0 on missing or
// unparseable input.
func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseIntOpt parses an integer string, reporting whether the value was
// present and parseable.
func parseIntOpt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDecimal parses a decimal string, defaulting to 0 on missing or
// unparseable input.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
