/*
Package engine implements the entitlement pool engine for quantity-based
bulk discounts.

PURPOSE:
  This package contains the pure computation at the heart of the system:
  deciding whether a group of order lines qualifies for a bulk discount,
  turning a qualifying group into a trackable entitlement pool, and
  deducting fulfilled quantities from that pool in FIFO-by-deadline order.

KEY CONCEPTS IN THIS FILE (types.go):
  - OrderLine: A single line of an order with quantity, price, and metadata
  - ProductGroup: All lines of one order sharing a product identity
  - GroupSet: Insertion-ordered collection of product groups
  - RedemptionRequest: Per-line fulfilled quantities from one fulfillment

DESIGN PRINCIPLES:
  1. Purity: No I/O, no clocks, no hidden state. Every function is a
     deterministic transformation of its inputs.
  2. Precision: Uses decimal.Decimal for prices and discount values to
     avoid floating-point errors.
  3. Metadata as the source of truth: The pool ledger lives in opaque
     key/value metadata owned by the host platform. This package reads it
     fresh on every call and proposes new values; it never caches.
  4. Warnings, not aborts: Data problems in one line or group never stop
     the rest of the batch. Failures surface as a side-channel warning
     list the caller can persist or ignore.

SEE ALSO:
  - codec.go: Key/value metadata <-> typed record conversion
  - grouping.go: Partitioning lines into product groups
  - eligibility.go: Discount decisions
  - pool.go: Grant-time ledger construction
  - allocator.go: FIFO redemption
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LineID string
type ProductID string
type OrderID string

// =============================================================================
// ORDER LINE - Input record, owned by the host order
// =============================================================================

// OrderLine is the engine's view of one order line. The engine never
// creates or destroys lines; it reads them and proposes metadata mutations
// for the caller to persist.
type OrderLine struct {
	ID       LineID
	Quantity int
	UnitPrice decimal.Decimal

	// ProductID is the product identity the line belongs to. Empty means
	// the line cannot be grouped (MissingProductReference).
	ProductID ProductID

	// ProductMetadata is the product-level metadata bag (shared by all
	// lines of the product).
	ProductMetadata []Pair

	// PrivateMetadata is the line-level private metadata bag. The
	// entitlement ledger entry for this line is stored here.
	PrivateMetadata []Pair
}

// Pair is one key/value item of an opaque metadata bag.
type Pair struct {
	Key   string
	Value string
}

// =============================================================================
// PRODUCT GROUP - Lines sharing one product identity
// =============================================================================

// ProductGroup is the set of order lines sharing one product identity
// within a single processing pass. Derived, never persisted; recomputed
// from the current line set on every invocation.
type ProductGroup struct {
	ProductID ProductID
	Lines     []OrderLine
}

// TotalQuantity sums the member line quantities. A zero-quantity line is
// a valid member that contributes nothing.
func (g *ProductGroup) TotalQuantity() int {
	total := 0
	for _, line := range g.Lines {
		total += line.Quantity
	}
	return total
}

// =============================================================================
// GROUP SET - Insertion-ordered map of product groups
// =============================================================================

// GroupSet holds product groups keyed by product identity, preserving
// first-seen order. Grouping is an explicit ordered-map build, not a
// reliance on incidental slice or map semantics.
type GroupSet struct {
	order  []ProductID
	groups map[ProductID]*ProductGroup
}

func NewGroupSet() *GroupSet {
	return &GroupSet{groups: make(map[ProductID]*ProductGroup)}
}

// Add appends a line to its product group, creating the group on first
// sight of the product.
func (s *GroupSet) Add(line OrderLine) {
	g, ok := s.groups[line.ProductID]
	if !ok {
		g = &ProductGroup{ProductID: line.ProductID}
		s.groups[line.ProductID] = g
		s.order = append(s.order, line.ProductID)
	}
	g.Lines = append(g.Lines, line)
}

// Products returns the product identities in first-seen order.
func (s *GroupSet) Products() []ProductID {
	return s.order
}

// Group returns the group for a product identity.
func (s *GroupSet) Group(id ProductID) (*ProductGroup, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// Len returns the number of groups.
func (s *GroupSet) Len() int {
	return len(s.order)
}

// =============================================================================
// REDEMPTION REQUEST - Per-line fulfilled quantities (transient)
// =============================================================================

// RedemptionRequest maps line identifiers to non-negative fulfilled
// quantities for one fulfillment event. Supplied by the caller, never
// persisted.
//
// AT-LEAST-ONCE CONTRACT: The host event system may redeliver a
// fulfillment event. The caller MUST supply only the delta quantity newly
// fulfilled since the last successful persist (or deduplicate replayed
// events before calling). The allocator's arithmetic is idempotent only
// when a replay carries a zero delta.
type RedemptionRequest map[LineID]int
