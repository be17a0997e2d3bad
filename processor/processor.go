/*
Package processor orchestrates the engine against the host platform.

PURPOSE:
  The engine is pure; this package is the event handler around it. For
  each webhook event it loads the order fresh from the platform, runs the
  relevant engine pass, and writes the results back:

    order created        grant pass: discounts + initial ledger metadata
    draft order updated  discount pass only (no ledger yet)
    order fulfilled      redemption pass: FIFO deduction, ledger rewrite

DELIVERY SEMANTICS:
  The host delivers events at least once. Two guards make replays safe:
  1. Event IDs are recorded in the EventLog; an already-seen ID is
     skipped entirely (the redemption delta is consumed exactly once).
  2. Calls are serialized per order with a keyed mutex - the ledger
     recompute-and-write is not compare-and-swap safe against interleaved
     writes, so concurrent events for one order must not overlap.

ERROR POLICY:
  Engine warnings (data issues) are persisted to the WarningSink and
  returned in the Result; they never abort the pass. Platform mutation
  failures are collected per line and joined into the returned error so
  one failed line does not stop the others.
*/
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warp/entitlement-engine/commerce"
	"github.com/warp/entitlement-engine/engine"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// ConfigStore supplies the app-level configuration.
type ConfigStore interface {
	AppConfig(ctx context.Context) (engine.Config, error)
}

// EventLog deduplicates at-least-once event deliveries.
type EventLog interface {
	// MarkProcessed records an event ID. Returns false when the ID was
	// already recorded (a replay).
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// WarningSink persists engine warnings for operator visibility.
type WarningSink interface {
	RecordWarnings(ctx context.Context, orderID string, warnings []engine.Warning) error
}

// =============================================================================
// SETTINGS MODE
// =============================================================================

// SettingsMode selects the eligibility sourcing strategy, once per
// deployment. The two strategies are never merged.
type SettingsMode string

const (
	// SettingsProduct reads bulk_eligible/bulk_threshold/bulk_value from
	// product metadata.
	SettingsProduct SettingsMode = "product"

	// SettingsApp applies the store-wide minQty/discountPercent rule from
	// the configuration store.
	SettingsApp SettingsMode = "app"
)

// =============================================================================
// PROCESSOR
// =============================================================================

// FulfillmentLine is one line of a fulfillment event.
type FulfillmentLine struct {
	LineID   string
	Quantity int
}

// Result summarizes one processed event.
type Result struct {
	OrderID         string
	Replayed        bool
	DiscountedLines int
	UpdatedLines    int
	Warnings        []engine.Warning
}

// Processor wires the engine to its collaborators.
type Processor struct {
	Commerce commerce.Client
	Config   ConfigStore
	Mode     SettingsMode

	// Events and Warnings are optional; nil disables deduplication or
	// warning persistence respectively.
	Events   EventLog
	Warnings WarningSink

	locks orderLocks
}

// New creates a processor. Mode defaults to SettingsProduct.
func New(client commerce.Client, config ConfigStore, mode SettingsMode) *Processor {
	if mode == "" {
		mode = SettingsProduct
	}
	return &Processor{Commerce: client, Config: config, Mode: mode}
}

// source builds the settings strategy for one pass. App-mode settings are
// re-read every pass because operators can change them at runtime.
func (p *Processor) source(cfg engine.Config) engine.SettingsSource {
	if p.Mode == SettingsApp {
		return &engine.AppConfigSource{Config: cfg}
	}
	return &engine.ProductMetadataSource{}
}

// =============================================================================
// GRANT PASS (order created)
// =============================================================================

// HandleOrderCreated runs the grant pass: eligibility decisions, discount
// mutations, and initial ledger metadata for qualifying groups.
func (p *Processor) HandleOrderCreated(ctx context.Context, eventID, orderID string, createdAt time.Time) (*Result, error) {
	unlock := p.locks.lock(orderID)
	defer unlock()

	result := &Result{OrderID: orderID}
	if replayed, err := p.seen(ctx, eventID); err != nil {
		return nil, err
	} else if replayed {
		result.Replayed = true
		return result, nil
	}

	cfg, err := p.Config.AppConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}

	order, err := p.Commerce.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	groups, warnings := engine.GroupByProduct(mapLines(order))
	discountEngine := &engine.DiscountEngine{Source: p.source(cfg)}
	decisions, decisionWarnings := discountEngine.Decide(groups)
	warnings = append(warnings, decisionWarnings...)

	var mutationErrs []error
	for _, productID := range groups.Products() {
		group, _ := groups.Group(productID)

		// Decisions are uniform per group; any member line speaks for it.
		decision := decisions[group.Lines[0].ID]
		if !decision.ShouldApply {
			continue
		}

		entries := engine.BuildLedger(group, createdAt, engine.GrantConfig{
			WindowDays: cfg.WindowDays,
			Discount:   decision.Value,
		})

		for i, line := range group.Lines {
			if err := p.Commerce.UpdateLineDiscount(ctx, string(line.ID), discountInput(decision)); err != nil {
				mutationErrs = append(mutationErrs, fmt.Errorf("line %s: apply discount: %w", line.ID, err))
				continue
			}
			if err := p.Commerce.UpdateLinePrivateMetadata(ctx, string(line.ID), metadataItems(entries[i].Pairs())); err != nil {
				mutationErrs = append(mutationErrs, fmt.Errorf("line %s: write ledger metadata: %w", line.ID, err))
				continue
			}
			result.DiscountedLines++
		}
	}

	result.Warnings = warnings
	p.persistWarnings(ctx, orderID, warnings)
	return result, errors.Join(mutationErrs...)
}

// HandleDraftOrderUpdated recomputes discounts for a draft order. No
// ledger is granted yet - entitlements start at order creation.
func (p *Processor) HandleDraftOrderUpdated(ctx context.Context, eventID, orderID string) (*Result, error) {
	unlock := p.locks.lock(orderID)
	defer unlock()

	result := &Result{OrderID: orderID}
	if replayed, err := p.seen(ctx, eventID); err != nil {
		return nil, err
	} else if replayed {
		result.Replayed = true
		return result, nil
	}

	cfg, err := p.Config.AppConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}

	order, err := p.Commerce.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	groups, warnings := engine.GroupByProduct(mapLines(order))
	discountEngine := &engine.DiscountEngine{Source: p.source(cfg)}
	decisions, decisionWarnings := discountEngine.Decide(groups)
	warnings = append(warnings, decisionWarnings...)

	var mutationErrs []error
	for _, productID := range groups.Products() {
		group, _ := groups.Group(productID)
		decision := decisions[group.Lines[0].ID]
		if !decision.ShouldApply {
			continue
		}
		for _, line := range group.Lines {
			if err := p.Commerce.UpdateLineDiscount(ctx, string(line.ID), discountInput(decision)); err != nil {
				mutationErrs = append(mutationErrs, fmt.Errorf("line %s: apply discount: %w", line.ID, err))
				continue
			}
			result.DiscountedLines++
		}
	}

	result.Warnings = warnings
	p.persistWarnings(ctx, orderID, warnings)
	return result, errors.Join(mutationErrs...)
}

// =============================================================================
// REDEMPTION PASS (order fulfilled)
// =============================================================================

// HandleOrderFulfilled runs the redemption pass: per product group, the
// fulfilled quantities are deducted from the group's ledger FIFO by
// deadline and the updated ledger is written back.
//
// A fulfillment line referencing a line that is not part of the order is
// a caller error and rejects the whole event.
func (p *Processor) HandleOrderFulfilled(ctx context.Context, eventID, orderID string, fulfillment []FulfillmentLine) (*Result, error) {
	unlock := p.locks.lock(orderID)
	defer unlock()

	result := &Result{OrderID: orderID}
	if replayed, err := p.seen(ctx, eventID); err != nil {
		return nil, err
	} else if replayed {
		result.Replayed = true
		return result, nil
	}

	order, err := p.Commerce.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	lines := mapLines(order)
	known := make(map[engine.LineID]bool, len(lines))
	for _, line := range lines {
		known[line.ID] = true
	}

	redemptions := make(engine.RedemptionRequest, len(fulfillment))
	for _, fl := range fulfillment {
		id := engine.LineID(fl.LineID)
		if !known[id] {
			return nil, fmt.Errorf("fulfillment references line %s not in order %s: %w",
				fl.LineID, orderID, engine.ErrUnknownRedemptionLine)
		}
		redemptions[id] += fl.Quantity
	}

	groups, warnings := engine.GroupByProduct(lines)

	var mutationErrs []error
	for _, productID := range groups.Products() {
		group, _ := groups.Group(productID)

		// Lines without a valid ledger entry are excluded from pooling.
		var entries []engine.LedgerEntry
		for _, line := range group.Lines {
			if entry, ok := engine.ParseLedgerEntry(line.ID, line.PrivateMetadata); ok {
				entries = append(entries, entry)
			}
		}
		if len(entries) == 0 {
			continue
		}

		groupRequest := make(engine.RedemptionRequest)
		for _, entry := range entries {
			if qty, ok := redemptions[entry.LineID]; ok {
				groupRequest[entry.LineID] = qty
			}
		}

		updated, allocWarnings, err := engine.Redeem(entries, groupRequest)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, allocWarnings...)

		for _, entry := range updated {
			if err := p.Commerce.UpdateLinePrivateMetadata(ctx, string(entry.LineID), metadataItems(entry.Pairs())); err != nil {
				mutationErrs = append(mutationErrs, fmt.Errorf("line %s: write ledger metadata: %w", entry.LineID, err))
				continue
			}
			result.UpdatedLines++
		}
	}

	result.Warnings = warnings
	p.persistWarnings(ctx, orderID, warnings)
	return result, errors.Join(mutationErrs...)
}

// =============================================================================
// HELPERS
// =============================================================================

// seen records the event ID and reports whether it was a replay.
func (p *Processor) seen(ctx context.Context, eventID string) (bool, error) {
	if p.Events == nil || eventID == "" {
		return false, nil
	}
	first, err := p.Events.MarkProcessed(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", eventID, err)
	}
	return !first, nil
}

func (p *Processor) persistWarnings(ctx context.Context, orderID string, warnings []engine.Warning) {
	if p.Warnings == nil || len(warnings) == 0 {
		return
	}
	// Warning persistence is best effort; losing a warning must not fail
	// the pass that produced it.
	_ = p.Warnings.RecordWarnings(ctx, orderID, warnings)
}

// mapLines converts platform lines into engine lines.
func mapLines(order *commerce.Order) []engine.OrderLine {
	lines := make([]engine.OrderLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		line := engine.OrderLine{
			ID:              engine.LineID(l.ID),
			Quantity:        l.Quantity,
			PrivateMetadata: pairs(l.PrivateMetadata),
		}
		if l.UnitPrice != nil {
			line.UnitPrice = l.UnitPrice.Gross.Amount
		}
		if product := l.ResolveProduct(); product != nil {
			line.ProductID = engine.ProductID(product.ID)
			line.ProductMetadata = pairs(product.Metadata)
		}
		lines = append(lines, line)
	}
	return lines
}

func pairs(items []commerce.MetadataItem) []engine.Pair {
	out := make([]engine.Pair, 0, len(items))
	for _, item := range items {
		out = append(out, engine.Pair{Key: item.Key, Value: item.Value})
	}
	return out
}

func metadataItems(pairs []engine.Pair) []commerce.MetadataItem {
	out := make([]commerce.MetadataItem, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, commerce.MetadataItem{Key: p.Key, Value: p.Value})
	}
	return out
}

// discountInput maps an engine decision to the platform mutation payload.
func discountInput(decision engine.DiscountDecision) commerce.DiscountInput {
	valueType := commerce.ValueTypePercentage
	if decision.Mode == engine.ValueFixed {
		valueType = commerce.ValueTypeFixed
	}
	return commerce.DiscountInput{
		ValueType: valueType,
		Value:     decision.Value.String(),
		Reason:    "Bulk discount applied",
	}
}

// =============================================================================
// PER-ORDER SERIALIZATION
// =============================================================================

// orderLocks hands out one mutex per order ID. Locks are never reclaimed;
// the set of in-flight orders is small and bounded by webhook traffic.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *orderLocks) lock(orderID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
