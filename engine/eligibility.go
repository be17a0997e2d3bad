/*
eligibility.go - Eligibility and discount decisions per product group

PURPOSE:
  Decides, per product group, whether the bulk discount applies and at
  what value. The decision is uniform across all lines of one product in
  one pass: either every line of the group gets the discount or none does.

SETTINGS SOURCING:
  Two incompatible sourcing strategies exist in deployments of this
  system: per-product metadata (bulk_eligible/bulk_threshold/bulk_value on
  the product) and app-level configuration (minQty/discountPercent from a
  configuration store). The engine is parameterized over a SettingsSource
  strategy selected once by the caller - it never hard-codes which, and no
  precedence rule merges the two.

VALUE INTERPRETATION:
  The configured value is either a percentage (0-100, applied to unit
  price) or a fixed absolute deduction. The active interpretation is
  exposed per call via SettingsSource.Mode() and echoed on every decision.

EDGE CASES:
  - Threshold is inclusive: totalQty == threshold qualifies.
  - A zero-quantity line contributes nothing but is a valid group member.
  - Negative configured threshold or value is invalid_configuration:
    treated as not eligible, warned, processing continues.
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTINGS
// =============================================================================

// EligibilitySettings is the per-product (or per-order, in app-config
// deployments) bulk discount rule.
type EligibilitySettings struct {
	Eligible  bool
	Threshold int
	Value     decimal.Decimal
}

// ValueMode says how a configured discount value is interpreted.
type ValueMode string

const (
	// ValuePercentage applies the value as a 0-100 percentage of unit price.
	ValuePercentage ValueMode = "percentage"

	// ValueFixed deducts the value as an absolute amount.
	ValueFixed ValueMode = "fixed"
)

// SettingsSource resolves eligibility settings for a product group.
// Implementations: ProductMetadataSource, AppConfigSource (sources.go).
// The caller picks exactly one per deployment.
type SettingsSource interface {
	// Resolve returns the settings for the group and whether any settings
	// exist for it. Absent settings mean not eligible.
	Resolve(group *ProductGroup) (EligibilitySettings, bool)

	// Mode reports how Value is interpreted for settings from this source.
	Mode() ValueMode
}

// =============================================================================
// DISCOUNT DECISION
// =============================================================================

// DiscountDecision is the per-line result of the eligibility pass.
//
// INVARIANT: all lines of one group carry the same ShouldApply, and Value
// is zero whenever ShouldApply is false.
type DiscountDecision struct {
	ShouldApply bool
	Value       decimal.Decimal
	Mode        ValueMode
}

// =============================================================================
// DISCOUNT ENGINE
// =============================================================================

// DiscountEngine produces a discount decision for every line of every
// group, using the injected settings strategy.
type DiscountEngine struct {
	Source SettingsSource
}

// Decide computes a decision for every line in every group. Groups with
// invalid configuration are decided as not eligible and warned; other
// groups are unaffected.
func (e *DiscountEngine) Decide(groups *GroupSet) (map[LineID]DiscountDecision, []Warning) {
	decisions := make(map[LineID]DiscountDecision)
	var warnings []Warning

	for _, productID := range groups.Products() {
		group, _ := groups.Group(productID)
		decision, warn := e.decideGroup(group)
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		for _, line := range group.Lines {
			decisions[line.ID] = decision
		}
	}

	return decisions, warnings
}

// decideGroup computes the uniform decision for one group.
func (e *DiscountEngine) decideGroup(group *ProductGroup) (DiscountDecision, *Warning) {
	none := DiscountDecision{ShouldApply: false, Value: decimal.Zero, Mode: e.Source.Mode()}

	settings, found := e.Source.Resolve(group)
	if !found || !settings.Eligible {
		return none, nil
	}

	if settings.Threshold < 0 || settings.Value.IsNegative() {
		return none, &Warning{
			Code:      WarnInvalidConfiguration,
			ProductID: group.ProductID,
			Message: fmt.Sprintf("negative threshold (%d) or value (%s); treated as not eligible",
				settings.Threshold, settings.Value),
		}
	}

	// Threshold is inclusive.
	if group.TotalQuantity() < settings.Threshold {
		return none, nil
	}

	return DiscountDecision{
		ShouldApply: true,
		Value:       settings.Value,
		Mode:        e.Source.Mode(),
	}, nil
}
