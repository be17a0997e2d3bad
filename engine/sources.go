/*
sources.go - Settings sourcing strategies

Two strategies, one chosen per deployment (never merged, no precedence
rule):

  ProductMetadataSource - merchandisers tag individual products with
      bulk_eligible / bulk_threshold / bulk_value metadata.

  AppConfigSource - one store-wide rule (minQty / discountPercent) from
      the app's configuration store; every product is eligible under it.

The caller resolves any I/O (configuration loads) before constructing the
source, so both strategies stay pure.
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// PRODUCT METADATA SOURCE
// =============================================================================

// ProductMetadataSource reads settings from the group's product metadata.
// All lines of a group share a product, so the first line's bag speaks for
// the group.
type ProductMetadataSource struct {
	// ValueMode defaults to ValuePercentage when unset.
	ValueMode ValueMode
}

func (s *ProductMetadataSource) Resolve(group *ProductGroup) (EligibilitySettings, bool) {
	if len(group.Lines) == 0 {
		return EligibilitySettings{}, false
	}
	return ParseProductSettings(group.Lines[0].ProductMetadata)
}

func (s *ProductMetadataSource) Mode() ValueMode {
	if s.ValueMode == "" {
		return ValuePercentage
	}
	return s.ValueMode
}

// =============================================================================
// APP CONFIG SOURCE
// =============================================================================

// Config is the app-level configuration record.
type Config struct {
	// MinQty is the group quantity threshold for the store-wide rule.
	MinQty int

	// DiscountPercent is the percentage discount granted at threshold.
	DiscountPercent int

	// WindowDays is the redemption window length in whole days.
	WindowDays int
}

// DefaultConfig mirrors the deployment defaults used when the operator
// has not saved a configuration yet.
func DefaultConfig() Config {
	return Config{MinQty: 10, DiscountPercent: 10, WindowDays: 14}
}

// AppConfigSource applies one store-wide rule to every group.
type AppConfigSource struct {
	Config Config
}

func (s *AppConfigSource) Resolve(group *ProductGroup) (EligibilitySettings, bool) {
	return EligibilitySettings{
		Eligible:  true,
		Threshold: s.Config.MinQty,
		Value:     decimal.NewFromInt(int64(s.Config.DiscountPercent)),
	}, true
}

func (s *AppConfigSource) Mode() ValueMode {
	return ValuePercentage
}
