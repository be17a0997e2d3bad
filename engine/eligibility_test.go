package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func productSettings(eligible string, threshold, value string) []engine.Pair {
	return []engine.Pair{
		{Key: engine.KeyBulkEligible, Value: eligible},
		{Key: engine.KeyBulkThreshold, Value: threshold},
		{Key: engine.KeyBulkValue, Value: value},
	}
}

func groupOf(lines ...engine.OrderLine) *engine.GroupSet {
	groups, _ := engine.GroupByProduct(lines)
	return groups
}

// =============================================================================
// PRODUCT METADATA SOURCING
// =============================================================================

func TestDecide_QualifyingGroup(t *testing.T) {
	// GIVEN a product tagged eligible with threshold 5 and value 10, and a
	// group of quantity 5 at unit price 100
	groups := groupOf(engine.OrderLine{
		ID:              "l1",
		Quantity:        5,
		UnitPrice:       decimal.NewFromInt(100),
		ProductID:       "prod-a",
		ProductMetadata: productSettings("true", "5", "10"),
	})
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	// WHEN deciding
	decisions, warnings := eng.Decide(groups)

	// THEN the line gets {apply, 10, percentage}
	assert.Empty(t, warnings)
	d := decisions["l1"]
	assert.True(t, d.ShouldApply)
	assert.True(t, d.Value.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, engine.ValuePercentage, d.Mode)
}

func TestDecide_ThresholdIsInclusive(t *testing.T) {
	// Quantity 4 below threshold 5 fails, exactly 5 qualifies.
	below := groupOf(engine.OrderLine{
		ID: "l1", Quantity: 4, ProductID: "prod-a",
		ProductMetadata: productSettings("true", "5", "10"),
	})
	at := groupOf(engine.OrderLine{
		ID: "l1", Quantity: 5, ProductID: "prod-a",
		ProductMetadata: productSettings("true", "5", "10"),
	})
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	decisions, _ := eng.Decide(below)
	assert.False(t, decisions["l1"].ShouldApply)
	assert.True(t, decisions["l1"].Value.IsZero())

	decisions, _ = eng.Decide(at)
	assert.True(t, decisions["l1"].ShouldApply)
}

func TestDecide_NotEligibleProduct(t *testing.T) {
	groups := groupOf(engine.OrderLine{
		ID: "l1", Quantity: 50, ProductID: "prod-a",
		ProductMetadata: productSettings("false", "5", "10"),
	})
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	decisions, warnings := eng.Decide(groups)

	assert.Empty(t, warnings)
	assert.False(t, decisions["l1"].ShouldApply)
}

func TestDecide_AbsentSettings(t *testing.T) {
	// No bulk_eligible key at all: not eligible, no warning.
	groups := groupOf(engine.OrderLine{
		ID: "l1", Quantity: 50, ProductID: "prod-a",
	})
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	decisions, warnings := eng.Decide(groups)

	assert.Empty(t, warnings)
	assert.False(t, decisions["l1"].ShouldApply)
}

func TestDecide_UniformAcrossGroup(t *testing.T) {
	// GIVEN two lines of the same product that only qualify together
	// (2 + 3 >= threshold 5)
	groups := groupOf(
		engine.OrderLine{
			ID: "l1", Quantity: 2, ProductID: "prod-a",
			ProductMetadata: productSettings("true", "5", "10"),
		},
		engine.OrderLine{
			ID: "l2", Quantity: 3, ProductID: "prod-a",
			ProductMetadata: productSettings("true", "5", "10"),
		},
	)
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	// WHEN deciding
	decisions, _ := eng.Decide(groups)

	// THEN both lines carry the identical decision
	assert.Equal(t, decisions["l1"], decisions["l2"])
	assert.True(t, decisions["l1"].ShouldApply)
}

func TestDecide_InvalidConfiguration(t *testing.T) {
	// GIVEN a negative threshold
	groups := groupOf(engine.OrderLine{
		ID: "l1", Quantity: 50, ProductID: "prod-a",
		ProductMetadata: productSettings("true", "-1", "10"),
	})
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	// WHEN deciding
	decisions, warnings := eng.Decide(groups)

	// THEN the group is warned and treated as not eligible
	require.Len(t, warnings, 1)
	assert.Equal(t, engine.WarnInvalidConfiguration, warnings[0].Code)
	assert.Equal(t, engine.ProductID("prod-a"), warnings[0].ProductID)
	assert.False(t, decisions["l1"].ShouldApply)
}

func TestDecide_InvalidGroupDoesNotBlockOthers(t *testing.T) {
	groups := groupOf(
		engine.OrderLine{
			ID: "l1", Quantity: 5, ProductID: "prod-bad",
			ProductMetadata: productSettings("true", "-1", "10"),
		},
		engine.OrderLine{
			ID: "l2", Quantity: 5, ProductID: "prod-good",
			ProductMetadata: productSettings("true", "5", "10"),
		},
	)
	eng := &engine.DiscountEngine{Source: &engine.ProductMetadataSource{}}

	decisions, warnings := eng.Decide(groups)

	require.Len(t, warnings, 1)
	assert.False(t, decisions["l1"].ShouldApply)
	assert.True(t, decisions["l2"].ShouldApply)
}

func TestDecide_FixedValueMode(t *testing.T) {
	groups := groupOf(engine.OrderLine{
		ID: "l1", Quantity: 5, ProductID: "prod-a",
		ProductMetadata: productSettings("true", "5", "2.50"),
	})
	eng := &engine.DiscountEngine{
		Source: &engine.ProductMetadataSource{ValueMode: engine.ValueFixed},
	}

	decisions, _ := eng.Decide(groups)

	d := decisions["l1"]
	assert.True(t, d.ShouldApply)
	assert.Equal(t, engine.ValueFixed, d.Mode)
	assert.True(t, d.Value.Equal(decimal.RequireFromString("2.50")))
}

// =============================================================================
// APP CONFIG SOURCING
// =============================================================================

func TestDecide_AppConfigSource(t *testing.T) {
	// GIVEN a store-wide rule of minQty 10, discount 10%
	groups := groupOf(
		engine.OrderLine{ID: "l1", Quantity: 10, ProductID: "prod-a"},
		engine.OrderLine{ID: "l2", Quantity: 3, ProductID: "prod-b"},
	)
	eng := &engine.DiscountEngine{
		Source: &engine.AppConfigSource{Config: engine.DefaultConfig()},
	}

	// WHEN deciding
	decisions, warnings := eng.Decide(groups)

	// THEN the rule applies per group, regardless of product tagging
	assert.Empty(t, warnings)
	assert.True(t, decisions["l1"].ShouldApply)
	assert.True(t, decisions["l1"].Value.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, engine.ValuePercentage, decisions["l1"].Mode)
	assert.False(t, decisions["l2"].ShouldApply)
}
