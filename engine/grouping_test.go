package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/engine"
)

func TestGroupByProduct_PreservesOrder(t *testing.T) {
	// GIVEN lines of two products interleaved
	lines := []engine.OrderLine{
		{ID: "l1", Quantity: 2, ProductID: "prod-a"},
		{ID: "l2", Quantity: 3, ProductID: "prod-b"},
		{ID: "l3", Quantity: 1, ProductID: "prod-a"},
	}

	// WHEN grouping
	groups, warnings := engine.GroupByProduct(lines)

	// THEN products appear in first-seen order and lines keep input order
	assert.Empty(t, warnings)
	require.Equal(t, 2, groups.Len())
	assert.Equal(t, []engine.ProductID{"prod-a", "prod-b"}, groups.Products())

	a, ok := groups.Group("prod-a")
	require.True(t, ok)
	require.Len(t, a.Lines, 2)
	assert.Equal(t, engine.LineID("l1"), a.Lines[0].ID)
	assert.Equal(t, engine.LineID("l3"), a.Lines[1].ID)
	assert.Equal(t, 3, a.TotalQuantity())
}

func TestGroupByProduct_MissingProductReference(t *testing.T) {
	// GIVEN a line with no resolvable product identity
	lines := []engine.OrderLine{
		{ID: "l1", Quantity: 2, ProductID: "prod-a"},
		{ID: "l2", Quantity: 4, ProductID: ""},
	}

	// WHEN grouping
	groups, warnings := engine.GroupByProduct(lines)

	// THEN the orphan is skipped with a warning; the rest proceeds
	require.Len(t, warnings, 1)
	assert.Equal(t, engine.WarnMissingProductReference, warnings[0].Code)
	assert.Equal(t, engine.LineID("l2"), warnings[0].LineID)
	assert.Equal(t, 1, groups.Len())
}

func TestGroupByProduct_ZeroQuantityLineIsValidMember(t *testing.T) {
	lines := []engine.OrderLine{
		{ID: "l1", Quantity: 0, ProductID: "prod-a"},
		{ID: "l2", Quantity: 5, ProductID: "prod-a"},
	}

	groups, warnings := engine.GroupByProduct(lines)

	assert.Empty(t, warnings)
	g, ok := groups.Group("prod-a")
	require.True(t, ok)
	assert.Len(t, g.Lines, 2)
	assert.Equal(t, 5, g.TotalQuantity())
}
