package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/engine"
)

func TestBuildLedger_GrantsPerLineShares(t *testing.T) {
	// GIVEN a qualifying group of two lines (5 and 3)
	group := &engine.ProductGroup{
		ProductID: "prod-a",
		Lines: []engine.OrderLine{
			{ID: "l1", Quantity: 5},
			{ID: "l2", Quantity: 3},
		},
	}
	grantAt := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	// WHEN building the ledger with a 14-day window
	entries := engine.BuildLedger(group, grantAt, engine.GrantConfig{
		WindowDays: 14,
		Discount:   decimal.NewFromInt(10),
	})

	// THEN each line gets granted=remaining=quantity, a shared deadline,
	// and the pool total
	require.Len(t, entries, 2)
	wantDeadline := time.Date(2026, time.September, 14, 12, 0, 0, 0, time.UTC)

	for i, want := range []struct {
		lineID engine.LineID
		qty    int
	}{{"l1", 5}, {"l2", 3}} {
		e := entries[i]
		assert.Equal(t, want.lineID, e.LineID)
		assert.Equal(t, engine.ProductID("prod-a"), e.ProductID)
		assert.Equal(t, want.qty, e.Granted)
		assert.Equal(t, want.qty, e.Remaining)
		assert.Equal(t, 8, e.PoolRemaining)
		assert.True(t, e.DeadlineValid)
		assert.True(t, wantDeadline.Equal(e.Deadline))
		assert.Equal(t, 14, e.WindowDays)
		assert.True(t, e.Discount.Equal(decimal.NewFromInt(10)))
	}
}

func TestBuildLedger_Idempotent(t *testing.T) {
	// A replayed grant from identical inputs writes identical values.
	group := &engine.ProductGroup{
		ProductID: "prod-a",
		Lines:     []engine.OrderLine{{ID: "l1", Quantity: 5}},
	}
	grantAt := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	cfg := engine.GrantConfig{WindowDays: 14, Discount: decimal.NewFromInt(10)}

	first := engine.BuildLedger(group, grantAt, cfg)
	second := engine.BuildLedger(group, grantAt, cfg)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Pairs(), second[i].Pairs())
	}
}

func TestBuildLedger_NormalizesToUTC(t *testing.T) {
	group := &engine.ProductGroup{
		ProductID: "prod-a",
		Lines:     []engine.OrderLine{{ID: "l1", Quantity: 1}},
	}
	est := time.FixedZone("EST", -5*3600)
	grantAt := time.Date(2026, time.August, 31, 22, 0, 0, 0, est)

	entries := engine.BuildLedger(group, grantAt, engine.GrantConfig{WindowDays: 1})

	require.Len(t, entries, 1)
	assert.Equal(t, time.UTC, entries[0].Deadline.Location())
	assert.True(t, grantAt.UTC().AddDate(0, 0, 1).Equal(entries[0].Deadline))
}
