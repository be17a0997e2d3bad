package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// APP CONFIG
// =============================================================================

func TestAppConfig_DefaultsWhenUnsaved(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.AppConfig(context.Background())

	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), cfg)
}

func TestAppConfig_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := engine.Config{MinQty: 25, DiscountPercent: 15, WindowDays: 30}

	require.NoError(t, store.SetAppConfig(context.Background(), want))

	got, err := store.AppConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetAppConfig_Overwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetAppConfig(ctx, engine.Config{MinQty: 5, DiscountPercent: 5, WindowDays: 7}))
	require.NoError(t, store.SetAppConfig(ctx, engine.Config{MinQty: 8, DiscountPercent: 12, WindowDays: 21}))

	got, err := store.AppConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.Config{MinQty: 8, DiscountPercent: 12, WindowDays: 21}, got)
}

// =============================================================================
// PROCESSED EVENTS
// =============================================================================

func TestMarkProcessed_Deduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	replay, err := store.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, replay)

	other, err := store.MarkProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}

// =============================================================================
// WARNING LOG
// =============================================================================

func TestRecordWarnings_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordWarnings(ctx, "order-1", []engine.Warning{
		{Code: engine.WarnMissingProductReference, LineID: "l1", Message: "no product"},
		{Code: engine.WarnInsufficientPoolBalance, ProductID: "prod-a", Message: "short by 2"},
	})
	require.NoError(t, err)

	records, err := store.ListWarnings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	codes := map[string]bool{}
	for _, r := range records {
		assert.Equal(t, "order-1", r.OrderID)
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
		codes[r.Code] = true
	}
	assert.True(t, codes[string(engine.WarnMissingProductReference)])
	assert.True(t, codes[string(engine.WarnInsufficientPoolBalance)])
}

func TestRecordWarnings_EmptyIsNoop(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordWarnings(context.Background(), "order-1", nil))

	records, err := store.ListWarnings(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListWarnings_RespectsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordWarnings(ctx, "order-1", []engine.Warning{
			{Code: engine.WarnMalformedDeadline, Message: "bad timestamp"},
		}))
	}

	records, err := store.ListWarnings(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// Non-positive limit falls back to the default.
	records, err = store.ListWarnings(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
