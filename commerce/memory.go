package commerce

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// MEMORY CLIENT - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is an in-memory Client. Mutations are applied to the seeded
// orders so a fulfillment pass reads back what a grant pass wrote,
// matching the metadata round-trip of the real platform.
type Memory struct {
	mu        sync.RWMutex
	orders    map[string]*Order
	discounts map[string]DiscountInput // lineID -> last applied discount
}

func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[string]*Order),
		discounts: make(map[string]DiscountInput),
	}
}

// SeedOrder installs an order for later fetches.
func (m *Memory) SeedOrder(order *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *Memory) FetchOrder(_ context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("commerce: order %s not found", orderID)
	}

	// Deep-enough copy so callers never alias the seeded state.
	clone := *order
	clone.Lines = make([]OrderLine, len(order.Lines))
	copy(clone.Lines, order.Lines)
	for i := range clone.Lines {
		meta := make([]MetadataItem, len(order.Lines[i].PrivateMetadata))
		copy(meta, order.Lines[i].PrivateMetadata)
		clone.Lines[i].PrivateMetadata = meta
	}
	return &clone, nil
}

func (m *Memory) UpdateLineDiscount(_ context.Context, lineID string, input DiscountInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, _, ok := m.findLine(lineID); !ok {
		return fmt.Errorf("commerce: line %s not found", lineID)
	}
	m.discounts[lineID] = input
	return nil
}

func (m *Memory) UpdateLinePrivateMetadata(_ context.Context, lineID string, items []MetadataItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, idx, ok := m.findLine(lineID)
	if !ok {
		return fmt.Errorf("commerce: line %s not found", lineID)
	}

	// Merge by key, as the platform's updatePrivateMetadata does.
	merged := make(map[string]string)
	for _, item := range order.Lines[idx].PrivateMetadata {
		merged[item.Key] = item.Value
	}
	for _, item := range items {
		merged[item.Key] = item.Value
	}
	replaced := make([]MetadataItem, 0, len(merged))
	for k, v := range merged {
		replaced = append(replaced, MetadataItem{Key: k, Value: v})
	}
	order.Lines[idx].PrivateMetadata = replaced
	return nil
}

// Discount returns the last discount applied to a line, for assertions.
func (m *Memory) Discount(lineID string) (DiscountInput, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discounts[lineID]
	return d, ok
}

// LinePrivateMetadata returns a line's current private metadata, for
// assertions.
func (m *Memory) LinePrivateMetadata(lineID string) ([]MetadataItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, idx, ok := m.findLine(lineID)
	if !ok {
		return nil, false
	}
	items := make([]MetadataItem, len(order.Lines[idx].PrivateMetadata))
	copy(items, order.Lines[idx].PrivateMetadata)
	return items, true
}

// findLine locates a line across all seeded orders. Caller holds the lock.
func (m *Memory) findLine(lineID string) (*Order, int, bool) {
	for _, order := range m.orders {
		for i := range order.Lines {
			if order.Lines[i].ID == lineID {
				return order, i, true
			}
		}
	}
	return nil, 0, false
}

// Compile-time check that Memory implements Client.
var _ Client = (*Memory)(nil)
