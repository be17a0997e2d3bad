package commerce

import "context"

// Client is the narrow surface this app needs from the host platform.
//
// Implementations: GraphQLClient (production) and Memory (tests/dev).
type Client interface {
	// FetchOrder loads an order with lines, prices, product metadata and
	// line private metadata.
	FetchOrder(ctx context.Context, orderID string) (*Order, error)

	// UpdateLineDiscount applies a discount value to one order line.
	UpdateLineDiscount(ctx context.Context, lineID string, input DiscountInput) error

	// UpdateLinePrivateMetadata replaces/merges private metadata on one
	// order line.
	UpdateLinePrivateMetadata(ctx context.Context, lineID string, items []MetadataItem) error
}
