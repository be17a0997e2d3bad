// Package commerce talks to the host commerce platform: fetching orders
// and writing line discounts and private metadata back. The engine never
// imports this package; the processor maps between the two.
package commerce

import "github.com/shopspring/decimal"

// MetadataItem is one key/value item as the platform represents it.
type MetadataItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Money is a platform money amount.
type Money struct {
	Amount decimal.Decimal `json:"amount"`
}

// TaxedMoney carries gross amount. Net and tax are the platform's
// concern, not this app's.
type TaxedMoney struct {
	Gross Money `json:"gross"`
}

// Product carries the identity and metadata bag the eligibility pass
// reads.
type Product struct {
	ID       string         `json:"id"`
	Metadata []MetadataItem `json:"metadata"`
}

// Variant wraps its product. Order lines may reference their product
// either directly or through the variant.
type Variant struct {
	ID      string   `json:"id"`
	Product *Product `json:"product"`
}

// OrderLine is the platform's order line shape.
type OrderLine struct {
	ID                string         `json:"id"`
	Quantity          int            `json:"quantity"`
	QuantityFulfilled int            `json:"quantityFulfilled"`
	UnitPrice         *TaxedMoney    `json:"unitPrice"`
	Product           *Product       `json:"product"`
	Variant           *Variant       `json:"variant"`
	PrivateMetadata   []MetadataItem `json:"privateMetadata"`
}

// ResolveProduct returns the line's product from either attachment point.
func (l *OrderLine) ResolveProduct() *Product {
	if l.Product != nil {
		return l.Product
	}
	if l.Variant != nil {
		return l.Variant.Product
	}
	return nil
}

// Order is the platform order with its lines.
type Order struct {
	ID    string      `json:"id"`
	Lines []OrderLine `json:"lines"`
}

// ValueType tags how a discount value is applied by the platform.
type ValueType string

const (
	ValueTypePercentage ValueType = "PERCENTAGE"
	ValueTypeFixed      ValueType = "FIXED"
)

// DiscountInput is the "set discount on line" mutation payload.
type DiscountInput struct {
	ValueType ValueType `json:"valueType"`
	Value     string    `json:"value"`
	Reason    string    `json:"reason"`
}
