/*
dto.go - Data Transfer Objects for webhook payloads and API responses

PURPOSE:
  JSON structures for the webhook transport and the operator API. These
  decouple the wire contract from the internal domain types.

NAMING CONVENTION:
  - *Payload: Webhook request bodies from the host platform
  - *DTO: Response types returned to clients

VALIDATION:
  Structural validation uses go-playground/validator struct tags; see
  handlers.go for the bind-and-validate flow. Domain validation (negative
  thresholds and the like) stays in the engine, which reports it as
  warnings rather than rejecting the request.
*/
package api

import "time"

// =============================================================================
// WEBHOOK PAYLOADS
// =============================================================================

// OrderRef identifies the order a webhook refers to.
type OrderRef struct {
	ID      string `json:"id" validate:"required"`
	Created string `json:"created"`
}

// OrderCreatedPayload is the ORDER_CREATED webhook body.
type OrderCreatedPayload struct {
	Order *OrderRef `json:"order" validate:"required"`
}

// DraftOrderUpdatedPayload is the DRAFT_ORDER_UPDATED /
// DRAFT_ORDER_CREATED webhook body.
type DraftOrderUpdatedPayload struct {
	Order *OrderRef `json:"order" validate:"required"`
}

// FulfillmentLinePayload is one fulfilled line of a fulfillment.
type FulfillmentLinePayload struct {
	Quantity  int `json:"quantity" validate:"min=0"`
	OrderLine *struct {
		ID string `json:"id" validate:"required"`
	} `json:"orderLine" validate:"required"`
}

// OrderFulfilledPayload is the ORDER_FULFILLED webhook body.
type OrderFulfilledPayload struct {
	Order       *OrderRef `json:"order" validate:"required"`
	Fulfillment *struct {
		ID    string                   `json:"id"`
		Lines []FulfillmentLinePayload `json:"lines" validate:"dive"`
	} `json:"fulfillment" validate:"required"`
}

// =============================================================================
// OPERATOR API
// =============================================================================

// ConfigDTO is the operator configuration over the API.
type ConfigDTO struct {
	MinQty          int `json:"minQty" validate:"min=0"`
	DiscountPercent int `json:"discountPercent" validate:"min=0,max=100"`
	WindowDays      int `json:"windowDays" validate:"min=1"`
}

// WarningDTO is one persisted engine warning.
type WarningDTO struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	LineID    string    `json:"line_id,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookResultDTO summarizes one processed webhook event.
type WebhookResultDTO struct {
	OrderID         string   `json:"order_id"`
	Replayed        bool     `json:"replayed,omitempty"`
	DiscountedLines int      `json:"discounted_lines,omitempty"`
	UpdatedLines    int      `json:"updated_lines,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// =============================================================================
// MANIFEST
// =============================================================================

// ManifestDTO is the app registration document served to the host
// platform.
type ManifestDTO struct {
	ID               string            `json:"id"`
	Version          string            `json:"version"`
	Name             string            `json:"name"`
	Permissions      []string          `json:"permissions"`
	AppURL           string            `json:"appUrl"`
	ConfigurationURL string            `json:"configurationUrl"`
	Webhooks         []ManifestWebhook `json:"webhooks"`
}

// ManifestWebhook declares one webhook subscription.
type ManifestWebhook struct {
	Name        string   `json:"name"`
	AsyncEvents []string `json:"asyncEvents"`
	TargetURL   string   `json:"targetUrl"`
}
