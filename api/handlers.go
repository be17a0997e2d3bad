/*
handlers.go - HTTP handlers for webhooks and the operator API

PURPOSE:
  Exposes the entitlement pool engine via HTTP. Handles request parsing,
  validation, and JSON serialization, and delegates all domain work to
  the processor.

ENDPOINTS:
  Webhooks (called by the host platform):
    POST /webhooks/order-created        Grant pass
    POST /webhooks/draft-order-updated  Discount recompute
    POST /webhooks/order-fulfilled      Redemption pass

  Operator API:
    GET  /api/config     Current configuration
    PUT  /api/config     Save configuration
    GET  /api/warnings   Recent engine warnings
    GET  /api/manifest   App registration document

EVENT DEDUPLICATION:
  The host delivers webhooks at least once. The delivery ID arrives in
  the X-Event-Id header; when absent, order-created falls back to a
  deterministic per-order key (the event fires once per order) and
  order-fulfilled to the fulfillment ID. Draft updates fire repeatedly by
  design and are only deduplicated when the header is present.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed payloads, validation failures, unknown redemption lines
  - 500: Platform or store failures
  Engine warnings are NOT errors: the pass succeeds (200) and the
  warnings ride along in the response body and the warning log.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/warp/entitlement-engine/engine"
	"github.com/warp/entitlement-engine/processor"
	"github.com/warp/entitlement-engine/store/sqlite"
)

// headerEventID carries the host platform's delivery ID.
const headerEventID = "X-Event-Id"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Proc  *processor.Processor
	Store *sqlite.Store

	// BaseURL is the externally visible base URL used in the manifest.
	BaseURL string

	validate *validatorv10.Validate
}

// NewHandler creates a handler around the processor and store.
func NewHandler(proc *processor.Processor, store *sqlite.Store, baseURL string) *Handler {
	return &Handler{
		Proc:     proc,
		Store:    store,
		BaseURL:  baseURL,
		validate: validatorv10.New(),
	}
}

// =============================================================================
// WEBHOOK HANDLERS
// =============================================================================

// OrderCreated handles the ORDER_CREATED webhook.
func (h *Handler) OrderCreated(w http.ResponseWriter, r *http.Request) {
	var payload OrderCreatedPayload
	if !h.bind(w, r, &payload) {
		return
	}

	createdAt, err := parseCreated(payload.Order.Created)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid created timestamp: %v", err))
		return
	}

	eventID := r.Header.Get(headerEventID)
	if eventID == "" {
		// ORDER_CREATED fires once per order; the order ID is a stable
		// deduplication key when the platform omits a delivery ID.
		eventID = "order-created:" + payload.Order.ID
	}

	result, err := h.Proc.HandleOrderCreated(r.Context(), eventID, payload.Order.ID, createdAt)
	h.writeResult(w, result, err)
}

// DraftOrderUpdated handles DRAFT_ORDER_UPDATED and DRAFT_ORDER_CREATED.
func (h *Handler) DraftOrderUpdated(w http.ResponseWriter, r *http.Request) {
	var payload DraftOrderUpdatedPayload
	if !h.bind(w, r, &payload) {
		return
	}

	// Draft updates fire on every edit; no derived dedup key exists.
	eventID := r.Header.Get(headerEventID)

	result, err := h.Proc.HandleDraftOrderUpdated(r.Context(), eventID, payload.Order.ID)
	h.writeResult(w, result, err)
}

// OrderFulfilled handles the ORDER_FULFILLED webhook.
func (h *Handler) OrderFulfilled(w http.ResponseWriter, r *http.Request) {
	var payload OrderFulfilledPayload
	if !h.bind(w, r, &payload) {
		return
	}

	eventID := r.Header.Get(headerEventID)
	if eventID == "" && payload.Fulfillment.ID != "" {
		eventID = "fulfillment:" + payload.Fulfillment.ID
	}

	lines := make([]processor.FulfillmentLine, 0, len(payload.Fulfillment.Lines))
	for _, fl := range payload.Fulfillment.Lines {
		lines = append(lines, processor.FulfillmentLine{
			LineID:   fl.OrderLine.ID,
			Quantity: fl.Quantity,
		})
	}

	result, err := h.Proc.HandleOrderFulfilled(r.Context(), eventID, payload.Order.ID, lines)
	h.writeResult(w, result, err)
}

// =============================================================================
// OPERATOR API HANDLERS
// =============================================================================

// GetConfig returns the current configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.AppConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, configDTO(cfg))
}

// UpdateConfig saves a new configuration.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var dto ConfigDTO
	if !h.bind(w, r, &dto) {
		return
	}

	cfg := engine.Config{
		MinQty:          dto.MinQty,
		DiscountPercent: dto.DiscountPercent,
		WindowDays:      dto.WindowDays,
	}
	if err := h.Store.SetAppConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, configDTO(cfg))
}

// ListWarnings returns recent engine warnings, newest first.
func (h *Handler) ListWarnings(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.Store.ListWarnings(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dtos := make([]WarningDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, WarningDTO{
			ID:        rec.ID,
			OrderID:   rec.OrderID,
			LineID:    rec.LineID,
			ProductID: rec.ProductID,
			Code:      rec.Code,
			Message:   rec.Message,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Manifest serves the app registration document.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	base := h.BaseURL
	writeJSON(w, http.StatusOK, ManifestDTO{
		ID:               "app.bulk-entitlements",
		Version:          "1.0.0",
		Name:             "Bulk Entitlements",
		Permissions:      []string{"MANAGE_ORDERS", "MANAGE_DISCOUNTS", "MANAGE_APPS"},
		AppURL:           base,
		ConfigurationURL: base + "/api/config",
		Webhooks: []ManifestWebhook{
			{
				Name:        "Order Created Webhook",
				AsyncEvents: []string{"ORDER_CREATED"},
				TargetURL:   base + "/webhooks/order-created",
			},
			{
				Name:        "Draft Order Updated Webhook",
				AsyncEvents: []string{"DRAFT_ORDER_UPDATED", "DRAFT_ORDER_CREATED"},
				TargetURL:   base + "/webhooks/draft-order-updated",
			},
			{
				Name:        "Order Fulfilled Webhook",
				AsyncEvents: []string{"ORDER_FULFILLED"},
				TargetURL:   base + "/webhooks/order-fulfilled",
			},
		},
	})
}

// =============================================================================
// REQUEST/RESPONSE HELPERS
// =============================================================================

// bind decodes the JSON body into out and validates it. On failure it
// writes a 400 response and returns false for the handler to
// short-circuit.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return false
	}
	return true
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}

// writeResult maps a processor result and error to an HTTP response.
func (h *Handler) writeResult(w http.ResponseWriter, result *processor.Result, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownRedemptionLine) || errors.Is(err, engine.ErrNegativeRedemption) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	dto := WebhookResultDTO{
		OrderID:         result.OrderID,
		Replayed:        result.Replayed,
		DiscountedLines: result.DiscountedLines,
		UpdatedLines:    result.UpdatedLines,
	}
	for _, warning := range result.Warnings {
		dto.Warnings = append(dto.Warnings, warning.String())
	}
	writeJSON(w, http.StatusOK, dto)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func configDTO(cfg engine.Config) ConfigDTO {
	return ConfigDTO{
		MinQty:          cfg.MinQty,
		DiscountPercent: cfg.DiscountPercent,
		WindowDays:      cfg.WindowDays,
	}
}

// parseCreated parses the order creation timestamp, defaulting to now
// when the payload omits it.
func parseCreated(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
