/**
 * @description
 * This file contains the HTTP handlers for the gateway-service's public API:
 * payment ingestion, summary aggregation and the administrative purge.
 *
 * Key features:
 * - Ingestion: validates the payload shape and enqueues; it never waits on an
 *   upstream processor, so a 202 is returned within microseconds.
 * - Summary: parses the optional from/to window and reports per-upstream
 *   totals with exact decimal amounts.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routepay/gateway-service/internal/domain"
	"github.com/routepay/gateway-service/internal/store"
)

// PaymentService is the slice of the engine the API layer consumes.
type PaymentService interface {
	SubmitPayment(ctx context.Context, payment domain.PaymentRequest) error
	GetSummary(ctx context.Context, from, to *time.Time) (domain.SummaryResponse, error)
	PurgeAll(ctx context.Context) error
}

// Handler holds the dependencies for the HTTP handlers.
type Handler struct {
	service PaymentService
	logger  *slog.Logger
}

// NewHandler creates the API handler set.
func NewHandler(service PaymentService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type paymentPayload struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
}

// handleSubmitPayment accepts a payment for asynchronous processing.
func (h *Handler) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	correlationID, err := uuid.Parse(payload.CorrelationID)
	if err != nil {
		http.Error(w, "correlationId must be a valid UUID", http.StatusBadRequest)
		return
	}
	if !payload.Amount.IsPositive() {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	payment := domain.PaymentRequest{CorrelationID: correlationID, Amount: payload.Amount}
	if err := h.service.SubmitPayment(r.Context(), payment); err != nil {
		if errors.Is(err, store.ErrQueueFull) {
			http.Error(w, "service overloaded", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("failed to enqueue payment", "correlation_id", correlationID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type summaryEntry struct {
	TotalRequests int64           `json:"totalRequests"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

type summaryPayload struct {
	Default  summaryEntry `json:"default"`
	Fallback summaryEntry `json:"fallback"`
}

// handleGetSummary reports per-upstream totals, optionally restricted to the
// inclusive [from, to] window given as RFC 3339 timestamps.
func (h *Handler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		http.Error(w, "from must be an RFC 3339 timestamp", http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		http.Error(w, "to must be an RFC 3339 timestamp", http.StatusBadRequest)
		return
	}

	summary, err := h.service.GetSummary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to aggregate summary", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	response := summaryPayload{
		Default:  summaryEntry{TotalRequests: summary.Default.TotalRequests, TotalAmount: summary.Default.TotalAmount},
		Fallback: summaryEntry{TotalRequests: summary.Fallback.TotalRequests, TotalAmount: summary.Fallback.TotalAmount},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode summary response", "error", err)
	}
}

// handlePurgePayments wipes queued payments and recorded summaries.
func (h *Handler) handlePurgePayments(w http.ResponseWriter, r *http.Request) {
	if err := h.service.PurgeAll(r.Context()); err != nil {
		h.logger.Error("failed to purge payment data", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
