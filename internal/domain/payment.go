/**
 * @description
 * This file defines the core domain models for the gateway-service: the
 * payment submitted by clients, the request forwarded to an upstream
 * processor, and the verification task used to reconcile ambiguous outcomes.
 *
 * @notes
 * - Amounts use `decimal.Decimal` so summary totals stay exact regardless of
 *   how many records are added; float64 drifts under load.
 * - A VerificationTask carries the tentative timestamp of the original
 *   attempt so that a payment confirmed later is still credited at the time
 *   it was actually sent.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRequest is a client-submitted payment. It is immutable once accepted.
type PaymentRequest struct {
	CorrelationID uuid.UUID       `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
}

// ProcessorPaymentRequest is the payload forwarded to an upstream processor.
// RequestedAt is generated fresh per attempt and is the tentative effective
// time used for summary crediting if the attempt succeeds.
type ProcessorPaymentRequest struct {
	CorrelationID uuid.UUID       `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
}

// VerificationTask carries the full context needed to reconcile a payment
// whose attempt ended with an unknown outcome.
type VerificationTask struct {
	Payment            PaymentRequest `json:"payment"`
	Upstream           Upstream       `json:"upstream"`
	TentativeTimestamp time.Time      `json:"tentativeTimestamp"`
}

// Summary holds the aggregate over one upstream's successful payments.
type Summary struct {
	TotalRequests int64           `json:"totalRequests"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// SummaryResponse is the response body of GET /payments-summary.
type SummaryResponse struct {
	Default  Summary `json:"default"`
	Fallback Summary `json:"fallback"`
}
