/**
 * @description
 * This package provides a client for one upstream payment processor. It
 * encapsulates the three endpoints the engine consumes (payment submission,
 * authoritative payment lookup, and the health endpoint) and classifies
 * failures so the attempt executor can tell a definitive rejection from an
 * ambiguous outcome.
 *
 * @notes
 * - A StatusError carries the upstream status code; everything else that goes
 *   wrong on the wire (timeout, refused connection, DNS) surfaces as a plain
 *   transport error. Both ambiguous classes get identical handling upstream
 *   of this package.
 */
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/routepay/gateway-service/internal/domain"
)

// ErrNotFound is returned by CheckPayment when the upstream definitively
// reports the payment never landed.
var ErrNotFound = errors.New("processor: payment not found")

// StatusError is a non-2xx response from the upstream.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("processor: upstream returned status %d", e.Code)
}

// IsRejection reports whether err is a definitive client-side rejection: the
// payment can never succeed and must be discarded rather than retried.
func IsRejection(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500
}

// Client talks to one upstream payment processor.
type Client struct {
	Name       domain.Upstream
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with bounded connect and response timeouts.
func NewClient(name domain.Upstream, baseURL string, connectTimeout, responseTimeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConns:        500,
		MaxIdleConnsPerHost: 500,
		IdleConnTimeout:     60 * time.Second,
	}
	return &Client{
		Name:    name,
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   responseTimeout,
		},
	}
}

// SubmitPayment POSTs the payment to the upstream. A nil return means the
// upstream acknowledged the payment; a StatusError means it answered with a
// non-2xx code; any other error means the outcome is unknown.
func (c *Client) SubmitPayment(ctx context.Context, payment domain.ProcessorPaymentRequest) error {
	body, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("marshal processor payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// CheckPayment queries the upstream's authoritative record for the payment.
// Returns nil when the payment is confirmed processed, ErrNotFound on 404,
// and any other error when the answer is indeterminate.
func (c *Client) CheckPayment(ctx context.Context, correlationID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/payments/"+correlationID.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return &StatusError{Code: resp.StatusCode}
	default:
		return nil
	}
}

// CheckHealth calls the upstream's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) (domain.ServiceHealth, error) {
	var health domain.ServiceHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/payments/service-health", nil)
	if err != nil {
		return health, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return health, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		return health, &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("decode health response: %w", err)
	}
	return health, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
