/**
 * @description
 * This file provides the PostgreSQL implementation of the SummaryStore
 * interface. Successful payments land in an append-only table indexed by
 * timestamp; range queries aggregate with SUM/COUNT so totals are computed
 * in the database.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/routepay/gateway-service/internal/domain"
)

// PostgresSummaryStore is a concrete SummaryStore backed by PostgreSQL.
type PostgresSummaryStore struct {
	db *pgxpool.Pool
}

// NewPostgresSummaryStore creates a new instance of PostgresSummaryStore.
func NewPostgresSummaryStore(db *pgxpool.Pool) *PostgresSummaryStore {
	return &PostgresSummaryStore{db: db}
}

// EnsureSchema creates the summary table and its timestamp index when absent.
func (s *PostgresSummaryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS successful_payments (
			id           UUID PRIMARY KEY,
			upstream     TEXT NOT NULL,
			amount       NUMERIC NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS successful_payments_upstream_requested_at_idx
			ON successful_payments (upstream, requested_at);
	`)
	if err != nil {
		return fmt.Errorf("ensure summary schema: %w", err)
	}
	return nil
}

func (s *PostgresSummaryStore) Record(ctx context.Context, upstream domain.Upstream, amount decimal.Decimal, timestamp time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO successful_payments (id, upstream, amount, requested_at) VALUES ($1, $2, $3, $4)`,
		uuid.New(), string(upstream), amount.String(), timestamp.UTC(),
	)
	return err
}

func (s *PostgresSummaryStore) Range(ctx context.Context, upstream domain.Upstream, from, to *time.Time) (domain.Summary, error) {
	summary := domain.Summary{TotalAmount: decimal.Zero}

	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0)::text
		FROM successful_payments
		WHERE upstream = $1
		  AND ($2::timestamptz IS NULL OR requested_at >= $2)
		  AND ($3::timestamptz IS NULL OR requested_at <= $3)`

	var totalText string
	if err := s.db.QueryRow(ctx, query, string(upstream), from, to).Scan(&summary.TotalRequests, &totalText); err != nil {
		return summary, err
	}
	total, err := decimal.NewFromString(totalText)
	if err != nil {
		return summary, fmt.Errorf("parse summary total %q: %w", totalText, err)
	}
	summary.TotalAmount = total
	return summary, nil
}

func (s *PostgresSummaryStore) Purge(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `TRUNCATE successful_payments`)
	return err
}
