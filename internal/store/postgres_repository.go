/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface: the `payment_orders` ledger and the `gateway_configs` credential
 * store. Payment orders are never deleted; they are the financial audit trail
 * that reconciliation and reporting read from.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundedlabs/payment-service/internal/domain"
)

var (
	ErrOrderNotFound         = errors.New("payment order not found")
	ErrDuplicateOrder        = errors.New("payment order already exists")
	ErrGatewayConfigNotFound = errors.New("gateway config not found")
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreatePaymentOrder inserts one payment order row with status pending.
// A second insert with the same order_id surfaces as ErrDuplicateOrder via the
// unique constraint on that column.
func (r *PostgresRepository) CreatePaymentOrder(ctx context.Context, order *domain.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (
			id,
			order_id,
			payment_id,
			gateway,
			amount,
			currency,
			status,
			account_type_id,
			account_size,
			platform,
			model,
			coupon_code,
			metadata,
			created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		order.ID,
		order.OrderID,
		order.PaymentID,
		order.Gateway,
		order.Amount,
		order.Currency,
		order.Status,
		order.AccountTypeID,
		order.AccountSize,
		order.Platform,
		order.Model,
		order.CouponCode,
		order.Metadata,
		order.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// FindPaymentOrderByOrderID retrieves a payment order by its caller-generated
// correlation key.
func (r *PostgresRepository) FindPaymentOrderByOrderID(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	var order domain.PaymentOrder
	query := `
		SELECT id, order_id, payment_id, gateway, amount, currency, status,
		       account_type_id, account_size, platform, model, coupon_code,
		       metadata, created_by, created_at, updated_at
		FROM payment_orders
		WHERE order_id = $1
	`
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.OrderID,
		&order.PaymentID,
		&order.Gateway,
		&order.Amount,
		&order.Currency,
		&order.Status,
		&order.AccountTypeID,
		&order.AccountSize,
		&order.Platform,
		&order.Model,
		&order.CouponCode,
		&order.Metadata,
		&order.CreatedBy,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// SettlePaymentOrder transitions an order to a terminal status, but only if it
// is still pending. The WHERE guard makes replayed and racing webhook
// deliveries no-ops: once an order is success it can never be overwritten.
func (r *PostgresRepository) SettlePaymentOrder(ctx context.Context, orderID, paymentID, status string) (bool, error) {
	query := `
		UPDATE payment_orders
		SET status = $2,
		    payment_id = COALESCE(NULLIF($3, ''), payment_id),
		    updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, orderID, status, paymentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetActiveGatewayConfig loads the active credential bundle for a gateway from
// the config store. ErrGatewayConfigNotFound signals the caller to fall back
// to environment variables.
func (r *PostgresRepository) GetActiveGatewayConfig(ctx context.Context, gateway string) (*domain.GatewayConfig, error) {
	var cfg domain.GatewayConfig
	query := `
		SELECT gateway, key_id, key_secret, webhook_secret,
		       COALESCE(merchant_id, ''), base_url, COALESCE(environment, ''),
		       COALESCE(usd_inr_rate, 0)
		FROM gateway_configs
		WHERE lower(gateway) = lower($1) AND is_active = true
	`
	err := r.db.QueryRow(ctx, query, gateway).Scan(
		&cfg.Gateway,
		&cfg.KeyID,
		&cfg.KeySecret,
		&cfg.WebhookSecret,
		&cfg.MerchantID,
		&cfg.BaseURL,
		&cfg.Environment,
		&cfg.USDToINRRate,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGatewayConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}
