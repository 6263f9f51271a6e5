package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun    *bun.DB
	Logger *logger.Logger
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	return err
}

// duplicate maps unique constraint violations from postgres and sqlite to models.ErrDuplicateKey.
func duplicate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, pqErr.Constraint)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", models.ErrDuplicateKey, err)
	}
	return err
}

func (d *DB) failed(operation, table string, err error) error {
	if d.Logger != nil {
		d.Logger.LogDatabase(operation, table, err.Error())
	}
	return err
}

// CreateSchema creates the gateway tables when they do not exist. Postgres
// deployments use the SQL migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []any{
		(*models.Merchant)(nil),
		(*models.Payment)(nil),
		(*models.WebhookDelivery)(nil),
	}
	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", table, err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*models.WebhookDelivery)(nil)).
		Index("idx_webhook_deliveries_payment_id").
		Column("payment_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

// ---------------- PAYMENTS ----------------

func (d *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	if _, err := d.Bun.NewInsert().Model(p).Exec(ctx); err != nil {
		return d.failed("INSERT", "payments", duplicate(err))
	}
	return nil
}

// UpdatePayment writes the mutable columns of an existing payment.
func (d *DB) UpdatePayment(ctx context.Context, p *models.Payment) error {
	res, err := d.Bun.NewUpdate().
		Model(p).
		Column("status", "total_with_interest", "monthly_interest", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return d.failed("UPDATE", "payments", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

func (d *DB) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (d *DB) GetPaymentByIdempotencyKey(ctx context.Context, merchantID int64, key string) (*models.Payment, error) {
	var p models.Payment
	err := d.Bun.NewSelect().
		Model(&p).
		Where("merchant_id = ?", merchantID).
		Where("idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ---------------- WEBHOOK DELIVERIES ----------------

func (d *DB) CreateDelivery(ctx context.Context, w *models.WebhookDelivery) error {
	if _, err := d.Bun.NewInsert().Model(w).Returning("id").Exec(ctx); err != nil {
		return d.failed("INSERT", "webhook_deliveries", err)
	}
	return nil
}

// UpdateDelivery records the outcome of an attempt. Payload and signature are never rewritten.
func (d *DB) UpdateDelivery(ctx context.Context, w *models.WebhookDelivery) error {
	_, err := d.Bun.NewUpdate().
		Model(w).
		Column("attempts", "delivered", "last_attempt_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return d.failed("UPDATE", "webhook_deliveries", err)
	}
	return nil
}

func (d *DB) GetDeliveryByID(ctx context.Context, id int64) (*models.WebhookDelivery, error) {
	var w models.WebhookDelivery
	err := d.Bun.NewSelect().
		Model(&w).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

func (d *DB) ListDeliveriesByPayment(ctx context.Context, paymentID string) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := d.Bun.NewSelect().
		Model(&deliveries).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// ---------------- MERCHANTS ----------------

func (d *DB) CreateMerchant(ctx context.Context, m *models.Merchant) error {
	if _, err := d.Bun.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return d.failed("INSERT", "merchants", duplicate(err))
	}
	return nil
}

func (d *DB) GetMerchantByID(ctx context.Context, id int64) (*models.Merchant, error) {
	return d.getMerchant(ctx, "id = ?", id)
}

func (d *DB) GetMerchantByClientID(ctx context.Context, clientID string) (*models.Merchant, error) {
	return d.getMerchant(ctx, "client_id = ?", clientID)
}

func (d *DB) GetMerchantByName(ctx context.Context, name string) (*models.Merchant, error) {
	return d.getMerchant(ctx, "name = ?", name)
}

func (d *DB) getMerchant(ctx context.Context, where string, arg any) (*models.Merchant, error) {
	var m models.Merchant
	err := d.Bun.NewSelect().
		Model(&m).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}
