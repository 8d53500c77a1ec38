// Package journal keeps an audit trail of customers, orders and operator
// deliveries in Postgres. The storefront never reads it back; carts stay
// in memory.
package journal

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/shop/checkout"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Recorder stores delivery outcomes.
type Recorder interface {
	RecordDelivery(ctx context.Context, o checkout.Order, d checkout.Delivery) error
}

// Nop discards everything; it is used when no database is configured.
type Nop struct{}

// RecordDelivery implements Recorder.
func (Nop) RecordDelivery(context.Context, checkout.Order, checkout.Delivery) error { return nil }

// Journal is the Postgres Recorder.
type Journal struct {
	db      *sqlx.DB
	timeout time.Duration
}

const defaultTimeout = 3 * time.Second

// New wraps db. Writes give up after timeout; zero selects a default.
func New(db *sqlx.DB, timeout time.Duration) *Journal {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Journal{db: db, timeout: timeout}
}

const (
	upsertCustomer = `
INSERT INTO customers (id, handle, name, first_seen, last_seen)
VALUES (:id, :handle, :name, :placed_at, :placed_at)
ON CONFLICT (id) DO UPDATE
SET handle = EXCLUDED.handle, name = EXCLUDED.name, last_seen = EXCLUDED.last_seen`

	insertOrder = `
INSERT INTO orders (id, customer_id, locality, currency, items, total, placed_at)
VALUES (:order_id, :id, :locality, :currency, :items, :total, :placed_at)
ON CONFLICT (id) DO NOTHING`

	insertDelivery = `
INSERT INTO order_deliveries (order_id, operator_id, status, error, duration_ms)
VALUES (:order_id, :operator_id, :status, :error, :duration_ms)
ON CONFLICT (order_id, operator_id) DO UPDATE
SET status = EXCLUDED.status, error = EXCLUDED.error, duration_ms = EXCLUDED.duration_ms`
)

// deliveryRow flattens one order delivery for named queries.
type deliveryRow struct {
	CustomerID int64     `db:"id"`
	Handle     string    `db:"handle"`
	Name       string    `db:"name"`
	OrderID    string    `db:"order_id"`
	Locality   string    `db:"locality"`
	Currency   string    `db:"currency"`
	Items      int       `db:"items"`
	Total      string    `db:"total"`
	PlacedAt   time.Time `db:"placed_at"`
	OperatorID int64     `db:"operator_id"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	DurationMS int64     `db:"duration_ms"`
}

func newDeliveryRow(o checkout.Order, d checkout.Delivery) deliveryRow {
	row := deliveryRow{
		CustomerID: o.Customer.ID,
		Handle:     o.Customer.Handle,
		Name:       o.Customer.Name,
		OrderID:    o.ID,
		Locality:   o.Locality,
		Currency:   o.Currency,
		Items:      len(o.Items),
		Total:      o.Total.StringFixed(2),
		PlacedAt:   o.Timestamp.UTC(),
		OperatorID: d.OperatorID,
		Status:     logger.Status(d.Err),
		DurationMS: logger.RoundMS(d.Duration).Milliseconds(),
	}
	if d.Err != nil {
		row.Error = logger.SanitizeLimit(d.Err.Error(), 512)
	}
	return row
}

// RecordDelivery upserts the customer and order, then stores the delivery,
// all in one transaction. Re-recording the same delivery overwrites it.
func (j *Journal) RecordDelivery(ctx context.Context, o checkout.Order, d checkout.Delivery) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()

	row := newDeliveryRow(o, d)
	start := time.Now()
	err := j.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, q := range []string{upsertCustomer, insertOrder, insertDelivery} {
			if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, logger.ComponentJournal, "journal.delivery",
			slog.String("status", "fail"),
			slog.String("order_id", o.ID),
			slog.Int64("operator_id", d.OperatorID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("journal: record delivery: %w", err)
	}
	logger.Debug(ctx, logger.ComponentJournal, "journal.delivery",
		slog.String("status", "ok"),
		slog.String("order_id", o.ID),
		slog.Int64("operator_id", d.OperatorID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Ping checks the database, for health probes.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *Journal) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
