package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreatePending(ctx context.Context, o *Order, items []OrderItem) error
	AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	FindBySessionID(ctx context.Context, sessionID string) (uuid.UUID, error)
	CompleteAndAdjustStock(ctx context.Context, orderID uuid.UUID) (*SettlementResult, error)
	MarkFailed(ctx context.Context, orderID uuid.UUID) (bool, error)
	Get(ctx context.Context, orderID uuid.UUID) (*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// CreatePending writes the order and all of its items in one transaction.
func (r *repository) CreatePending(ctx context.Context, o *Order, items []OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Status = StatusPending

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, currency, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		o.ID,
		o.Status,
		o.Currency,
		o.AmountCents,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = o.ID
		it := items[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, slug, name_fr, qty, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			it.OrderID,
			it.ProductID,
			it.Slug,
			it.Name,
			it.Quantity,
			it.UnitPriceCents,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	o.Items = items
	return nil
}

func (r *repository) AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET session_id = $1
		WHERE id = $2
	`, sessionID, orderID)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT id
		FROM orders
		WHERE session_id = $1
	`, sessionID).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrOrderNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// CompleteAndAdjustStock flips a pending order to paid and decrements stock by
// the ordered quantities, all in one transaction. The guarded update takes the
// row lock, so concurrent callers for the same order serialize and only the
// first one sees a pending row.
func (r *repository) CompleteAndAdjustStock(ctx context.Context, orderID uuid.UUID) (*SettlementResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &SettlementResult{OrderID: orderID}

	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = 'paid', paid_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING amount_cents, currency
	`, orderID).Scan(&result.AmountCents, &result.Currency)

	if errors.Is(err, sql.ErrNoRows) {
		var status Status
		err = tx.QueryRowContext(ctx, `
			SELECT status, amount_cents, currency
			FROM orders
			WHERE id = $1
		`, orderID).Scan(&status, &result.AmountCents, &result.Currency)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}
		result.AlreadySettled = true
		result.Status = status
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	// Clamped at zero. A paid order is never rolled back over stock.
	rows, err := tx.QueryContext(ctx, `
		UPDATE products p
		SET quantity = GREATEST(p.quantity - oi.qty, 0)
		FROM (
			SELECT product_id, SUM(qty) AS qty
			FROM order_items
			WHERE order_id = $1
			GROUP BY product_id
		) oi
		WHERE p.id = oi.product_id
		RETURNING p.id, p.slug, p.quantity
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var adj StockAdjustment
		if err := rows.Scan(&adj.ProductID, &adj.Slug, &adj.Quantity); err != nil {
			return nil, fmt.Errorf("adjust stock: %w", err)
		}
		result.Adjustments = append(result.Adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.Status = StatusPaid
	return result, nil
}

// MarkFailed moves a pending order to failed. It reports false when the order
// was not pending.
func (r *repository) MarkFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = 'failed'
		WHERE id = $1
		  AND status = 'pending'
	`, orderID)
	if err != nil {
		return false, err
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r *repository) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var o Order
	var sessionID sql.NullString
	var paidAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, currency, amount_cents, session_id, created_at, paid_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&o.ID, &o.Status, &o.Currency, &o.AmountCents, &sessionID, &o.CreatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		o.SessionID = &sessionID.String
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, slug, name_fr, qty, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		it := OrderItem{OrderID: o.ID}
		if err := rows.Scan(&it.ProductID, &it.Slug, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}

	return &o, rows.Err()
}
