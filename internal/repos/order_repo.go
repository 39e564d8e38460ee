package repos

import (
	"fmt"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = `id, buyer_id, address_id, status, total_cents, currency,
	created_at, COALESCE(updated_at,'') AS updated_at`

// Create inserts the order header and items and decrements stock, all in one
// transaction. Any item without enough stock aborts the whole order with
// ErrNoStock; nothing is written.
func (r *OrderRepo) Create(o *domain.Order) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	o.CreatedAt = now()
	if _, err := tx.Exec(`
		INSERT INTO orders(id,buyer_id,address_id,status,total_cents,currency,created_at)
		VALUES(?,?,?,?,?,?,?)
	`, o.ID, o.BuyerID, o.AddressID, o.Status, o.TotalCents, o.Currency, o.CreatedAt); err != nil {
		return err
	}

	for _, it := range o.Items {
		res, err := tx.Exec(`
			UPDATE products
			SET stock = stock - ?, updated_at = ?
			WHERE id = ? AND active = 1 AND stock >= ?
		`, it.Qty, o.CreatedAt, it.ProductID, it.Qty)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNoStock, it.ProductID)
		}
		if _, err := tx.Exec(`
			INSERT INTO order_items(order_id,product_id,seller_id,title,unit_cents,qty)
			VALUES(?,?,?,?,?,?)
		`, o.ID, it.ProductID, it.SellerID, it.Title, it.UnitCents, it.Qty); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get loads an order with its items.
func (r *OrderRepo) Get(id string) (domain.Order, error) {
	var o domain.Order
	if err := r.db.Get(&o, `SELECT `+orderCols+` FROM orders WHERE id = ?`, id); err != nil {
		return domain.Order{}, err
	}
	if err := r.db.Select(&o.Items, `
		SELECT order_id, product_id, seller_id, title, unit_cents, qty
		FROM order_items
		WHERE order_id = ?
		ORDER BY title
	`, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) ListByBuyer(buyerID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Order
	err := r.db.Select(&out, `
		SELECT `+orderCols+` FROM orders
		WHERE buyer_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, buyerID, limit, offset)
	return out, err
}

// ListBySeller returns orders that contain at least one of the seller's items.
func (r *OrderRepo) ListBySeller(sellerID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Order
	err := r.db.Select(&out, `
		SELECT DISTINCT o.id, o.buyer_id, o.address_id, o.status, o.total_cents, o.currency,
		       o.created_at, COALESCE(o.updated_at,'') AS updated_at
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.seller_id = ?
		ORDER BY o.created_at DESC
		LIMIT ? OFFSET ?
	`, sellerID, limit, offset)
	return out, err
}

// ListAll serves the admin console. An empty status returns everything.
func (r *OrderRepo) ListAll(status string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Order
	if status != "" {
		err := r.db.Select(&out, `
			SELECT `+orderCols+` FROM orders
			WHERE status = ?
			ORDER BY created_at DESC
			LIMIT ? OFFSET ?`, status, limit, offset)
		return out, err
	}
	err := r.db.Select(&out, `
		SELECT `+orderCols+` FROM orders
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	return out, err
}

// UpdateStatus moves an order from -> to. The from guard makes concurrent
// updates lose cleanly instead of overwriting each other.
func (r *OrderRepo) UpdateStatus(id, from, to string) error {
	res, err := r.db.Exec(`
		UPDATE orders SET status=?, updated_at=? WHERE id=? AND status=?
	`, to, now(), id, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// Cancel marks the order cancelled, restores the stock its items held, and
// voids any pending or in-flight payments, atomically. Orders already past
// confirmation are rejected with ErrConflict.
func (r *OrderRepo) Cancel(id string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	res, err := tx.Exec(`
		UPDATE orders SET status=?, updated_at=?
		WHERE id=? AND status IN (?,?)
	`, domain.OrderCancelled, ts, id, domain.OrderPending, domain.OrderConfirmed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}

	var items []domain.OrderItem
	if err := tx.Select(&items, `
		SELECT order_id, product_id, seller_id, title, unit_cents, qty
		FROM order_items WHERE order_id=?
	`, id); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := tx.Exec(`
			UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?
		`, it.Qty, ts, it.ProductID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		UPDATE payments SET status=?, updated_at=?
		WHERE order_id=? AND status IN (?,?)
	`, domain.PaymentCancelled, ts, id, domain.PaymentPending, domain.PaymentProcessing); err != nil {
		return err
	}

	return tx.Commit()
}
