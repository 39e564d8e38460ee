package repos

import (
	"errors"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

// ErrAmountMismatch means a provider notification carried a different amount
// or currency than the payment it references.
var ErrAmountMismatch = errors.New("event amount does not match payment")

type PaymentRepo struct{ db *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = `id, order_id, provider, gateway_ref, status, amount_cents,
	currency, created_at, COALESCE(updated_at,'') AS updated_at`

func (r *PaymentRepo) Create(p *domain.Payment) error {
	p.CreatedAt = now()
	_, err := r.db.Exec(`
		INSERT INTO payments(id,order_id,provider,gateway_ref,status,amount_cents,currency,created_at)
		VALUES(?,?,?,?,?,?,?,?)
	`, p.ID, p.OrderID, p.Provider, p.GatewayRef, p.Status, p.AmountCents, p.Currency, p.CreatedAt)
	return err
}

func (r *PaymentRepo) Get(id string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.Get(&p, `SELECT `+paymentCols+` FROM payments WHERE id=?`, id)
	return p, err
}

func (r *PaymentRepo) ByGatewayRef(ref string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.Get(&p, `SELECT `+paymentCols+` FROM payments WHERE gateway_ref=? AND gateway_ref<>''`, ref)
	return p, err
}

// LiveByOrder returns the payment blocking a new attempt on this order, if
// any. Failed and cancelled payments do not count.
func (r *PaymentRepo) LiveByOrder(orderID string) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.Get(&p, `
		SELECT `+paymentCols+` FROM payments
		WHERE order_id=? AND status IN (?,?,?)
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID, domain.PaymentPending, domain.PaymentProcessing, domain.PaymentSuccess)
	return p, err
}

func (r *PaymentRepo) ListByOrder(orderID string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.Select(&out, `
		SELECT `+paymentCols+` FROM payments
		WHERE order_id=?
		ORDER BY created_at DESC
	`, orderID)
	return out, err
}

func (r *PaymentRepo) ListByBuyer(buyerID string, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Payment
	err := r.db.Select(&out, `
		SELECT p.id, p.order_id, p.provider, p.gateway_ref, p.status, p.amount_cents,
		       p.currency, p.created_at, COALESCE(p.updated_at,'') AS updated_at
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE o.buyer_id = ?
		ORDER BY p.created_at DESC
		LIMIT ? OFFSET ?
	`, buyerID, limit, offset)
	return out, err
}

// BindGatewayRef records the provider's charge reference and moves the
// payment into processing once the checkout session exists.
func (r *PaymentRepo) BindGatewayRef(id, ref string) error {
	res, err := r.db.Exec(`
		UPDATE payments SET gateway_ref=?, status=?, updated_at=?
		WHERE id=? AND status=?
	`, ref, domain.PaymentProcessing, now(), id, domain.PaymentPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// MarkFailed ends a non-terminal payment without touching its order.
func (r *PaymentRepo) MarkFailed(id string) error {
	_, err := r.db.Exec(`
		UPDATE payments SET status=?, updated_at=?
		WHERE id=? AND status IN (?,?)
	`, domain.PaymentFailed, now(), id, domain.PaymentPending, domain.PaymentProcessing)
	return err
}

// MarkCancelled voids a payment the user backed out of. Terminal payments
// are rejected with ErrConflict.
func (r *PaymentRepo) MarkCancelled(id string) error {
	res, err := r.db.Exec(`
		UPDATE payments SET status=?, updated_at=?
		WHERE id=? AND status IN (?,?)
	`, domain.PaymentCancelled, now(), id, domain.PaymentPending, domain.PaymentProcessing)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ReconcileSuccess applies a provider success notification: the payment
// becomes success and its order moves pending -> confirmed, in one
// transaction. Replays return changed=false and write nothing. A notification
// whose amount or currency disagrees with the payment is refused before any
// write.
func (r *PaymentRepo) ReconcileSuccess(ref string, amountCents int64, currency string) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var p domain.Payment
	if err := tx.Get(&p, `SELECT `+paymentCols+` FROM payments WHERE gateway_ref=? AND gateway_ref<>''`, ref); err != nil {
		return false, err
	}
	if p.AmountCents != amountCents || p.Currency != currency {
		return false, ErrAmountMismatch
	}
	if domain.PaymentTerminal(p.Status) {
		// success replay, or the buyer already cancelled locally
		return false, nil
	}

	ts := now()
	if _, err := tx.Exec(`UPDATE payments SET status=?, updated_at=? WHERE id=?`,
		domain.PaymentSuccess, ts, p.ID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(`UPDATE orders SET status=?, updated_at=? WHERE id=? AND status=?`,
		domain.OrderConfirmed, ts, p.OrderID, domain.OrderPending); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ReconcileFailed applies a provider failure notification. The order stays
// pending so the buyer can retry with a fresh payment.
func (r *PaymentRepo) ReconcileFailed(ref string) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var p domain.Payment
	if err := tx.Get(&p, `SELECT `+paymentCols+` FROM payments WHERE gateway_ref=? AND gateway_ref<>''`, ref); err != nil {
		return false, err
	}
	if domain.PaymentTerminal(p.Status) {
		return false, nil
	}

	if _, err := tx.Exec(`UPDATE payments SET status=?, updated_at=? WHERE id=?`,
		domain.PaymentFailed, now(), p.ID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
