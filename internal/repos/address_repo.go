package repos

import (
	"database/sql"

	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type AddressRepo struct{ db *sqlx.DB }

func NewAddressRepo(db *sqlx.DB) *AddressRepo { return &AddressRepo{db: db} }

const addressCols = `id, user_id, label, recipient, line1, line2, city, region,
	postal_code, country, is_default, created_at, COALESCE(updated_at,'') AS updated_at`

func (r *AddressRepo) ListByUser(userID string) ([]domain.Address, error) {
	var out []domain.Address
	err := r.db.Select(&out, `
		SELECT `+addressCols+` FROM addresses
		WHERE user_id = ?
		ORDER BY is_default DESC, created_at DESC
	`, userID)
	return out, err
}

// ForUser fetches one address scoped to its owner. Someone else's address id
// behaves exactly like a missing one.
func (r *AddressRepo) ForUser(id, userID string) (domain.Address, error) {
	var a domain.Address
	err := r.db.Get(&a, `SELECT `+addressCols+` FROM addresses WHERE id=? AND user_id=?`, id, userID)
	return a, err
}

// Create inserts an address. The owner's first address becomes the default;
// an explicit default demotes the previous one in the same transaction.
func (r *AddressRepo) Create(a *domain.Address) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.Get(&n, `SELECT COUNT(*) FROM addresses WHERE user_id=?`, a.UserID); err != nil {
		return err
	}
	if n == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		if _, err := tx.Exec(`UPDATE addresses SET is_default=0 WHERE user_id=?`, a.UserID); err != nil {
			return err
		}
	}

	a.CreatedAt = now()
	if _, err := tx.Exec(`
		INSERT INTO addresses(id,user_id,label,recipient,line1,line2,city,region,postal_code,country,is_default,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
	`, a.ID, a.UserID, a.Label, a.Recipient, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, a.IsDefault, a.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *AddressRepo) Update(a *domain.Address) error {
	res, err := r.db.Exec(`
		UPDATE addresses
		SET label=?, recipient=?, line1=?, line2=?, city=?, region=?, postal_code=?, country=?, updated_at=?
		WHERE id=? AND user_id=?
	`, a.Label, a.Recipient, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, now(), a.ID, a.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetDefault promotes one address and demotes the rest atomically.
func (r *AddressRepo) SetDefault(id, userID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE addresses SET is_default=1, updated_at=? WHERE id=? AND user_id=?`, now(), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.Exec(`UPDATE addresses SET is_default=0 WHERE user_id=? AND id<>?`, userID, id); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes an owner's address. If it was the default, the most recent
// remaining address takes over.
func (r *AddressRepo) Delete(id, userID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var wasDefault bool
	if err := tx.Get(&wasDefault, `SELECT is_default FROM addresses WHERE id=? AND user_id=?`, id, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM addresses WHERE id=? AND user_id=?`, id, userID); err != nil {
		return err
	}
	if wasDefault {
		if _, err := tx.Exec(`
			UPDATE addresses SET is_default=1
			WHERE id = (SELECT id FROM addresses WHERE user_id=? ORDER BY created_at DESC LIMIT 1)
		`, userID); err != nil {
			return err
		}
	}

	return tx.Commit()
}
