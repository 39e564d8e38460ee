package repos

import (
	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, email, name, phone, password_hash, role, status,
	email_verified, seller_approved, verify_token,
	COALESCE(last_login_at,'') AS last_login_at,
	created_at, COALESCE(updated_at,'') AS updated_at`

func (r *UserRepo) Create(u *domain.User) error {
	u.CreatedAt = now()
	_, err := r.DB.Exec(`
		INSERT INTO users(id,email,name,phone,password_hash,role,status,email_verified,seller_approved,verify_token,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
	`, u.ID, u.Email, u.Name, u.Phone, u.Hash, u.Role, u.Status, u.EmailVerified, u.SellerApproved, u.VerifyToken, u.CreatedAt)
	return err
}

func (r *UserRepo) ByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, `SELECT `+userCols+` FROM users WHERE LOWER(email)=LOWER(?)`, email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(id string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByVerifyToken(token string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, `SELECT `+userCols+` FROM users WHERE verify_token=? AND verify_token<>''`, token)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateProfile(id, name, phone string) error {
	_, err := r.DB.Exec(`UPDATE users SET name=?, phone=?, updated_at=? WHERE id=?`, name, phone, now(), id)
	return err
}

// MarkVerified flips the verification flag and burns the token.
func (r *UserRepo) MarkVerified(id string) error {
	_, err := r.DB.Exec(`UPDATE users SET email_verified=1, verify_token='', updated_at=? WHERE id=?`, now(), id)
	return err
}

func (r *UserRepo) SetPassword(id, hash string) error {
	_, err := r.DB.Exec(`UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, hash, now(), id)
	return err
}

func (r *UserRepo) TouchLogin(id string) error {
	_, err := r.DB.Exec(`UPDATE users SET last_login_at=? WHERE id=?`, now(), id)
	return err
}

func (r *UserRepo) SetStatus(id, status string) error {
	_, err := r.DB.Exec(`UPDATE users SET status=?, updated_at=? WHERE id=?`, status, now(), id)
	return err
}

func (r *UserRepo) ApproveSeller(id string) error {
	_, err := r.DB.Exec(`UPDATE users SET seller_approved=1, updated_at=? WHERE id=? AND role='seller'`, now(), id)
	return err
}

// List returns accounts for the admin console, newest first. An empty role
// returns every account.
func (r *UserRepo) List(role string, limit, offset int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.User
	if role != "" {
		err := r.DB.Select(&out, `
			SELECT `+userCols+` FROM users
			WHERE role = ?
			ORDER BY created_at DESC
			LIMIT ? OFFSET ?`, role, limit, offset)
		return out, err
	}
	err := r.DB.Select(&out, `
		SELECT `+userCols+` FROM users
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	return out, err
}
