package domain

// Roles and account statuses. Users are never hard-deleted; removal means
// status = suspended.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"

	StatusActive    = "active"
	StatusSuspended = "suspended"
)

type User struct {
	ID             string `db:"id" json:"id"`
	Email          string `db:"email" json:"email"`
	Name           string `db:"name" json:"name"`
	Phone          string `db:"phone" json:"phone,omitempty"`
	Hash           string `db:"password_hash" json:"-"`
	Role           string `db:"role" json:"role"`
	Status         string `db:"status" json:"status"`
	EmailVerified  bool   `db:"email_verified" json:"email_verified"`
	SellerApproved bool   `db:"seller_approved" json:"seller_approved"`
	VerifyToken    string `db:"verify_token" json:"-"`
	LastLoginAt    string `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt      string `db:"created_at" json:"created_at"`
	UpdatedAt      string `db:"updated_at" json:"updated_at,omitempty"`
}

func (u *User) Suspended() bool { return u.Status == StatusSuspended }

// CanSell reports whether the user may manage product listings.
func (u *User) CanSell() bool {
	return u.Role == RoleSeller && u.SellerApproved
}

func ValidRole(r string) bool {
	return r == RoleBuyer || r == RoleSeller
}
