package repos

import (
	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, seller_id, category_id, title, description, price_cents,
	currency, stock, images_json, active, created_at, COALESCE(updated_at,'') AS updated_at`

// Filter narrows the public listing. Zero values mean "no constraint";
// MaxCents <= 0 leaves the upper bound open.
type Filter struct {
	Q          string
	CategoryID string
	SellerID   string
	MinCents   int64
	MaxCents   int64
	Sort       string // price_asc | price_desc | newest
	Limit      int
	Offset     int
}

func (r *ProductRepo) List(f Filter) ([]domain.Product, error) {
	where := `active = 1`
	args := []any{}
	if f.Q != "" {
		where += ` AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)`
		q := "%" + f.Q + "%"
		args = append(args, q, q)
	}
	if f.CategoryID != "" {
		where += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.SellerID != "" {
		where += ` AND seller_id = ?`
		args = append(args, f.SellerID)
	}
	if f.MinCents > 0 {
		where += ` AND price_cents >= ?`
		args = append(args, f.MinCents)
	}
	if f.MaxCents > 0 {
		where += ` AND price_cents <= ?`
		args = append(args, f.MaxCents)
	}

	order := `created_at DESC`
	switch f.Sort {
	case "price_asc":
		order = `price_cents ASC, created_at DESC`
	case "price_desc":
		order = `price_cents DESC, created_at DESC`
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	sql := `SELECT ` + productCols + ` FROM products WHERE ` + where +
		` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	var out []domain.Product
	err := r.db.Select(&out, sql, args...)
	return out, err
}

// ListBySeller includes inactive listings so sellers see their full catalog.
func (r *ProductRepo) ListBySeller(sellerID string, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Product
	err := r.db.Select(&out, `
		SELECT `+productCols+` FROM products
		WHERE seller_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, sellerID, limit, offset)
	return out, err
}

func (r *ProductRepo) Get(id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.Get(&p, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	return p, err
}

func (r *ProductRepo) Create(p *domain.Product) error {
	p.CreatedAt = now()
	if p.ImagesJSON == "" {
		p.ImagesJSON = "[]"
	}
	_, err := r.db.Exec(`
		INSERT INTO products(id,seller_id,category_id,title,description,price_cents,currency,stock,images_json,active,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
	`, p.ID, p.SellerID, p.CategoryID, p.Title, p.Description, p.PriceCents, p.Currency, p.Stock, p.ImagesJSON, p.Active, p.CreatedAt)
	return err
}

// Update rewrites the mutable listing fields. Ownership is checked by the
// caller; the seller_id guard here only protects against races.
func (r *ProductRepo) Update(p *domain.Product) error {
	res, err := r.db.Exec(`
		UPDATE products
		SET category_id=?, title=?, description=?, price_cents=?, active=?, updated_at=?
		WHERE id=? AND seller_id=?
	`, p.CategoryID, p.Title, p.Description, p.PriceCents, p.Active, now(), p.ID, p.SellerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// SetStock replaces the absolute stock level.
func (r *ProductRepo) SetStock(id string, stock int) error {
	_, err := r.db.Exec(`UPDATE products SET stock=?, updated_at=? WHERE id=?`, stock, now(), id)
	return err
}

func (r *ProductRepo) SetImages(id, imagesJSON string) error {
	_, err := r.db.Exec(`UPDATE products SET images_json=?, updated_at=? WHERE id=?`, imagesJSON, now(), id)
	return err
}

func (r *ProductRepo) SetActive(id string, active bool) error {
	_, err := r.db.Exec(`UPDATE products SET active=?, updated_at=? WHERE id=?`, active, now(), id)
	return err
}
