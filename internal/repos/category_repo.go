package repos

import (
	"tradepost/internal/domain"

	"github.com/jmoiron/sqlx"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryCols = `id, slug, name, COALESCE(parent_id,'') AS parent_id,
	created_at, COALESCE(updated_at,'') AS updated_at`

func (r *CategoryRepo) List() ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.Select(&out, `SELECT `+categoryCols+` FROM categories ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) Get(id string) (domain.Category, error) {
	var c domain.Category
	err := r.db.Get(&c, `SELECT `+categoryCols+` FROM categories WHERE id=?`, id)
	return c, err
}

func (r *CategoryRepo) BySlug(slug string) (domain.Category, error) {
	var c domain.Category
	err := r.db.Get(&c, `SELECT `+categoryCols+` FROM categories WHERE slug=?`, slug)
	return c, err
}

func (r *CategoryRepo) Create(c *domain.Category) error {
	c.CreatedAt = now()
	_, err := r.db.Exec(`
		INSERT INTO categories(id,slug,name,parent_id,created_at)
		VALUES(?,?,?,NULLIF(?,''),?)
	`, c.ID, c.Slug, c.Name, c.ParentID, c.CreatedAt)
	return err
}

func (r *CategoryRepo) Update(c *domain.Category) error {
	_, err := r.db.Exec(`
		UPDATE categories SET slug=?, name=?, parent_id=NULLIF(?,''), updated_at=? WHERE id=?
	`, c.Slug, c.Name, c.ParentID, now(), c.ID)
	return err
}

// HasProducts guards deletion: categories with listings cannot be removed.
func (r *CategoryRepo) HasProducts(id string) (bool, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM products WHERE category_id=?`, id)
	return n > 0, err
}

// Delete removes a category. Children are re-parented to the root by the
// schema's ON DELETE SET NULL.
func (r *CategoryRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM categories WHERE id=?`, id)
	return err
}
