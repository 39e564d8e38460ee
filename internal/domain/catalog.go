package domain

import "encoding/json"

type Category struct {
	ID        string `db:"id" json:"id"`
	Slug      string `db:"slug" json:"slug"`
	Name      string `db:"name" json:"name"`
	ParentID  string `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at,omitempty"`
}

type Product struct {
	ID          string `db:"id" json:"id"`
	SellerID    string `db:"seller_id" json:"seller_id"`
	CategoryID  string `db:"category_id" json:"category_id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description,omitempty"`
	PriceCents  int64  `db:"price_cents" json:"price_cents"`
	Currency    string `db:"currency" json:"currency"`
	Stock       int    `db:"stock" json:"stock"`
	ImagesJSON  string `db:"images_json" json:"-"`
	Active      bool   `db:"active" json:"active"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	UpdatedAt   string `db:"updated_at" json:"updated_at,omitempty"`

	Images []string `db:"-" json:"images"`
}

// DecodeImages fills Images from the stored JSON column. A corrupt or empty
// column yields an empty slice, never an error surfaced to callers.
func (p *Product) DecodeImages() {
	p.Images = []string{}
	if p.ImagesJSON == "" {
		return
	}
	_ = json.Unmarshal([]byte(p.ImagesJSON), &p.Images)
}

func EncodeImages(paths []string) string {
	if len(paths) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(paths)
	return string(b)
}
