package services

import (
	"database/sql"
	"errors"

	"tradepost/internal/domain"
	"tradepost/internal/repos"

	"github.com/google/uuid"
)

var (
	ErrSlugTaken     = errors.New("slug already in use")
	ErrCategoryInUse = errors.New("category still has products")
	ErrBadParent     = errors.New("parent category does not exist")
)

type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods}
}

func (s *CatalogService) ListCategories() ([]domain.Category, error) {
	return s.Cats.List()
}

func (s *CatalogService) GetCategory(id string) (domain.Category, error) {
	c, err := s.Cats.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (s *CatalogService) CreateCategory(slug, name, parentID string) (domain.Category, error) {
	if _, err := s.Cats.BySlug(slug); err == nil {
		return domain.Category{}, ErrSlugTaken
	}
	if parentID != "" {
		if _, err := s.Cats.Get(parentID); err != nil {
			return domain.Category{}, ErrBadParent
		}
	}
	c := domain.Category{ID: uuid.NewString(), Slug: slug, Name: name, ParentID: parentID}
	if err := s.Cats.Create(&c); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(id, slug, name, parentID string) (domain.Category, error) {
	c, err := s.Cats.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if slug != c.Slug {
		if _, err := s.Cats.BySlug(slug); err == nil {
			return domain.Category{}, ErrSlugTaken
		}
	}
	if parentID != "" && parentID != c.ParentID {
		if parentID == id {
			return domain.Category{}, ErrBadParent
		}
		if _, err := s.Cats.Get(parentID); err != nil {
			return domain.Category{}, ErrBadParent
		}
	}
	c.Slug, c.Name, c.ParentID = slug, name, parentID
	if err := s.Cats.Update(&c); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *CatalogService) DeleteCategory(id string) error {
	if _, err := s.Cats.Get(id); errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	used, err := s.Cats.HasProducts(id)
	if err != nil {
		return err
	}
	if used {
		return ErrCategoryInUse
	}
	return s.Cats.Delete(id)
}

// ListProducts serves the public storefront: active listings only, filtered
// and paginated.
func (s *CatalogService) ListProducts(f repos.Filter) ([]domain.Product, error) {
	out, err := s.Prods.List(f)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].DecodeImages()
	}
	return out, nil
}

// GetProduct returns one listing. Inactive products are visible only to
// their seller and to admins; everyone else gets a plain not-found.
func (s *CatalogService) GetProduct(id string, viewer *domain.User) (domain.Product, error) {
	p, err := s.Prods.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if !p.Active {
		if viewer == nil || (viewer.ID != p.SellerID && viewer.Role != domain.RoleAdmin) {
			return domain.Product{}, ErrNotFound
		}
	}
	p.DecodeImages()
	return p, nil
}
