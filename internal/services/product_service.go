package services

import (
	"database/sql"
	"errors"
	"mime/multipart"

	"tradepost/internal/domain"
	"tradepost/internal/repos"
	"tradepost/internal/uploads"

	"github.com/google/uuid"
)

var (
	ErrSellerOnly  = errors.New("approved seller account required")
	ErrBadCategory = errors.New("category does not exist")
	ErrTooManyImgs = errors.New("a listing holds at most 6 images")
)

const maxImagesPerProduct = 6

// ProductService covers the seller side of the catalog: creating and
// maintaining listings. Public reads live on CatalogService.
type ProductService struct {
	Prods *repos.ProductRepo
	Cats  *repos.CategoryRepo
	Media *uploads.Saver

	Currency string
}

type ListingInput struct {
	CategoryID  string `json:"category_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
	Active      *bool  `json:"active"`
}

func (s *ProductService) CreateListing(seller *domain.User, in ListingInput) (domain.Product, error) {
	if !seller.CanSell() {
		return domain.Product{}, ErrSellerOnly
	}
	if _, err := s.Cats.Get(in.CategoryID); err != nil {
		return domain.Product{}, ErrBadCategory
	}
	p := domain.Product{
		ID:          uuid.NewString(),
		SellerID:    seller.ID,
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Currency:    s.Currency,
		Stock:       in.Stock,
		Active:      true,
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if err := s.Prods.Create(&p); err != nil {
		return domain.Product{}, err
	}
	p.DecodeImages()
	return p, nil
}

// owned loads a product and checks the caller may manage it. Admins may
// manage any listing.
func (s *ProductService) owned(user *domain.User, productID string) (domain.Product, error) {
	p, err := s.Prods.Get(productID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if p.SellerID != user.ID && user.Role != domain.RoleAdmin {
		return domain.Product{}, ErrForbidden
	}
	return p, nil
}

func (s *ProductService) UpdateListing(user *domain.User, productID string, in ListingInput) (domain.Product, error) {
	p, err := s.owned(user, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if in.CategoryID != "" && in.CategoryID != p.CategoryID {
		if _, err := s.Cats.Get(in.CategoryID); err != nil {
			return domain.Product{}, ErrBadCategory
		}
		p.CategoryID = in.CategoryID
	}
	if in.Title != "" {
		p.Title = in.Title
	}
	if in.Description != "" {
		p.Description = in.Description
	}
	if in.PriceCents > 0 {
		p.PriceCents = in.PriceCents
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if err := s.Prods.Update(&p); err != nil {
		return domain.Product{}, err
	}
	p.DecodeImages()
	return p, nil
}

func (s *ProductService) SetStock(user *domain.User, productID string, stock int) (domain.Product, error) {
	p, err := s.owned(user, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.Prods.SetStock(p.ID, stock); err != nil {
		return domain.Product{}, err
	}
	p.Stock = stock
	p.DecodeImages()
	return p, nil
}

// Deactivate takes a listing off the storefront. Rows are kept so order
// history stays intact.
func (s *ProductService) Deactivate(user *domain.User, productID string) error {
	p, err := s.owned(user, productID)
	if err != nil {
		return err
	}
	return s.Prods.SetActive(p.ID, false)
}

func (s *ProductService) ListMine(sellerID string, limit, offset int) ([]domain.Product, error) {
	out, err := s.Prods.ListBySeller(sellerID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].DecodeImages()
	}
	return out, nil
}

// AttachImages validates and stores uploaded files, then appends them to the
// listing. The whole batch is rejected if it would push the listing past the
// image cap; individual bad files fail with the saver's error.
func (s *ProductService) AttachImages(user *domain.User, productID string, files []*multipart.FileHeader) (domain.Product, error) {
	p, err := s.owned(user, productID)
	if err != nil {
		return domain.Product{}, err
	}
	p.DecodeImages()
	if len(p.Images)+len(files) > maxImagesPerProduct {
		return domain.Product{}, ErrTooManyImgs
	}

	for _, fh := range files {
		path, err := s.Media.SaveProductImage(p.ID, fh)
		if err != nil {
			return domain.Product{}, err
		}
		p.Images = append(p.Images, path)
	}

	p.ImagesJSON = domain.EncodeImages(p.Images)
	if err := s.Prods.SetImages(p.ID, p.ImagesJSON); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
