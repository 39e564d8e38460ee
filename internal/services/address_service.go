package services

import (
	"database/sql"
	"errors"

	"tradepost/internal/domain"
	"tradepost/internal/repos"

	"github.com/google/uuid"
)

type AddressService struct {
	Addrs *repos.AddressRepo
}

func NewAddressService(addrs *repos.AddressRepo) *AddressService {
	return &AddressService{Addrs: addrs}
}

type AddressInput struct {
	Label      string `json:"label"`
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func (s *AddressService) List(userID string) ([]domain.Address, error) {
	return s.Addrs.ListByUser(userID)
}

func (s *AddressService) Get(userID, id string) (domain.Address, error) {
	a, err := s.Addrs.ForUser(id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (s *AddressService) Create(userID string, in AddressInput) (domain.Address, error) {
	a := domain.Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		Label:      in.Label,
		Recipient:  in.Recipient,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		Region:     in.Region,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		IsDefault:  in.IsDefault,
	}
	if err := s.Addrs.Create(&a); err != nil {
		return domain.Address{}, err
	}
	return a, nil
}

func (s *AddressService) Update(userID, id string, in AddressInput) (domain.Address, error) {
	a, err := s.Get(userID, id)
	if err != nil {
		return domain.Address{}, err
	}
	a.Label, a.Recipient = in.Label, in.Recipient
	a.Line1, a.Line2 = in.Line1, in.Line2
	a.City, a.Region = in.City, in.Region
	a.PostalCode, a.Country = in.PostalCode, in.Country
	if err := s.Addrs.Update(&a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, ErrNotFound
		}
		return domain.Address{}, err
	}
	if in.IsDefault && !a.IsDefault {
		if err := s.Addrs.SetDefault(id, userID); err != nil {
			return domain.Address{}, err
		}
		a.IsDefault = true
	}
	return a, nil
}

func (s *AddressService) SetDefault(userID, id string) error {
	err := s.Addrs.SetDefault(id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *AddressService) Delete(userID, id string) error {
	err := s.Addrs.Delete(id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
