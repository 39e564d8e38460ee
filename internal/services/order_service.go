package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradepost/internal/domain"
	"tradepost/internal/gateway"
	applog "tradepost/internal/log"
	"tradepost/internal/mail"
	"tradepost/internal/repos"

	"github.com/google/uuid"
)

var (
	ErrEmptyOrder     = errors.New("order has no items")
	ErrBadAddress     = errors.New("address does not belong to you")
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	ErrBadTransition  = errors.New("illegal status change")
)

// Line is one requested order position before snapshotting.
type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderService struct {
	Orders   *repos.OrderRepo
	Prods    *repos.ProductRepo
	Addrs    *repos.AddressRepo
	Payments *repos.PaymentRepo
	Gateway  *gateway.Client
	Mail     *mail.Mailer
}

// Place creates a pending order from the requested lines. Prices and titles
// are snapshotted from the current listings; stock is reserved atomically,
// so a sold-out item aborts the whole order.
func (s *OrderService) Place(buyer *domain.User, addressID string, lines []Line) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}
	if _, err := s.Addrs.ForUser(addressID, buyer.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, ErrBadAddress
		}
		return domain.Order{}, err
	}

	// merge duplicate product lines
	merged := map[string]int{}
	order := []string{}
	for _, l := range lines {
		if _, seen := merged[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		merged[l.ProductID] += l.Qty
	}

	o := domain.Order{
		ID:        uuid.NewString(),
		BuyerID:   buyer.ID,
		AddressID: addressID,
		Status:    domain.OrderPending,
	}
	for _, pid := range order {
		p, err := s.Prods.Get(pid)
		if err != nil || !p.Active {
			return domain.Order{}, fmt.Errorf("%w: product %s", ErrNotFound, pid)
		}
		if o.Currency == "" {
			o.Currency = p.Currency
		}
		if p.Currency != o.Currency {
			return domain.Order{}, fmt.Errorf("mixed currencies in one order (%s vs %s)", o.Currency, p.Currency)
		}
		qty := merged[pid]
		o.Items = append(o.Items, domain.OrderItem{
			OrderID:   o.ID,
			ProductID: p.ID,
			SellerID:  p.SellerID,
			Title:     p.Title,
			UnitCents: p.PriceCents,
			Qty:       qty,
		})
		o.TotalCents += p.PriceCents * int64(qty)
	}

	if err := s.Orders.Create(&o); err != nil {
		return domain.Order{}, err
	}
	go s.Mail.SendOrderConfirmation(buyer.Email, buyer.Name, o.ID, o.TotalCents, o.Currency)
	return o, nil
}

// Get loads an order for its buyer, a seller with items in it, or an admin.
func (s *OrderService) Get(viewer *domain.User, id string) (domain.Order, error) {
	o, err := s.Orders.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if !s.mayView(viewer, o) {
		return domain.Order{}, ErrForbidden
	}
	return o, nil
}

func (s *OrderService) mayView(viewer *domain.User, o domain.Order) bool {
	if viewer.ID == o.BuyerID || viewer.Role == domain.RoleAdmin {
		return true
	}
	for _, it := range o.Items {
		if it.SellerID == viewer.ID {
			return true
		}
	}
	return false
}

func (s *OrderService) ListMine(buyerID string, limit, offset int) ([]domain.Order, error) {
	return s.Orders.ListByBuyer(buyerID, limit, offset)
}

func (s *OrderService) ListSold(sellerID string, limit, offset int) ([]domain.Order, error) {
	return s.Orders.ListBySeller(sellerID, limit, offset)
}

func (s *OrderService) ListAll(status string, limit, offset int) ([]domain.Order, error) {
	return s.Orders.ListAll(status, limit, offset)
}

// Cancel stops an order that has not entered fulfilment. Stock returns to
// the listings and any live payment is voided; if the provider already holds
// a charge we ask it to void too, best-effort.
func (s *OrderService) Cancel(ctx context.Context, viewer *domain.User, id string) (domain.Order, error) {
	o, err := s.Orders.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if o.BuyerID != viewer.ID && viewer.Role != domain.RoleAdmin {
		return domain.Order{}, ErrForbidden
	}

	var ref string
	if p, err := s.Payments.LiveByOrder(id); err == nil {
		ref = p.GatewayRef
	}

	if err := s.Orders.Cancel(id); err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return domain.Order{}, ErrNotCancellable
		}
		return domain.Order{}, err
	}
	if ref != "" {
		if err := s.Gateway.CancelCharge(ctx, ref); err != nil {
			applog.Event("gateway_void_failed", err, map[string]any{"order_id": id, "gateway_ref": ref})
		}
	}
	return s.Orders.Get(id)
}

// UpdateStatus is the fulfilment path used by admins. Cancellation goes
// through Cancel so stock and payments are handled.
func (s *OrderService) UpdateStatus(id, to string) (domain.Order, error) {
	o, err := s.Orders.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if to == domain.OrderCancelled || !domain.ValidOrderTransition(o.Status, to) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, o.Status, to)
	}
	if err := s.Orders.UpdateStatus(id, o.Status, to); err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, o.Status, to)
		}
		return domain.Order{}, err
	}
	return s.Orders.Get(id)
}
