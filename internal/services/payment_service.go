package services

import (
	"context"
	"database/sql"
	"errors"

	"tradepost/internal/domain"
	"tradepost/internal/gateway"
	applog "tradepost/internal/log"
	"tradepost/internal/mail"
	"tradepost/internal/repos"

	"github.com/google/uuid"
)

var (
	ErrPaymentActive   = errors.New("order already has an active payment")
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
	ErrPaymentSettled  = errors.New("payment already settled")
	ErrGatewayDown     = errors.New("payment provider unavailable")
)

const DefaultProvider = "card"

type PaymentService struct {
	Payments *repos.PaymentRepo
	Orders   *repos.OrderRepo
	Users    *repos.UserRepo
	Gateway  *gateway.Client
	Mail     *mail.Mailer
}

// Initialize opens a checkout session for a pending order. One live payment
// per order: retries are only possible after the previous attempt failed or
// was cancelled.
func (s *PaymentService) Initialize(ctx context.Context, buyer *domain.User, orderID, provider string) (domain.Payment, string, error) {
	o, err := s.Orders.Get(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payment{}, "", ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, "", err
	}
	if o.BuyerID != buyer.ID {
		return domain.Payment{}, "", ErrForbidden
	}
	if o.Status != domain.OrderPending {
		return domain.Payment{}, "", ErrOrderNotPayable
	}
	if _, err := s.Payments.LiveByOrder(orderID); err == nil {
		return domain.Payment{}, "", ErrPaymentActive
	}

	if provider == "" {
		provider = DefaultProvider
	}
	p := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Provider:    provider,
		Status:      domain.PaymentPending,
		AmountCents: o.TotalCents,
		Currency:    o.Currency,
	}
	if err := s.Payments.Create(&p); err != nil {
		// lost a race against a concurrent init; the partial unique index wins
		if _, e := s.Payments.LiveByOrder(orderID); e == nil {
			return domain.Payment{}, "", ErrPaymentActive
		}
		return domain.Payment{}, "", err
	}

	sess, err := s.Gateway.InitializeCheckout(ctx, gateway.CheckoutRequest{
		Reference:   p.ID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Description: "Order " + o.ID,
		Customer:    buyer.Email,
	})
	if err != nil {
		_ = s.Payments.MarkFailed(p.ID)
		applog.Event("gateway_init_failed", err, map[string]any{"payment_id": p.ID, "order_id": o.ID})
		return domain.Payment{}, "", ErrGatewayDown
	}
	if err := s.Payments.BindGatewayRef(p.ID, sess.Reference); err != nil {
		return domain.Payment{}, "", err
	}
	p.GatewayRef = sess.Reference
	p.Status = domain.PaymentProcessing
	return p, sess.CheckoutURL, nil
}

// Cancel voids a payment still in flight. Settled payments are immutable.
func (s *PaymentService) Cancel(ctx context.Context, viewer *domain.User, paymentID string) (domain.Payment, error) {
	p, err := s.Payments.Get(paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	o, err := s.Orders.Get(p.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if o.BuyerID != viewer.ID && viewer.Role != domain.RoleAdmin {
		return domain.Payment{}, ErrForbidden
	}

	if err := s.Payments.MarkCancelled(p.ID); err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return domain.Payment{}, ErrPaymentSettled
		}
		return domain.Payment{}, err
	}
	if p.GatewayRef != "" {
		if err := s.Gateway.CancelCharge(ctx, p.GatewayRef); err != nil {
			applog.Event("gateway_void_failed", err, map[string]any{"payment_id": p.ID, "gateway_ref": p.GatewayRef})
		}
	}
	return s.Payments.Get(p.ID)
}

func (s *PaymentService) Get(viewer *domain.User, paymentID string) (domain.Payment, error) {
	p, err := s.Payments.Get(paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	o, err := s.Orders.Get(p.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if o.BuyerID != viewer.ID && viewer.Role != domain.RoleAdmin {
		return domain.Payment{}, ErrForbidden
	}
	return p, nil
}

func (s *PaymentService) ListForOrder(viewer *domain.User, orderID string) ([]domain.Payment, error) {
	o, err := s.Orders.Get(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.BuyerID != viewer.ID && viewer.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.Payments.ListByOrder(orderID)
}

func (s *PaymentService) ListMine(buyerID string, limit, offset int) ([]domain.Payment, error) {
	return s.Payments.ListByBuyer(buyerID, limit, offset)
}

// HandleEvent applies one verified provider notification. Unknown references
// and replays are acknowledged without writes so providers can redeliver
// freely; a notification that contradicts the recorded amount is also a
// no-op, flagged by the caller for investigation.
func (s *PaymentService) HandleEvent(ev gateway.Event) (bool, error) {
	switch ev.Type {
	case gateway.EventChargeSuccess:
		applied, err := s.Payments.ReconcileSuccess(ev.Data.Reference, ev.Data.AmountCents, ev.Data.Currency)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if applied && err == nil {
			s.notifyPaid(ev.Data.Reference)
		}
		return applied, err
	case gateway.EventChargeFailed:
		applied, err := s.Payments.ReconcileFailed(ev.Data.Reference)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return applied, err
	default:
		return false, nil
	}
}

// notifyPaid mails the buyer after a charge settles. Best-effort only; the
// webhook acknowledgement never waits on it.
func (s *PaymentService) notifyPaid(ref string) {
	if s.Mail == nil || s.Users == nil {
		return
	}
	p, err := s.Payments.ByGatewayRef(ref)
	if err != nil {
		return
	}
	o, err := s.Orders.Get(p.OrderID)
	if err != nil {
		return
	}
	u, err := s.Users.ByID(o.BuyerID)
	if err != nil {
		applog.Event("payment_mail_skipped", err, map[string]any{"order_id": o.ID})
		return
	}
	go s.Mail.SendPaymentConfirmed(u.Email, u.Name, o.ID, p.AmountCents, p.Currency)
}
