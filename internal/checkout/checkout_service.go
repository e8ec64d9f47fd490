package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/payment"
	"github.com/fjod/go_shop/internal/store"
	"github.com/google/uuid"
)

// Config tunes checkout policy.
type Config struct {
	// StrictProducts fails the whole checkout when the cart references an
	// unknown product id. When false, unknown ids are dropped and checkout
	// proceeds with the rest.
	StrictProducts bool

	// PaymentTimeout bounds the payment session request; on timeout the
	// operation fails with ErrPaymentProvider and nothing is persisted.
	PaymentTimeout time.Duration
}

type CheckoutService interface {
	// InitiateCheckout validates the user's cart against current stock,
	// creates a payment session and persists a pending order correlated to
	// it. On any failure no partial state is left behind.
	InitiateCheckout(ctx context.Context, userID string, snapshot domain.CartSnapshot) (*payment.Session, error)

	// CreateOrder persists a pending order directly, without a payment
	// session. Stock validation and pricing follow the same rules as
	// InitiateCheckout but quantities must be explicitly positive.
	CreateOrder(ctx context.Context, userID string, snapshot domain.CartSnapshot) (*domain.Order, error)
}

type CheckoutServiceImpl struct {
	store    store.Store
	provider payment.Provider
	cfg      Config
}

func NewCheckoutService(st store.Store, provider payment.Provider, cfg Config) *CheckoutServiceImpl {
	if cfg.PaymentTimeout == 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}
	return &CheckoutServiceImpl{store: st, provider: provider, cfg: cfg}
}

func (s *CheckoutServiceImpl) InitiateCheckout(
	ctx context.Context,
	userID string,
	snapshot domain.CartSnapshot) (*payment.Session, error) {

	items, err := s.buildOrderItems(ctx, snapshot, false)
	if err != nil {
		return nil, err
	}

	lineItems := make([]payment.LineItem, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, payment.LineItem{
			Name:      item.ProductName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	// The session request happens strictly before any persistence: a failed
	// request means checkout never started, and no lock spans the network
	// round trip.
	paymentCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()
	session, err := s.provider.CreateCheckoutSession(paymentCtx, lineItems)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	order := &domain.Order{
		ID:                uuid.New(),
		UserID:            userID,
		Items:             items,
		TotalPrice:        domain.OrderTotal(items),
		Status:            domain.PaymentStatusPending,
		CheckoutSessionID: session.ID,
		PaymentIntentID:   session.PaymentIntentID,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		// The session is abandoned; the processor expires unclaimed
		// sessions on its own. An order without a session reference must
		// never exist, the reverse is harmless.
		log.Printf("checkout session %s abandoned, order persistence failed: %v", session.ID, err)
		return nil, fmt.Errorf("persist pending order: %w", err)
	}

	return session, nil
}

func (s *CheckoutServiceImpl) CreateOrder(
	ctx context.Context,
	userID string,
	snapshot domain.CartSnapshot) (*domain.Order, error) {

	items, err := s.buildOrderItems(ctx, snapshot, true)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Items:      items,
		TotalPrice: domain.OrderTotal(items),
		Status:     domain.PaymentStatusPending,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	return order, nil
}
