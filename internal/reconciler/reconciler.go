package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/store"
)

// Reconciler applies payment-confirmation events to orders. It is safe
// under arbitrary redelivery, duplication and reordering: the paid state of
// the order is the idempotence gate, and the store serializes the actual
// transition.
type Reconciler interface {
	ProcessEvent(ctx context.Context, event domain.PaymentEvent) (bool, error)
}

type ReconcilerImpl struct {
	store store.Store
}

func NewReconciler(st store.Store) *ReconcilerImpl {
	return &ReconcilerImpl{store: st}
}

// ProcessEvent marks the correlated order paid and decrements stock exactly
// once. It reports whether this call applied the transition; benign no-ops
// (ignorable event type, missing or unknown session, duplicate delivery)
// return (false, nil) so the caller acknowledges and the processor stops
// retrying. ErrInsufficientStock is returned for the caller to surface: the
// order stays pending and retrying cannot help, an operator has to resolve
// it.
func (r *ReconcilerImpl) ProcessEvent(ctx context.Context, event domain.PaymentEvent) (bool, error) {
	if event.Type != domain.EventTypeCheckoutCompleted {
		log.Printf("ignoring payment event %s of type %s", event.ID, event.Type)
		return false, nil
	}

	// Orders created without a checkout session store an empty session id;
	// an event with no session reference must never match one of those.
	if event.CheckoutSessionID == "" {
		log.Printf("payment event %s carries no session id, ignoring", event.ID)
		return false, nil
	}

	order, err := r.store.GetOrderBySessionID(ctx, event.CheckoutSessionID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			// Possibly another instance's order, or delivery raced local
			// persistence. Acknowledge so the processor does not retry
			// forever.
			log.Printf("payment event %s references unknown session %s, ignoring", event.ID, event.CheckoutSessionID)
			return false, nil
		}
		return false, fmt.Errorf("lookup order for session %s: %w", event.CheckoutSessionID, err)
	}

	// Idempotence gate: a duplicate of an applied event is a no-op. The
	// same check runs again inside MarkOrderPaid under the row lock, so a
	// concurrent duplicate that slips past this read still cannot apply
	// twice.
	if order.Status == domain.PaymentStatusPaid {
		log.Printf("order %s already paid, event %s is a duplicate", order.ID, event.ID)
		return false, nil
	}

	err = r.store.MarkOrderPaid(ctx, order.ID, event.PaymentIntentID)
	switch {
	case err == nil:
		log.Printf("order %s marked paid by event %s", order.ID, event.ID)
		return true, nil
	case errors.Is(err, store.ErrOrderAlreadyPaid):
		// lost the race against a concurrent duplicate, same end state
		log.Printf("order %s concurrently marked paid, event %s is a no-op", order.ID, event.ID)
		return false, nil
	case errors.Is(err, store.ErrInsufficientStock):
		// Checkout never reserved stock, so this can genuinely happen.
		// Fatal for the order: automatic retry cannot manufacture stock.
		log.Printf("ALERT: order %s cannot be settled, oversold: %v", order.ID, err)
		return false, fmt.Errorf("settle order %s: %w", order.ID, err)
	default:
		return false, fmt.Errorf("settle order %s: %w", order.ID, err)
	}
}
