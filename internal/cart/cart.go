package cart

import (
	"context"
	"errors"

	"github.com/fjod/go_shop/internal/domain"
)

// Store holds session-scoped cart snapshots. A snapshot is advisory state,
// not an inventory reservation, and carries no durability guarantee beyond
// the session's lifetime.
type Store interface {
	Get(ctx context.Context, userID string) (domain.CartSnapshot, error)
	Set(ctx context.Context, userID string, snapshot domain.CartSnapshot) error
	Delete(ctx context.Context, userID string) error
}

var ErrCartNotFound = errors.New("cart not found")
