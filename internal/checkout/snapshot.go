package checkout

import (
	"context"
	"fmt"
	"sort"

	"github.com/fjod/go_shop/internal/domain"
)

// buildOrderItems resolves the cart against current inventory and freezes
// line items at today's price and name. The returned items are what the
// order stores; later product changes never touch them. With strict set,
// unknown ids and non-positive quantities fail the operation instead of
// being dropped (the direct order path takes explicit client input, the
// session cart only ever holds positive quantities).
func (s *CheckoutServiceImpl) buildOrderItems(
	ctx context.Context,
	snapshot domain.CartSnapshot,
	strict bool) ([]domain.OrderItem, error) {

	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}

	products, err := s.store.GetProducts(ctx, snapshot.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}
	productMap := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	// deterministic item order regardless of map iteration
	ids := snapshot.ProductIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]domain.OrderItem, 0, len(ids))
	for _, id := range ids {
		quantity := snapshot[id]
		if quantity <= 0 {
			if strict {
				return nil, fmt.Errorf("product %d: %w", id, ErrInvalidQuantity)
			}
			continue
		}

		product, exists := productMap[id]
		if !exists {
			if strict || s.cfg.StrictProducts {
				return nil, &ProductNotFoundError{ProductID: id}
			}
			continue // dropped, the rest of the cart still checks out
		}

		if product.Quantity < quantity {
			return nil, &InsufficientStockError{
				ProductName: product.Name,
				Available:   product.Quantity,
			}
		}

		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    quantity,
		})
	}

	if len(items) == 0 {
		return nil, ErrNoValidItems
	}
	return items, nil
}
