package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/metrics"
	"github.com/fjod/go_shop/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// withUser attaches an authenticated user id the way AuthMiddleware does.
func withUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

func newTestMetrics() *metrics.ShopMetrics {
	return metrics.NewShopMetrics(prometheus.NewRegistry())
}

func jsonDecode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func seedProducts(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	require.NoError(t, st.UpsertProduct(context.Background(), domain.Product{
		ID: 1, Name: "Laptop", Price: decimal.RequireFromString("10.00"), Quantity: 5,
	}))
	require.NoError(t, st.UpsertProduct(context.Background(), domain.Product{
		ID: 2, Name: "Mouse", Price: decimal.RequireFromString("5.50"), Quantity: 3,
	}))
}
