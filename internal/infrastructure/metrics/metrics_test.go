package metrics_test

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/infrastructure/metrics"
)

func TestObserveOperation_ClasificaErrores(t *testing.T) {
	m := metrics.NewRegistry()

	m.ObserveOperation(cart.OpAdd, nil)
	m.ObserveOperation(cart.OpAdd, domain.ErrInvalidQuantity)
	m.ObserveOperation(cart.OpUpdate, fmt.Errorf("update item: %w", domain.ErrStoreUnavailable))
	m.ObserveOperation(cart.OpUpdate, domain.ErrItemNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(cart.OpAdd, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(cart.OpAdd, "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(cart.OpUpdate, "store_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(cart.OpUpdate, "not_found")))
}

func TestObserveMigrationYRecovery(t *testing.T) {
	m := metrics.NewRegistry()
	m.ObserveMigration(3)
	m.ObserveMigration(2)
	m.ObserveRecovery(true)
	m.ObserveRecovery(false)
	m.ObserveRecovery(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Migrations))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.MigratedLines))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recoveries.WithLabelValues("recovered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Recoveries.WithLabelValues("unresolved")))
}

func TestHandler_Expone(t *testing.T) {
	m := metrics.NewRegistry()
	m.ObserveOperation(cart.OpList, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cart_operations_total{op="list",result="ok"} 1`)
}
