package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/domain"
)

var _ cart.Metrics = (*Registry)(nil)

type Registry struct {
	reg           *prometheus.Registry
	Operations    *prometheus.CounterVec
	Migrations    prometheus.Counter
	MigratedLines prometheus.Counter
	Recoveries    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Operaciones del carrito por resultado.",
	}, []string{"op", "result"})
	migrations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_migrations_total",
		Help: "Carritos de invitado migrados a un usuario.",
	})
	migrated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_migrated_lines_total",
		Help: "Líneas movidas o fusionadas en migraciones.",
	})
	recoveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_line_recoveries_total",
		Help: "Intentos de recuperar una línea por variante.",
	}, []string{"outcome"})

	r.MustRegister(ops, migrations, migrated, recoveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:           r,
		Operations:    ops,
		Migrations:    migrations,
		MigratedLines: migrated,
		Recoveries:    recoveries,
	}
}

func (r *Registry) ObserveOperation(op string, err error) {
	r.Operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (r *Registry) ObserveMigration(lines int) {
	r.Migrations.Inc()
	r.MigratedLines.Add(float64(lines))
}

func (r *Registry) ObserveRecovery(recovered bool) {
	outcome := "unresolved"
	if recovered {
		outcome = "recovered"
	}
	r.Recoveries.WithLabelValues(outcome).Inc()
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrOwnerKeyMissing):
		return "owner_missing"
	case errors.Is(err, domain.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "error"
}
