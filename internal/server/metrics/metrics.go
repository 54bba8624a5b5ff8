// metrics - пакет с метриками Prometheus для процедур аутентификации.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Значения метки operation.
const (
	OperationRegister = "register"
	OperationLogin    = "login"
	OperationCheck    = "check"
	OperationLogout   = "logout"
)

// Значения метки result.
const (
	ResultSuccess      = "success"
	ResultInvalid      = "invalid"
	ResultConflict     = "conflict"
	ResultUnauthorized = "unauthorized"
	ResultAnonymous    = "anonymous"
	ResultError        = "error"
)

// Registry - реестр метрик сервера.
var Registry = prometheus.NewRegistry()

// authAttempts - счетчик результатов процедур аутентификации.
var authAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blog_auth_attempts_total",
		Help: "Total number of authentication requests by operation and result",
	},
	[]string{"operation", "result"},
)

func init() {
	Registry.MustRegister(
		authAttempts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordAuth - увеличивает счетчик результата процедуры аутентификации.
func RecordAuth(operation, result string) {
	authAttempts.WithLabelValues(operation, result).Inc()
}

// Handler - хэндлер для выдачи метрик в формате Prometheus.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
