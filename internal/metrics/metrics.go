package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns every collector the service exports. Collectors live on
// the registry passed to New, never on the global default registry.
type Recorder struct {
	registry             *prometheus.Registry
	paymentTransitions   *prometheus.CounterVec
	commissionsCredited  prometheus.Counter
	commissionMinorUnits prometheus.Counter
	commissionFailures   prometheus.Counter
	payoutReservations   *prometheus.CounterVec
	payoutReleases       *prometheus.CounterVec
	notificationsDropped prometheus.Counter
	httpDuration         *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Recorder {
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		paymentTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "merchantpay_payment_transitions_total",
			Help: "Payment request status transitions",
		}, []string{"from", "to"}),
		commissionsCredited: factory.NewCounter(prometheus.CounterOpts{
			Name: "merchantpay_commissions_credited_total",
			Help: "Leader commissions credited",
		}),
		commissionMinorUnits: factory.NewCounter(prometheus.CounterOpts{
			Name: "merchantpay_commission_minor_units_total",
			Help: "Sum of credited leader commissions in minor units",
		}),
		commissionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "merchantpay_commission_failures_total",
			Help: "Leader commission credits that failed and were skipped",
		}),
		payoutReservations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "merchantpay_payout_reservations_total",
			Help: "Withdrawals and settlements that reserved available balance",
		}, []string{"kind", "rail"}),
		payoutReleases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "merchantpay_payout_releases_total",
			Help: "Reservations credited back to available balance",
		}, []string{"kind", "status"}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "merchantpay_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "merchantpay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
	}
}

func (r *Recorder) PaymentTransition(from, to string) {
	r.paymentTransitions.WithLabelValues(from, to).Inc()
}

func (r *Recorder) CommissionCredited(amount int64) {
	r.commissionsCredited.Inc()
	r.commissionMinorUnits.Add(float64(amount))
}

func (r *Recorder) CommissionFailed() {
	r.commissionFailures.Inc()
}

func (r *Recorder) PayoutReserved(kind, rail string) {
	r.payoutReservations.WithLabelValues(kind, rail).Inc()
}

func (r *Recorder) PayoutReleased(kind, status string) {
	r.payoutReleases.WithLabelValues(kind, status).Inc()
}

func (r *Recorder) NotificationDropped() {
	r.notificationsDropped.Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware observes request duration labelled by the matched chi route
// pattern, so path parameters do not explode label cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
