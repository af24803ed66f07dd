package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trattoria_reservations_total",
		Help: "Reservation create attempts by result.",
	}, []string{"result"})

	EventBookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trattoria_event_bookings_total",
		Help: "Event booking attempts by result.",
	}, []string{"result"})

	Orders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trattoria_orders_total",
		Help: "Orders by lifecycle step.",
	}, []string{"step"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trattoria_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "code"})
)

// Observe records one served request.
func Observe(method string, code int, d time.Duration) {
	requestDuration.WithLabelValues(method, strconv.Itoa(code)).Observe(d.Seconds())
}

func Handler() httprouter.Handle {
	h := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
