package handlers

import (
	"net/http"
	"strconv"

	"refledger/internal/config"
	"refledger/internal/monitoring"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = config.InitLogger()

// NewRouter mounts the public intake under limiter and the admin routes
// behind the admin token. A nil limiter disables rate limiting.
func NewRouter(h *LedgerHandler, limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handler)
		}
		r.Post("/signature/recovery", h.Register)
		r.Post("/signature/recoveryDrawing", h.Drawing)

		r.Get("/user/userActive", h.UserActive)
		r.Get("/user/readonlyUserList", h.ReadonlyUserList)
		r.Get("/user/link", h.Link)
		r.Get("/user/isLink", h.IsLink)
		r.Get("/user/balance", h.Balance)
		r.Get("/user/withdrawals", h.Withdrawals)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.adminOnly)
		r.Post("/compensate/{id}", h.Compensate)
		r.Post("/commission", h.SetCommission)
	})

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		monitoring.HttpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}
