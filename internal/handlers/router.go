package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lexadvise/consult-bookings/internal/ratelimit"
	"github.com/lexadvise/consult-bookings/pkg/middleware"
)

// NewRouter assembles the API. The write limiter only guards the
// endpoints that create state or call out to payment providers.
func NewRouter(h *Handlers, writeLimiter *ratelimit.Limiter, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ServiceName("consult-bookings"))
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var limit func(http.Handler) http.Handler
	if writeLimiter != nil {
		limit = writeLimiter.Middleware()
	} else {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/consultations", h.ListConsultations)
		r.Get("/availability", h.GetAvailability)

		r.Route("/bookings", func(r chi.Router) {
			r.With(limit).Post("/", h.CreateBooking)
			r.Post("/reserve", h.CheckSlot)
			r.Get("/{id}", h.GetBooking)
			r.Patch("/{id}", h.PatchBooking)
			r.Delete("/{id}", h.CancelBooking)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(limit).Post("/razorpay", h.CreateRazorpayOrder)
			r.Post("/razorpay/verify", h.VerifyRazorpayPayment)
			r.Post("/razorpay/webhook", h.RazorpayWebhook)
			r.With(limit).Post("/paypal", h.CreatePayPalOrder)
			r.Post("/paypal/capture", h.CapturePayPalOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/bookings", h.ListBookings)
			r.Patch("/bookings/{id}", h.UpdateBooking)
		})
	})

	return r
}
