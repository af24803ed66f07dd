package routes

import (
	"net/http"

	"trattoria/addresses"
	"trattoria/auth"
	"trattoria/cart"
	"trattoria/contact"
	"trattoria/eventbooking"
	"trattoria/events"
	"trattoria/live"
	"trattoria/menu"
	"trattoria/metrics"
	"trattoria/middleware"
	"trattoria/orders"
	"trattoria/pay"
	"trattoria/ratelim"
	"trattoria/reservation"
	"trattoria/reviews"
	"trattoria/tables"
	"trattoria/tickets"
	"trattoria/timings"

	"github.com/julienschmidt/httprouter"
)

// Deps carries the handlers that hold state. Stateless handlers are
// package functions and need no wiring.
type Deps struct {
	Auth          *auth.Handler
	Reservations  *reservation.Handler
	EventBookings *eventbooking.Handler
	Orders        *orders.Handler
	Pay           *pay.Handler
	Images        *menu.Images
	Hub           *live.Hub
	Idempotency   pay.IdempotencyStore
	TicketSecret  []byte
	UploadDir     string
}

func AddStaticRoutes(router *httprouter.Router, d Deps) {
	router.ServeFiles("/static/uploads/*filepath", http.Dir(d.UploadDir))
}

func AddOpsRoutes(router *httprouter.Router) {
	router.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("200"))
	})
	router.GET("/metrics", metrics.Handler())
}

func AddAuthRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, d Deps) {
	router.POST("/api/auth/register", rl.Limit(d.Auth.Register))
	router.POST("/api/auth/verify-otp", rl.Limit(d.Auth.VerifyOTP))
	router.POST("/api/auth/login", rl.Limit(d.Auth.Login))
	router.POST("/api/auth/logout", middleware.Authenticate(d.Auth.Logout))
	router.POST("/api/auth/forgot-password", rl.Limit(d.Auth.ForgotPassword))
	router.POST("/api/auth/reset-password", rl.Limit(d.Auth.ResetPassword))
	router.GET("/api/auth/me", middleware.Authenticate(d.Auth.Me))
}

func AddReservationRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, d Deps) {
	h := d.Reservations
	router.GET("/api/v1/reservations/available", h.Available)
	router.POST("/api/v1/reservations", middleware.Chain(
		rl.Limit,
		middleware.OptionalAuth,
		pay.Idempotent(d.Idempotency),
	)(h.Create))
	router.GET("/api/v1/reservations/my-reservations", middleware.Authenticate(h.Mine))
	router.PATCH("/api/v1/reservations/cancel/:id", middleware.Authenticate(h.Cancel))
	router.GET("/api/v1/reservations/confirmation/:id", middleware.Authenticate(h.Confirmation))
	router.GET("/api/v1/reservations", middleware.RequireAdmin(h.List))
	router.PATCH("/api/v1/reservations/status/:id", middleware.RequireAdmin(h.UpdateStatus))
}

func AddEventBookingRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, d Deps) {
	h := d.EventBookings
	router.POST("/api/event-booking", middleware.Chain(
		rl.Limit,
		middleware.OptionalAuth,
		pay.Idempotent(d.Idempotency),
	)(h.Create))
	router.GET("/api/event-booking/resources/:eventId", h.Resources)
	router.GET("/api/event-booking/my-bookings", middleware.Authenticate(h.Mine))
	router.PATCH("/api/event-booking/cancel/:id", middleware.Authenticate(h.Cancel))
	router.GET("/api/event-booking/confirmation/:id", middleware.Authenticate(h.Confirmation))
	router.GET("/api/event-booking", middleware.RequireAdmin(h.List))
}

func AddEventsRoutes(router *httprouter.Router) {
	router.GET("/api/events", events.GetEvents)
	router.GET("/api/events/:id", events.GetEvent)
	router.POST("/api/events", middleware.RequireAdmin(events.CreateEvent))
	router.PUT("/api/events/:id", middleware.RequireAdmin(events.EditEvent))
	router.DELETE("/api/events/:id", middleware.RequireAdmin(events.DeleteEvent))

	router.GET("/api/venues", events.GetVenues)
	router.POST("/api/venues", middleware.RequireAdmin(events.CreateVenue))
	router.DELETE("/api/venues/:id", middleware.RequireAdmin(events.DeleteVenue))

	router.GET("/api/event-resources", events.GetResources)
	router.POST("/api/event-resources", middleware.RequireAdmin(events.CreateResource))
	router.DELETE("/api/event-resources/:id", middleware.RequireAdmin(events.DeleteResource))
}

func AddTicketRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, d Deps) {
	router.POST("/api/checkin/verify", rl.Limit(middleware.RequireAdmin(tickets.VerifyHandler(d.TicketSecret))))
}

func AddMenuRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/menu", menu.GetMenu)
	router.GET("/api/menu/:id", menu.GetMenuItem)
	router.POST("/api/menu", middleware.RequireAdmin(menu.CreateMenuItem))
	router.PUT("/api/menu/:id", middleware.RequireAdmin(menu.UpdateMenuItem))
	router.DELETE("/api/menu/:id", middleware.RequireAdmin(menu.DeleteMenuItem))
	router.POST("/api/menu/:id/image", middleware.RequireAdmin(d.Images.Upload))

	router.GET("/api/menu/:id/reviews", reviews.GetReviews)
	router.POST("/api/menu/:id/reviews", middleware.Authenticate(reviews.AddReview))
	router.DELETE("/api/menu/:id/reviews/:reviewId", middleware.Authenticate(reviews.DeleteReview))
}

func AddCartRoutes(router *httprouter.Router) {
	router.POST("/api/cart", middleware.Authenticate(cart.AddToCart))
	router.GET("/api/cart", middleware.Authenticate(cart.GetCart))
	router.PUT("/api/cart/:id", middleware.Authenticate(cart.UpdateQuantity))
	router.DELETE("/api/cart/:id", middleware.Authenticate(cart.RemoveItem))
	router.DELETE("/api/cart", middleware.Authenticate(cart.ClearCart))
}

func AddOrderRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, d Deps) {
	router.POST("/api/orders/checkout", rl.Limit(middleware.Authenticate(d.Orders.Checkout)))
	router.GET("/api/orders", middleware.Authenticate(d.Orders.List))
	router.PATCH("/api/orders/:id/status", middleware.RequireAdmin(d.Orders.UpdateStatus))
}

func AddPayRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, d Deps) {
	router.POST("/api/paypal/create-order", rl.Limit(middleware.Authenticate(d.Pay.CreateOrder)))
	router.POST("/api/paypal/capture/:paypalOrderId", rl.Limit(middleware.Authenticate(d.Pay.Capture)))
}

func AddTableRoutes(router *httprouter.Router) {
	router.GET("/api/tables", middleware.RequireAdmin(tables.GetTables))
	router.POST("/api/tables", middleware.RequireAdmin(tables.CreateTable))
	router.PUT("/api/tables/:id", middleware.RequireAdmin(tables.UpdateTable))
	router.DELETE("/api/tables/:id", middleware.RequireAdmin(tables.DeleteTable))
}

func AddAddressRoutes(router *httprouter.Router) {
	router.GET("/api/addresses", middleware.Authenticate(addresses.GetAddresses))
	router.POST("/api/addresses", middleware.Authenticate(addresses.CreateAddress))
	router.PUT("/api/addresses/:id", middleware.Authenticate(addresses.UpdateAddress))
	router.DELETE("/api/addresses/:id", middleware.Authenticate(addresses.DeleteAddress))
}

func AddContactRoutes(router *httprouter.Router, rl *ratelim.RateLimiter) {
	router.POST("/api/contact", rl.Limit(middleware.OptionalAuth(contact.SubmitContact)))
	router.POST("/api/occasions", rl.Limit(middleware.OptionalAuth(contact.SubmitOccasion)))
	router.POST("/api/table-bookings", rl.Limit(middleware.OptionalAuth(contact.SubmitTableBooking)))
	router.GET("/api/contact", middleware.RequireAdmin(contact.GetContacts))
	router.GET("/api/occasions", middleware.RequireAdmin(contact.GetOccasions))
	router.GET("/api/table-bookings", middleware.RequireAdmin(contact.GetTableBookings))
}

func AddTimingRoutes(router *httprouter.Router) {
	router.GET("/api/timings", timings.GetTimings)
	router.PUT("/api/timings/:day", middleware.RequireAdmin(timings.SetTiming))
}

func AddLiveRoutes(router *httprouter.Router, d Deps) {
	router.GET("/ws/admin", d.Hub.Serve)
}
