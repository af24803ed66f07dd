package routes

import (
	"trattoria/ratelim"

	"github.com/julienschmidt/httprouter"
)

func RoutesWrapper(router *httprouter.Router, rateLimiter *ratelim.RateLimiter, d Deps) {
	AddOpsRoutes(router)
	AddStaticRoutes(router, d)
	AddAuthRoutes(router, rateLimiter, d)
	AddReservationRoutes(router, rateLimiter, d)
	AddEventBookingRoutes(router, rateLimiter, d)
	AddEventsRoutes(router)
	AddTicketRoutes(router, rateLimiter, d)
	AddMenuRoutes(router, d)
	AddCartRoutes(router)
	AddOrderRoutes(router, rateLimiter, d)
	AddPayRoutes(router, rateLimiter, d)
	AddTableRoutes(router)
	AddAddressRoutes(router)
	AddContactRoutes(router, rateLimiter)
	AddTimingRoutes(router)
	AddLiveRoutes(router, d)
}
