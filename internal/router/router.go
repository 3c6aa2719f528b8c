package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/marvinagmata/tourism-room-booking/internal/handler"    // handlers implement the business logic
	"github.com/marvinagmata/tourism-room-booking/internal/middleware" // middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems hit this endpoint to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated endpoints: the availability
// search that guests browse before logging in, and the gateway webhook
// which authenticates with a signature instead of a session.  The
// optional extra middleware (typically the Redis response cache) is
// applied to the availability route only; webhook deliveries must
// never be served from cache.
func RegisterPublic(e *echo.Echo, a *handler.AvailabilityHandler, w *handler.WebhookHandler, cache ...echo.MiddlewareFunc) {
	e.GET("/v1/businesses/:id/rooms/availability", a.ListAvailable, cache...)
	e.POST("/v1/payments/webhook", w.Receive)
}

// RegisterBooking registers the authenticated booking and payment
// endpoints under /v1.  All routes require a valid JWT with either the
// TOURIST or BUSINESS role; per-booking ownership is enforced inside
// the handlers.  The optional extra middleware (typically the Redis
// token bucket rate limiter) guards the mutating endpoints.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, jwtSecret string, limit ...echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("TOURIST", "BUSINESS"),
	)
	g.GET("/bookings/:id", b.Get)
	g.GET("/my-bookings", b.ListMine)
	g.POST("/bookings", b.Create, limit...)
	g.PATCH("/bookings/:id/status", b.UpdateStatus, limit...)
	g.POST("/bookings/:id/cancel", b.Cancel, limit...)
	g.POST("/bookings/:id/payments", p.Initiate, limit...)
	g.POST("/bookings/:id/payments/:paymentID/verify", p.Verify, limit...)
}

// RegisterInternal registers operator endpoints under /v1/internal.
// These are not exposed through the public ingress; access control is
// the deployment's responsibility (network policy or a separate port).
func RegisterInternal(e *echo.Echo, b *handler.BookingHandler) {
	e.POST("/v1/internal/bookings/expire-pending", b.ExpirePending)
}
