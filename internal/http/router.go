// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"drivebook/internal/http/handlers"
	httpmiddleware "drivebook/internal/http/middleware"
	"drivebook/internal/infra"
	"drivebook/internal/types"
)

type RouterDeps struct {
	Booking        handlers.BookingService
	Fare           handlers.FareService
	Catalog        handlers.CatalogService
	Dispatch       handlers.DispatchService
	Matching       handlers.MatchingService
	Verifier       infra.TokenVerifier
	AllowedOrigins []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.Logging(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(deps.AllowedOrigins),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	catalogHandler := handlers.NewCatalogHandler(deps.Catalog)
	api.GET("/packages", catalogHandler.Packages)
	api.GET("/monthly-pricing", catalogHandler.MonthlyPricing)
	api.GET("/plans", catalogHandler.Plans)

	authed := api.Group("")
	authed.Use(httpmiddleware.Auth(deps.Verifier))

	bookingHandler := handlers.NewBookingHandler(deps.Booking, deps.Fare)
	bookings := authed.Group("/bookings")
	bookings.GET("/estimate", bookingHandler.Estimate)
	bookings.POST("", httpmiddleware.RequireRole(httpmiddleware.RoleCustomer), bookingHandler.Create)
	bookings.GET("", httpmiddleware.RequireRole(httpmiddleware.RoleCustomer), bookingHandler.List)
	bookings.GET("/:id", httpmiddleware.RequireRole(httpmiddleware.RoleCustomer, httpmiddleware.RoleAdmin), bookingHandler.Get)
	bookings.POST("/:id/cancel", httpmiddleware.RequireRole(httpmiddleware.RoleCustomer, httpmiddleware.RoleAdmin), bookingHandler.Cancel)

	adminHandler := handlers.NewAdminHandler(deps.Booking, deps.Dispatch, deps.Matching)
	admin := authed.Group("/admin")
	admin.Use(httpmiddleware.RequireRole(httpmiddleware.RoleAdmin))
	admin.GET("/bookings", adminHandler.ListBookings)
	admin.POST("/candidates", adminHandler.RegisterCandidate)
	admin.GET("/candidates/:id", adminHandler.Candidate)
	admin.POST("/subscriptions", catalogHandler.Subscribe)
	admin.POST("/subscriptions/:id/cancel", catalogHandler.CancelSubscription)
	admin.POST("/subscriptions/:id/reject", catalogHandler.RejectSubscription)
	admin.PUT("/:bookingId/review", adminHandler.Review)
	admin.GET("/:bookingId/history", adminHandler.History)
	admin.POST("/:bookingId/send-to-drivers", adminHandler.SendToDrivers)
	admin.POST("/:bookingId/send-to-leads", adminHandler.SendToLeads)
	admin.GET("/:bookingId/responses", adminHandler.Responses)
	admin.GET("/:bookingId/lead-responses", adminHandler.LeadResponses)
	admin.GET("/:bookingId/dispatch", adminHandler.Dispatch)
	admin.POST("/:bookingId/allocate-driver", adminHandler.AllocateDriver)
	admin.POST("/:bookingId/allocate-lead", adminHandler.AllocateLead)

	registerCandidateRoutes(authed.Group("/driver"), httpmiddleware.RoleDriver,
		handlers.NewCandidateHandler(types.PoolDriver, deps.Dispatch, deps.Booking))
	registerCandidateRoutes(authed.Group("/lead"), httpmiddleware.RoleLead,
		handlers.NewCandidateHandler(types.PoolLead, deps.Dispatch, deps.Booking))

	return r
}

func registerCandidateRoutes(g *gin.RouterGroup, role string, h *handlers.CandidateHandler) {
	g.Use(httpmiddleware.RequireRole(role))
	g.GET("/offers", h.Offers)
	g.PUT("/respond/:responseId", h.Respond)
	g.POST("/bookings/:id/start", h.Start)
	g.POST("/bookings/:id/complete", h.Complete)
}
