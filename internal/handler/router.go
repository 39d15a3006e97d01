package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Leganyst/reservation-core/internal/middleware"
)

type Deps struct {
	Booking BookingAPI
	Catalog CatalogAPI
	Ready   ReadyFunc
	Log     *zap.Logger

	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	RateLimiter    *middleware.RateLimiter
	CORSOrigins    []string
}

// NewRouter собирает gin.Engine: общие middleware, health-эндпоинты и /api/v1.
func NewRouter(d Deps) *gin.Engine {
	RegisterValidators()

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(log),
		middleware.Recovery(log),
		middleware.CORS(d.CORSOrigins),
	)

	r.GET("/healthz", Healthz)
	r.GET("/readyz", Readyz(d.Ready))

	api := r.Group("/api/v1")
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware(log))
	}

	catalog := NewCatalogHandler(d.Catalog)
	reservations := NewReservationHandler(d.Booking)

	services := api.Group("/services")
	{
		services.GET("", catalog.ListServices)
		services.GET("/:id", catalog.GetService)
		services.POST("", catalog.CreateService)
		services.PUT("/:id", catalog.UpdateService)
		services.DELETE("/:id", catalog.DeleteService)
	}

	staff := api.Group("/staff")
	{
		staff.GET("", catalog.ListStaff)
		staff.GET("/:id", catalog.GetStaff)
		staff.POST("", catalog.CreateStaff)
		staff.PUT("/:id", catalog.UpdateStaff)
		staff.DELETE("/:id", catalog.DeleteStaff)
		staff.POST("/:id/services", catalog.AssignServices)
		staff.GET("/:id/availability", reservations.Availability)
	}

	res := api.Group("/reservations")
	{
		res.GET("", reservations.List)
		res.GET("/:id", reservations.Get)
		if d.Idempotency != nil {
			res.POST("", middleware.Idempotency(d.Idempotency, d.IdempotencyTTL, log), reservations.Create)
		} else {
			res.POST("", reservations.Create)
		}
		res.PUT("/:id", reservations.Update)
		res.PATCH("/:id/status", reservations.UpdateStatus)
	}

	r.NoRoute(func(c *gin.Context) {
		Fail(c, errRouteNotFound)
	})
	return r
}
