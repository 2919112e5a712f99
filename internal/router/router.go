package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/config"
	"github.com/iliyamo/estate-listings/internal/handler"
	"github.com/iliyamo/estate-listings/internal/logger"
	"github.com/iliyamo/estate-listings/internal/metrics"
	"github.com/iliyamo/estate-listings/internal/middleware"
	"github.com/iliyamo/estate-listings/internal/model"
)

// Deps carries everything the HTTP layer needs.  Redis may be nil, which
// disables rate limiting and response caching.
type Deps struct {
	Config        config.Config
	RateLimit     config.RateLimitConfig
	AuthRateLimit config.RateLimitConfig
	Cache         config.CacheConfig
	Log           *zap.Logger
	Metrics       *metrics.HTTPMetrics
	Redis         *redis.Client
	DB            handler.Pinger
	Guard         *middleware.SessionGuard
	Auth          *handler.AuthHandler
	Listings      *handler.ListingHandler
	Contacts      *handler.ContactHandler
}

// New builds the echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(logger.RequestID(d.Log))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(logger.Middleware(d.Log))
	e.Use(echomw.Recover())
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: https:",
		ReferrerPolicy:        "no-referrer",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.Config.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RateLimit(d.RateLimit, d.Redis, d.Log))

	RegisterRoutes(e, d)
	RegisterAuth(e, d.Auth, d.Guard, middleware.RateLimit(d.AuthRateLimit, d.Redis, d.Log))
	RegisterListings(e, d.Listings, middleware.ResponseCache(d.Cache, d.Redis, d.Log))
	RegisterContacts(e, d.Contacts, d.Guard)
	return e
}

// RegisterRoutes registers the operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
}

// RegisterAuth registers the auth endpoints.  Register and login sit
// behind the stricter limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard *middleware.SessionGuard, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, guard.Require())
}

// RegisterListings registers the public browse endpoints.  Only the
// aggregated listing reads are cached.
func RegisterListings(e *echo.Echo, h *handler.ListingHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/listings", cache)
	g.GET("/popular", h.Popular)
	g.GET("/search", h.Search)

	e.GET("/properties", h.Properties)
	e.GET("/properties/:id", h.Detail(model.TypeProperty))
	e.GET("/property/:id", h.Detail(model.TypeProperty))
	e.GET("/project/:id", h.Detail(model.TypeProject))
	e.GET("/land/:id", h.Detail(model.TypeLand))
}

// RegisterContacts registers the contact form and the signed-in agent
// contact endpoint.
func RegisterContacts(e *echo.Echo, h *handler.ContactHandler, guard *middleware.SessionGuard) {
	e.POST("/contacts", h.Create)
	e.POST("/agent-contact", h.AgentContact, guard.Require())
}
