package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/bizdesk/crm-api/docs"
	"github.com/bizdesk/crm-api/internal/api/handler"
	"github.com/bizdesk/crm-api/internal/api/middleware"
	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
	"github.com/bizdesk/crm-api/pkg/logger"
)

// Dependencies carries everything the HTTP layer needs. Registerer and
// Gatherer are optional; when nil the HTTP metrics and /metrics are skipped.
type Dependencies struct {
	Log         zerolog.Logger
	Auth        ports.AuthService
	Credentials ports.CredentialStore
	Tokens      ports.TokenIssuer

	Clients   ports.RecordService[domain.Client]
	Employees ports.RecordService[domain.Employee]
	Projects  ports.RecordService[domain.Project]
	Revenue   ports.RecordService[domain.Revenue]
	Dashboard ports.DashboardService

	Ready map[string]handler.PingFunc

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(scopedLogger(deps.Log))
	e.Use(requestLogger(deps.Log))
	if deps.Registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "crm",
			Registerer: deps.Registerer,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
	}
	if deps.Gatherer != nil {
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Gatherer}))
	}

	// --- Health checks (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Ready)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authn := middleware.Auth(deps.Tokens, deps.Credentials)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Credentials)
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", authHandler.Me, authn)
	auth.PUT("/me", authHandler.UpdateMe, authn)

	// --- CRM routes ---
	v1 := e.Group("/v1", authn)
	write := middleware.Authorize(domain.RoleAdmin, domain.RoleManager)
	remove := middleware.Authorize(domain.RoleAdmin)

	handler.NewRecordHandler("client", deps.Clients).Register(v1.Group("/clients"), write, remove)
	handler.NewRecordHandler("employee", deps.Employees).Register(v1.Group("/employees"), write, remove)
	handler.NewRecordHandler("project", deps.Projects).Register(v1.Group("/projects"), write, remove)
	handler.NewRecordHandler("revenue", deps.Revenue).Register(v1.Group("/revenue"), write, remove)
	v1.GET("/dashboard/stats", handler.NewDashboardHandler(deps.Dashboard).Stats)

	return e
}

// scopedLogger stores a logger tagged with the request id in the request
// context so services log with it.
func scopedLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			l := log.With().Str("request_id", id).Logger()
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), l)))
			return next(c)
		}
	}
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
