package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/finledger/finledger-backend/internal/infra/config"
	appRedis "github.com/finledger/finledger-backend/internal/infra/redis"
	"github.com/finledger/finledger-backend/internal/transport/http/handlers"
	"github.com/finledger/finledger-backend/internal/transport/http/middleware"
	"github.com/finledger/finledger-backend/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	PasswordReset *usecase.PasswordResetService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    *pgxpool.Pool
	Cache       *appRedis.Client
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	} else {
		r.Use(metrics.Handler())
	}

	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Cache)
	healthHandler.RegisterRoutes(r)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerLimit, loginLimit, resetLimit := buildRateLimits(deps)

	api := r.Group("/api/v1")
	authGroup := api.Group("/auth")

	var authRequired gin.HandlerFunc
	if deps.Services.Auth != nil {
		authRequired = middleware.RequireAuth(deps.Services.Auth)
	}

	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Registration, deps.Config.Cookies)
	authHandler.RegisterRoutes(authGroup, registerLimit, loginLimit, authRequired)

	passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset)
	passwordHandler.RegisterRoutes(authGroup, resetLimit)

	return r
}

func buildRateLimits(deps Dependencies) (registerLimit, loginLimit, resetLimit gin.HandlerFunc) {
	if deps.RateLimiter == nil {
		return nil, nil, nil
	}

	window := deps.Config.RateLimit.WindowDuration

	registerLimit = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       "register",
		Limit:      deps.Config.RateLimit.RegisterMaxAttempts,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
	loginLimit = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       "login",
		Limit:      deps.Config.RateLimit.LoginMaxAttempts,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
	resetLimit = deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       "password-reset",
		Limit:      deps.Config.RateLimit.PasswordResetMaxAttempts,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})

	return registerLimit, loginLimit, resetLimit
}
