package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/ebarangay/registry-system/docs"
	"github.com/ebarangay/registry-system/internal/api/handler"
	"github.com/ebarangay/registry-system/internal/api/middleware"
	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/service"
	mongostore "github.com/ebarangay/registry-system/internal/infrastructure/db/mongo"
	redisstore "github.com/ebarangay/registry-system/internal/infrastructure/db/redis"
)

// Services bundles the application services the router exposes. Built once in
// NewServices so main can share them with the background jobs.
type Services struct {
	Auth          *service.AuthService
	Credentials   *service.CredentialService
	Notifications *service.NotificationService
}

// NewServices wires the storage adapters into the application services.
func NewServices(db *mongo.Database, rdb *redis.Client, jwtSecret string, log zerolog.Logger) *Services {
	store := mongostore.NewDocumentStore(db)
	writer := service.NewSafeWriter(store, log)
	residents := mongostore.NewResidentRepository(db)
	states := redisstore.NewStateStore(rdb)

	return &Services{
		Auth:          service.NewAuthService(mongostore.NewAuthRepository(db), jwtSecret, 24*time.Hour),
		Credentials:   service.NewCredentialService(store, writer, residents, log),
		Notifications: service.NewNotificationService(states, log),
	}
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, svcs *Services, jwtSecret string, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("registry"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(svcs.Auth)
	credentialHandler := handler.NewCredentialHandler(svcs.Credentials)
	notificationHandler := handler.NewNotificationHandler(svcs.Credentials, svcs.Notifications)
	authMiddleware := middleware.Auth(jwtSecret)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Credential routes ---
	v1 := e.Group("/v1", authMiddleware)

	residentOrAdmin := middleware.RBAC(domain.RoleResident, domain.RoleAdmin)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	v1.POST("/credentials", credentialHandler.Generate, residentOrAdmin)
	v1.GET("/credentials/me", credentialHandler.GetMine, residentOrAdmin)
	v1.POST("/credentials/:id/request-verification", credentialHandler.RequestVerification, residentOrAdmin)
	v1.POST("/credentials/:id/approve", credentialHandler.Approve, adminOnly)
	v1.POST("/credentials/:id/reject", credentialHandler.Reject, adminOnly)
	v1.GET("/credentials", credentialHandler.List, adminOnly)

	// --- Notification routes ---
	v1.GET("/notifications", notificationHandler.List, residentOrAdmin)
	v1.POST("/notifications/:id/read", notificationHandler.MarkRead, residentOrAdmin)
	v1.POST("/notifications/read-all", notificationHandler.MarkAllRead, residentOrAdmin)
	v1.DELETE("/notifications/:id", notificationHandler.Clear, residentOrAdmin)
	v1.DELETE("/notifications", notificationHandler.ClearAll, residentOrAdmin)

	// --- Health probes and operational endpoints (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness:  is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e
}
