package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/somnialabs/dreamchat/internal/api/handler"
	"github.com/somnialabs/dreamchat/internal/api/middleware"
	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
	"github.com/somnialabs/dreamchat/internal/core/relay"
	"github.com/somnialabs/dreamchat/internal/core/service"
	"github.com/somnialabs/dreamchat/internal/infrastructure/config"
	mongodb "github.com/somnialabs/dreamchat/internal/infrastructure/db/mongo"
	redisdb "github.com/somnialabs/dreamchat/internal/infrastructure/db/redis"
)

// publicRateLimit bounds the anonymous demo endpoint per client address.
const (
	publicRateLimit  = 5
	publicRateWindow = time.Hour
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(
	db *mongo.Database,
	rdb *redis.Client,
	engine ports.ConversationEngine,
	cfg *config.Config,
	log zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("dreamchat"))

	// --- Dependencies ---
	users := mongodb.NewUserRepository(db)
	dreams := mongodb.NewDreamRepository(db)
	messages := mongodb.NewMessageRepository(db)
	contexts := mongodb.NewUserContextRepository(db)

	tiers := service.NewTierResolver(users, log)
	owners := service.NewOwnershipValidator(dreams, log)
	ledger := service.NewQuotaLedger(messages, tiers, cfg.Limits)
	reserver := redisdb.NewQuotaReserver(rdb)
	assembler := service.NewContextBuilder(dreams, messages, contexts, cfg.Limits, log)

	authService := service.NewAuthService(users, cfg.JWTSecret, 24*time.Hour)
	dreamService := service.NewDreamService(dreams, messages, engine, cfg.Limits, log)
	chatService := service.NewChatService(
		dreams, messages, engine, reserver, assembler,
		relay.New(messages, log), log,
	)

	authHandler := handler.NewAuthHandler(authService)
	dreamHandler := handler.NewDreamHandler(dreamService, cfg.Limits)
	chatHandler := handler.NewChatHandler(chatService, cfg.Limits)
	contextHandler := handler.NewContextHandler(contexts, cfg.Limits)
	publicHandler := handler.NewPublicHandler(chatService, cfg.Limits)

	authMiddleware := middleware.Auth(cfg.JWTSecret)
	limiter := redisdb.NewRateLimiter(rdb, publicRateLimit, publicRateWindow)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Public demo ---
	e.POST("/public/interpret", publicHandler.Interpret, middleware.RateLimit(limiter, log))

	// --- Authenticated API ---
	v1 := e.Group("/v1", authMiddleware)

	v1.POST("/chat", chatHandler.Send, middleware.MessageGuard(
		func() any { return new(handler.ChatRequest) },
		func(body any) string {
			req, ok := body.(*handler.ChatRequest)
			if !ok {
				return ""
			}
			return req.DreamID
		},
		owners, ledger, tiers,
	))

	v1.POST("/dreams", dreamHandler.Create, middleware.TierGuard(domain.TierFree, tiers))
	v1.GET("/dreams", dreamHandler.List, middleware.TierGuard(domain.TierFree, tiers))
	v1.GET("/dreams/:dreamId/messages", dreamHandler.Messages, middleware.TierGuard(domain.TierFree, tiers))

	v1.GET("/profile/context", contextHandler.Get, middleware.TierGuard(domain.TierPaid, tiers))
	v1.PUT("/profile/context", contextHandler.Update, middleware.TierGuard(domain.TierPaid, tiers))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
