package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/handlers"
	"github.com/tenantry/tenantry/internal/metrics"
	"github.com/tenantry/tenantry/internal/middleware"
	"github.com/tenantry/tenantry/internal/repository"
	"github.com/tenantry/tenantry/internal/services"
	chatws "github.com/tenantry/tenantry/internal/websocket"
)

type Deps struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Hub      *chatws.Hub
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(app *fiber.App, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	chatService := services.NewChatService(
		deps.DB,
		repository.NewConversationRepository(deps.DB),
		repository.NewMessageRepository(deps.DB),
		repository.NewParticipantRepository(deps.DB),
		services.WithSendLimiter(services.NewSendLimiter(deps.Config.SendRatePerMinute, deps.Config.SendBurst)),
		services.WithMetrics(deps.Metrics),
		services.WithLogger(logger.Named("chat")),
	)
	chatHandler := handlers.NewChatHandler(chatService, deps.Hub, deps.Config.JWTSecret, logger.Named("http"))

	RegisterOperational(app, deps.Gatherer)

	api := app.Group("/api")

	messages := api.Group("/messages", middleware.AuthRequired(deps.Config.JWTSecret))
	messages.Get("/conversations", chatHandler.ListConversations)
	messages.Get("/unread-count", chatHandler.UnreadCount)
	messages.Put("/read/:peerId", chatHandler.MarkRead)
	messages.Get("/:peerId", chatHandler.GetMessages)
	messages.Post("", chatHandler.SendMessage)

	api.Use("/ws", chatHandler.WebSocketAuth)
	api.Get("/ws", websocket.New(chatHandler.HandleWebSocket))
}

// RegisterOperational mounts /health and, when a gatherer is given, /metrics.
func RegisterOperational(app fiber.Router, gatherer prometheus.Gatherer) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
