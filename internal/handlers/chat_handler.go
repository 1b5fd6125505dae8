package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/models"
	"github.com/tenantry/tenantry/internal/services"
	chatws "github.com/tenantry/tenantry/internal/websocket"
	"github.com/tenantry/tenantry/pkg/utils"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID string, role string) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, actorID string, role string, peerID string, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, actorID string, role string, input models.SendMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, actorID string, role string, peerID string) (int64, error)
	UnreadCount(ctx context.Context, actorID string, role string) (int, error)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	jwtSecret string
	logger    *zap.Logger
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func actor(c *fiber.Ctx) (string, string, bool) {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	userID = strings.TrimSpace(userID)
	return userID, role, userID != "" && role != ""
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, role, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), userID, role)
	if err != nil {
		return h.mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	userID, role, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	count, err := h.service.UnreadCount(c.Context(), userID, role)
	if err != nil {
		return h.mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"count": count})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, role, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	peerID := strings.TrimSpace(c.Params("peerId"))
	if peerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid peer id"})
	}

	limit := parsePositiveInt(c.Query("limit"), services.DefaultHistoryLimit)
	if limit > services.MaxHistoryLimit {
		limit = services.MaxHistoryLimit
	}

	messages, err := h.service.ListMessages(c.Context(), userID, role, peerID, limit)
	if err != nil {
		return h.mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, role, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req models.SendMessageInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), userID, role, req)
	if err != nil {
		return h.mapChatError(c, err)
	}

	if h.hub != nil {
		h.hub.Publish(message)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, role, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	updated, err := h.service.MarkRead(c.Context(), userID, role, c.Params("peerId"))
	if err != nil {
		return h.mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"updated": updated})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := chatws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		tokenString = bearerToken(c.Get("Authorization"))
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func bearerToken(header string) string {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (h *ChatHandler) mapChatError(c *fiber.Ctx, err error) error {
	var rateErr *services.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		seconds := rateErr.RetryAfterSeconds()
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "Too many messages",
			"code":       "RATE_LIMITED",
			"retryAfter": seconds,
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrParticipantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Participant not found"})
	default:
		h.logger.Error("chat request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
