package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spiritonline/DatingApp-sub002/internal/auth"
	"github.com/spiritonline/DatingApp-sub002/internal/cache"
	"github.com/spiritonline/DatingApp-sub002/internal/chat"
)

type Server struct {
	svc      *chat.Service
	channel  *chat.Channel
	presence *cache.Client // optional
	log      *zap.SugaredLogger
}

// NewServer wires the chat core behind the HTTP/WS surface the UI
// consumes.
func NewServer(svc *chat.Service, ch *chat.Channel, jv *auth.Validator, presence *cache.Client, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	s := &Server{svc: svc, channel: ch, presence: presence, log: log}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/v1")
	v1.Use(auth.Middleware(jv))

	v1.Post("/chats/:chat_id/messages", s.sendMessage)
	v1.Get("/chats/:chat_id/messages", s.listMessages)
	v1.Get("/chats/:chat_id", s.chatSummary)
	v1.Post("/chats/:chat_id/messages/:message_id/reactions", s.toggleReaction)
	v1.Post("/chats/:chat_id/delivered", s.markDelivered)
	v1.Post("/chats/:chat_id/read", s.markRead)

	v1.Use("/chats/:chat_id/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/chats/:chat_id/stream", websocket.New(s.handleStream))

	return app
}
