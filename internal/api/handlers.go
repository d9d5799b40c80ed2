package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spiritonline/DatingApp-sub002/internal/auth"
	"github.com/spiritonline/DatingApp-sub002/internal/domain"
)

func (s *Server) sendMessage(c *fiber.Ctx) error {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no identity"})
	}
	var p domain.Payload
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ok = s.svc.SendMessage(c.Context(), c.Params("chat_id"), userID, p)
	status := fiber.StatusCreated
	if !ok {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{"success": ok})
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 50))
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid before"})
		}
		before = t
	}
	msgs, err := s.svc.ListMessages(c.Context(), c.Params("chat_id"), limit, before)
	if err != nil {
		s.log.Errorw("list messages failed", "chat_id", c.Params("chat_id"), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"data": msgs})
}

func (s *Server) chatSummary(c *fiber.Ctx) error {
	chat, err := s.svc.ChatSummary(c.Context(), c.Params("chat_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		s.log.Errorw("chat summary failed", "chat_id", c.Params("chat_id"), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"data": chat})
}

func (s *Server) toggleReaction(c *fiber.Ctx) error {
	userID, _ := auth.CurrentUserID(c)
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	ok := s.svc.ToggleReaction(c.Context(), c.Params("chat_id"), c.Params("message_id"), body.Emoji, userID)
	return c.JSON(fiber.Map{"success": ok})
}

func (s *Server) markDelivered(c *fiber.Ctx) error {
	userID, _ := auth.CurrentUserID(c)
	ok := s.svc.MarkMessagesAsDelivered(c.Context(), c.Params("chat_id"), userID)
	return c.JSON(fiber.Map{"success": ok})
}

func (s *Server) markRead(c *fiber.Ctx) error {
	userID, _ := auth.CurrentUserID(c)
	ok := s.svc.MarkMessagesAsRead(c.Context(), c.Params("chat_id"), userID)
	return c.JSON(fiber.Map{"success": ok})
}
