package api

import (
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/middleware"
	"github.com/fathima-sithara/pixshare-service/internal/service"
	"github.com/gofiber/fiber/v2"
)

type startConversationReq struct {
	Username string `json:"username" validate:"required"`
}

type sendMessageReq struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Content     string `json:"content"`
	MessageType string `json:"messageType" validate:"omitempty,oneof=text image"`
	Image       string `json:"image"`
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	list, err := s.svc.Conversations.List(c.UserContext(), middleware.UserID(c), page, limit)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"conversations": list, "page": page})
}

func (s *Server) startConversation(c *fiber.Ctx) error {
	var req startConversationReq
	if err := s.bind(c, &req); err != nil {
		return err
	}
	conv, err := s.svc.Conversations.Start(c.UserContext(), middleware.UserID(c), req.Username)
	if err != nil {
		return err
	}
	return ok(c, conv)
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := s.bind(c, &req); err != nil {
		return err
	}
	msg, err := s.svc.Messages.SendTo(c.UserContext(), service.DirectMessageCommand{
		SenderID:    middleware.UserID(c),
		RecipientID: req.RecipientID,
		Content:     req.Content,
		Type:        domain.MessageType(req.MessageType),
		Image:       req.Image,
	})
	if err != nil {
		return err
	}
	return created(c, msg)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	msgs, err := s.svc.Messages.List(c.UserContext(), c.Params("conversationId"), middleware.UserID(c), page, limit)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"messages": msgs, "page": page})
}

func (s *Server) markRead(c *fiber.Ctx) error {
	msg, err := s.svc.Messages.MarkRead(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, msg)
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	msg, err := s.svc.Messages.SoftDelete(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, msg)
}

func (s *Server) unreadCount(c *fiber.Ctx) error {
	n, err := s.svc.Unread.Total(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"unreadCount": n})
}
