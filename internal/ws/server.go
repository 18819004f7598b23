package ws

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

type TokenValidator interface {
	Validate(token string) (string, error)
}

type Server struct {
	hub  *Hub
	jv   TokenValidator
	opts Options
	log  *zap.SugaredLogger
}

func NewServer(hub *Hub, jv TokenValidator, opts Options, log *zap.SugaredLogger) *Server {
	return &Server{hub: hub, jv: jv, opts: opts, log: log}
}

// Upgrade authenticates the handshake before the protocol switch, taking the
// token from ?token= or a bearer header.
func (s *Server) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	}
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing token")
	}
	uid, err := s.jv.Validate(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	c.Locals("user_id", uid)
	return c.Next()
}

func (s *Server) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals("user_id").(string)
		if uid == "" {
			_ = conn.Close()
			return
		}
		s.log.Infow("ws connected", "user_id", uid)
		newClient(s.hub, conn, uid, s.opts, s.log).serve()
		s.log.Infow("ws disconnected", "user_id", uid)
	})
}
