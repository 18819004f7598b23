package api

import (
	"github.com/fathima-sithara/pixshare-service/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

type setReadReq struct {
	Read *bool `json:"read"`
}

type prefsReq struct {
	Likes    *bool `json:"likes"`
	Comments *bool `json:"comments"`
	Follows  *bool `json:"follows"`
	Posts    *bool `json:"posts"`
}

func (s *Server) listNotifications(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	items, unread, err := s.svc.Notifications.List(c.UserContext(), middleware.UserID(c), page, limit)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"notifications": items, "unreadCount": unread, "page": page})
}

func (s *Server) notificationUnreadCount(c *fiber.Ctx) error {
	n, err := s.svc.Notifications.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"unreadCount": n})
}

// setNotificationRead defaults to read=true for an empty body.
func (s *Server) setNotificationRead(c *fiber.Ctx) error {
	var req setReadReq
	if len(c.Body()) > 0 {
		if err := s.bind(c, &req); err != nil {
			return err
		}
	}
	read := true
	if req.Read != nil {
		read = *req.Read
	}
	n, err := s.svc.Notifications.SetRead(c.UserContext(), c.Params("id"), middleware.UserID(c), read)
	if err != nil {
		return err
	}
	return ok(c, n)
}

func (s *Server) markAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.svc.Notifications.MarkAllRead(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"updated": n})
}

func (s *Server) deleteNotification(c *fiber.Ctx) error {
	if err := s.svc.Notifications.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return err
	}
	return ok(c, fiber.Map{"deleted": true})
}

func (s *Server) getPreferences(c *fiber.Ctx) error {
	prefs, err := s.svc.Notifications.Preferences(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, prefs)
}

// updatePreferences only changes the flags present in the body.
func (s *Server) updatePreferences(c *fiber.Ctx) error {
	var req prefsReq
	if err := s.bind(c, &req); err != nil {
		return err
	}
	uid := middleware.UserID(c)
	cur, err := s.svc.Notifications.Preferences(c.UserContext(), uid)
	if err != nil {
		return err
	}
	merge := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	next := cur
	merge(&next.Likes, req.Likes)
	merge(&next.Comments, req.Comments)
	merge(&next.Follows, req.Follows)
	merge(&next.Posts, req.Posts)

	prefs, err := s.svc.Notifications.UpdatePreferences(c.UserContext(), uid, next)
	if err != nil {
		return err
	}
	return ok(c, prefs)
}
