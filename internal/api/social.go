package api

import (
	"github.com/fathima-sithara/pixshare-service/internal/middleware"
	"github.com/fathima-sithara/pixshare-service/internal/service"
	"github.com/gofiber/fiber/v2"
)

type profileReq struct {
	Username    string `json:"username" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=60"`
	Avatar      string `json:"avatar"`
}

type createPostReq struct {
	Title   string `json:"title" validate:"required,max=120"`
	Caption string `json:"caption"`
	Image   string `json:"image" validate:"required"`
}

type commentReq struct {
	Text string `json:"text" validate:"required"`
}

func (s *Server) getMe(c *fiber.Ctx) error {
	p, err := s.svc.Users.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Server) updateMe(c *fiber.Ctx) error {
	var req profileReq
	if err := s.bind(c, &req); err != nil {
		return err
	}
	u, err := s.svc.Users.UpsertProfile(c.UserContext(), service.ProfileCommand{
		UserID:      middleware.UserID(c),
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
	})
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (s *Server) getUser(c *fiber.Ctx) error {
	p, err := s.svc.Users.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Server) toggleFollow(c *fiber.Ctx) error {
	following, err := s.svc.Social.ToggleFollow(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"following": following})
}

func (s *Server) createPost(c *fiber.Ctx) error {
	var req createPostReq
	if err := s.bind(c, &req); err != nil {
		return err
	}
	p, err := s.svc.Social.CreatePost(c.UserContext(), service.CreatePostCommand{
		AuthorID: middleware.UserID(c),
		Title:    req.Title,
		Caption:  req.Caption,
		Image:    req.Image,
	})
	if err != nil {
		return err
	}
	return created(c, p)
}

func (s *Server) getPost(c *fiber.Ctx) error {
	p, err := s.svc.Social.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Server) toggleLike(c *fiber.Ctx) error {
	liked, err := s.svc.Social.ToggleLike(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"liked": liked})
}

func (s *Server) addComment(c *fiber.Ctx) error {
	var req commentReq
	if err := s.bind(c, &req); err != nil {
		return err
	}
	cm, err := s.svc.Social.AddComment(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Text)
	if err != nil {
		return err
	}
	return created(c, cm)
}
