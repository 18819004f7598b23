package api

import (
	"io"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// readUpload returns the multipart "file" part, bounded by the upload limit.
func (s *Server) readUpload(c *fiber.Ctx) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, apperr.InvalidInput("file", "file is required")
	}
	if fh.Size > s.opts.MaxUploadBytes {
		return "", nil, apperr.InvalidInput("file", "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return "", nil, apperr.InvalidInput("file", "file too large")
	}
	return fh.Filename, data, nil
}

func (s *Server) uploadImage(c *fiber.Ctx) error {
	if s.svc.Media == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "media host not configured")
	}
	name, data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	m, err := s.svc.Media.UploadImage(c.UserContext(), middleware.UserID(c), name, data)
	if err != nil {
		return err
	}
	return created(c, m)
}

func (s *Server) uploadArchive(c *fiber.Ctx) error {
	if s.svc.Media == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "media host not configured")
	}
	_, data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	res, err := s.svc.Media.UploadArchive(c.UserContext(), middleware.UserID(c), data)
	if err != nil {
		return err
	}
	return created(c, res)
}
