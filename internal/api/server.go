package api

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"github.com/fathima-sithara/pixshare-service/internal/middleware"
	"github.com/fathima-sithara/pixshare-service/internal/service"
	"github.com/fathima-sithara/pixshare-service/internal/ws"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
)

type Services struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Unread        *service.UnreadService
	Notifications *service.NotificationService
	Users         *service.UserService
	Social        *service.SocialService
	Media         *service.MediaService
}

type Options struct {
	AppName        string
	MaxUploadBytes int64
	Limiter        middleware.Limiter
	WS             *ws.Server
}

type Server struct {
	svc      Services
	validate *validator.Validate
	opts     Options
	log      *zap.SugaredLogger
}

func NewServer(svc Services, jv middleware.TokenValidator, opts Options, log *zap.SugaredLogger) *fiber.App {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ErrorHandler: ErrorHandler(log),
		BodyLimit:    int(opts.MaxUploadBytes) + 1<<20,
		// params and bodies outlive the request in the memory store
		Immutable: true,
	})
	s := &Server{svc: svc, validate: newValidator(), opts: opts, log: log}

	app.Use(middleware.RequestLogger(log))
	app.Use(middleware.Recovery(log))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if opts.WS != nil {
		app.Get("/ws", opts.WS.Upgrade, opts.WS.Handler())
	}

	guard := []fiber.Handler{middleware.JWTAuth(jv, log)}
	if opts.Limiter != nil {
		guard = append(guard, middleware.RateLimit(opts.Limiter, log))
	}
	r := app.Group("", guard...)

	r.Get("/conversations", s.listConversations)
	r.Post("/conversation/start", s.startConversation)

	// static segments before :conversationId
	r.Get("/messages/unread/count", s.unreadCount)
	r.Post("/messages/send", s.sendMessage)
	r.Get("/messages/:conversationId", s.listMessages)
	r.Put("/messages/:id/read", s.markRead)
	r.Delete("/messages/:id", s.deleteMessage)

	r.Get("/notifications", s.listNotifications)
	r.Get("/notifications/unread/count", s.notificationUnreadCount)
	r.Get("/notifications/preferences", s.getPreferences)
	r.Put("/notifications/preferences", s.updatePreferences)
	r.Put("/notifications/read-all", s.markAllNotificationsRead)
	r.Put("/notifications/:id/read", s.setNotificationRead)
	r.Delete("/notifications/:id", s.deleteNotification)

	r.Get("/users/me", s.getMe)
	r.Put("/users/me", s.updateMe)
	r.Get("/users/:username", s.getUser)
	r.Post("/users/:id/follow", s.toggleFollow)

	r.Post("/posts", s.createPost)
	r.Get("/posts/:id", s.getPost)
	r.Post("/posts/:id/like", s.toggleLike)
	r.Post("/posts/:id/comments", s.addComment)

	r.Post("/media/images", s.uploadImage)
	r.Post("/media/archive", s.uploadArchive)

	return app
}

// ErrorHandler renders every failure as {"status":"error","code","message"}.
// Server errors are logged and never leak their cause.
func ErrorHandler(log *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"status":  "error",
				"code":    strings.ToUpper(strings.ReplaceAll(statusText(fe.Code), " ", "_")),
				"message": fe.Message,
			})
		}

		var ae *apperr.Error
		if !errors.As(err, &ae) {
			ae = apperr.Internal(err)
		}
		if ae.Kind == apperr.KindServer {
			log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		body := fiber.Map{
			"status":  "error",
			"code":    string(ae.Kind),
			"message": ae.Message,
		}
		if ae.Field != "" {
			body["field"] = ae.Field
		}
		return c.Status(apperr.HTTPStatus(ae.Kind)).JSON(body)
	}
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "error"
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"status": "ok", "data": data})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": data})
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into dst and runs its validate tags. The first
// failing field is reported.
func (s *Server) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.InvalidInput("body", "invalid JSON payload")
	}
	if err := s.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return apperr.InvalidInput(fe.Field(), validationMessage(fe))
		}
		return apperr.InvalidInput("body", err.Error())
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

func pageParams(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	return page, limit
}
