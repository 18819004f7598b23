package service

import (
	"context"
	"errors"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"go.uber.org/zap"
)

const (
	EventNewMessage      = "newMessage"
	EventNewNotification = "newNotification"
)

// Relay pushes a live event to a connected user. It reports whether the event
// was handed to a delivery target; it never blocks on delivery.
type Relay interface {
	PushTo(ctx context.Context, userID, event string, payload interface{}) bool
}

type noRelay struct{}

func (noRelay) PushTo(context.Context, string, string, interface{}) bool { return false }

// Paging converts page/limit query values into skip/limit.
type Paging struct {
	Default int
	Max     int
}

func (p Paging) Window(page, limit int) (skip, size int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = p.Default
	}
	if limit > p.Max {
		limit = p.Max
	}
	return int64((page - 1) * limit), int64(limit)
}

var DefaultPaging = Paging{Default: 50, Max: 100}

// storeErr translates a repository error for the caller.
func storeErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(what)
	}
	return apperr.Internal(err)
}

func publish(ctx context.Context, pub events.Publisher, log *zap.SugaredLogger, event, key string, payload interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event, key, payload); err != nil {
		log.Warnw("event publish failed", "event", event, "key", key, "error", err)
	}
}
