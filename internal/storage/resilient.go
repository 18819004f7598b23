package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type BreakerConfig struct {
	MaxFailures     uint32
	Interval        time.Duration
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	InitialBackoff  time.Duration
}

// ResilientUploader retries failed uploads with exponential backoff and stops
// calling the media host while its circuit breaker is open.
type ResilientUploader struct {
	next Uploader
	cb   *gobreaker.CircuitBreaker
	cfg  BreakerConfig
	log  *zap.SugaredLogger
}

func NewResilientUploader(next Uploader, cfg BreakerConfig, log *zap.SugaredLogger) *ResilientUploader {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	st := gobreaker.Settings{
		Name:        "media-host",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &ResilientUploader{next: next, cb: gobreaker.NewCircuitBreaker(st), cfg: cfg, log: log}
}

func (u *ResilientUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	var url string
	op := func() error {
		res, err := u.cb.Execute(func() (interface{}, error) {
			s, err := u.next.Upload(ctx, key, contentType, data)
			return s, err
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}
		url = res.(string)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.cfg.InitialBackoff
	b.MaxElapsedTime = u.cfg.RetryMaxElapsed
	notify := func(err error, wait time.Duration) {
		u.log.Warnw("media upload retry", "key", key, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return "", err
	}
	return url, nil
}

func (u *ResilientUploader) State() gobreaker.State {
	return u.cb.State()
}
