package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type bridged struct {
	UserID string          `json:"user_id"`
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBridge fans pushes out over one pub/sub channel. Every instance
// subscribes and delivers to its own clients; its own publications are skipped.
type RedisBridge struct {
	cli     *redis.Client
	channel string
	origin  string
	hub     *Hub
	log     *zap.SugaredLogger
}

func NewRedisBridge(cli *redis.Client, channel, origin string, hub *Hub, log *zap.SugaredLogger) *RedisBridge {
	return &RedisBridge{cli: cli, channel: channel, origin: origin, hub: hub, log: log}
}

func (b *RedisBridge) Publish(ctx context.Context, userID string, frame []byte) error {
	payload, err := json.Marshal(bridged{UserID: userID, Origin: b.origin, Frame: frame})
	if err != nil {
		return err
	}
	return b.cli.Publish(ctx, b.channel, payload).Err()
}

// Run consumes the channel until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.cli.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.log.Infow("relay bridge subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(m.Payload)
		}
	}
}

func (b *RedisBridge) handle(payload string) bool {
	var in bridged
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		b.log.Warnw("bad bridge payload", "error", err)
		return false
	}
	if in.Origin == b.origin {
		return false
	}
	return b.hub.deliverLocal(in.UserID, in.Frame)
}
