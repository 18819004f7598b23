package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadLimit     int64
	SendBuffer    int
	RatePerSecond int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteDeadline <= 0 {
		o.WriteDeadline = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 10
	}
	return o
}

// Client is one socket. subject is the authenticated user; joined becomes
// true once the client announced itself and was registered.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	subject string
	joined  atomic.Bool
	limiter *rate.Limiter
	opts    Options
	log     *zap.SugaredLogger
}

func newClient(hub *Hub, conn *websocket.Conn, subject string, opts Options, log *zap.SugaredLogger) *Client {
	opts = opts.withDefaults()
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		subject: subject,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond*2),
		opts:    opts,
		log:     log.With("user_id", subject),
	}
}

// Send queues a frame. A full queue or a closed client drops it.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("send queue full, dropping frame")
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.joined.Load() {
			c.hub.Unregister(context.Background(), c.subject, c)
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) reply(event string, payload interface{}) {
	frame, err := Encode(event, payload)
	if err != nil {
		return
	}
	c.Send(frame)
}

// handleFrame processes one inbound frame. Unknown events are ignored.
func (c *Client) handleFrame(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.reply(EventError, errorData{Message: "malformed frame"})
		return
	}
	switch f.Event {
	case EventJoin:
		var jd joinData
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &jd); err != nil {
				c.reply(EventError, errorData{Message: "malformed join"})
				return
			}
		}
		if jd.UserID == "" {
			jd.UserID = c.subject
		}
		if jd.UserID != c.subject {
			c.log.Warnw("join rejected", "claimed", jd.UserID)
			c.reply(EventError, errorData{Message: "userId does not match token"})
			return
		}
		c.joined.Store(true)
		c.hub.Register(context.Background(), c.subject, c)
		// Close may have run before Register landed.
		select {
		case <-c.done:
			c.hub.Unregister(context.Background(), c.subject, c)
			return
		default:
		}
		c.reply(EventJoined, joinData{UserID: c.subject})
	default:
		c.log.Debugw("ignoring frame", "event", f.Event)
	}
}

func (c *Client) readPump() {
	defer c.Close()

	pongWait := c.opts.PingInterval * 2
	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.joined.Load() {
			c.hub.refresh(context.Background(), c.subject, c)
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Infow("ws read closed", "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.reply(EventError, errorData{Message: "rate limit exceeded"})
			continue
		}
		c.handleFrame(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debugw("ws write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteDeadline)); err != nil {
				return
			}
		}
	}
}

func (c *Client) serve() {
	metrics.Connections.Inc()
	defer metrics.Connections.Dec()
	go c.writePump()
	c.readPump()
}
