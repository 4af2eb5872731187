package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/app/orch"
	"github.com/classline/classline/internal/config"
	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the signaling sockets: one lightweight goroutine pair
// per connection, blocking only on network I/O.
type Controller struct {
	Orch    *orch.Orchestrator
	cfg     *config.Config
	limiter *ChatRateLimiter
}

func NewController(o *orch.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{
		Orch:    o,
		cfg:     cfg,
		limiter: NewChatRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
	}
}

// wsSignalConn is one attached socket plus its write queue. The single
// writePump draining send keeps per-sender ordering intact.
type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	uid    domain.UserID
	name   string
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsSignalConn) setIdentity(uid domain.UserID, name string) {
	c.mu.Lock()
	c.uid = uid
	c.name = name
	c.mu.Unlock()
}

func (c *wsSignalConn) identity() (domain.UserID, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid, c.name
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until the
// socket or the server context dies.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	id := core.ConnID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Orch.Relay.Register(id, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, id, conn)
		ctl.Orch.Relay.Deregister(id)
	}()
}

func (ctl *Controller) sendEvent(c *wsSignalConn, t core.EventType, payload any) {
	frame, err := core.MarshalEvent(t, "", payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal outbound")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("direct send dropped")
	}
}

func (ctl *Controller) sendError(c *wsSignalConn, msg string) {
	ctl.sendEvent(c, core.EventError, core.ErrorPayload{Message: msg})
}
