package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/stop-backend/internal/types"
)

const (
	outboxSize   = 64
	writeTimeout = 3 * time.Second
)

type outgoing struct {
	msg   types.ServerMessage
	close *closeFrame
}

type closeFrame struct {
	code   int
	reason string
}

// Conn is the room-facing side of a websocket. Messages and the final close
// go through one ordered outbox drained by WritePump.
type Conn struct {
	ws  *websocket.Conn
	out chan outgoing
	log *zap.Logger

	mu      sync.Mutex
	closing bool
	done    chan struct{}
}

func NewConn(c *websocket.Conn, log *zap.Logger) *Conn {
	return &Conn{
		ws:   c,
		out:  make(chan outgoing, outboxSize),
		log:  log,
		done: make(chan struct{}),
	}
}

func (c *Conn) Send(msg types.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	select {
	case c.out <- outgoing{msg: msg}:
	default:
		// Client is slow/full - drop the message rather than stall the room.
		c.log.Warn("outbox full, dropping message", zap.String("type", msg.Type))
	}
}

func (c *Conn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return
	}
	c.closing = true
	select {
	case c.out <- outgoing{close: &closeFrame{code: code, reason: reason}}:
	default:
		go c.ws.Close(websocket.StatusCode(code), reason)
	}
}

// Done is closed when WritePump has returned.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) WritePump(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return

		case o := <-c.out:
			if o.close != nil {
				_ = c.ws.Close(websocket.StatusCode(o.close.code), o.close.reason)
				return
			}

			payload, err := json.Marshal(o.msg)
			if err != nil {
				c.log.Error("encode message", zap.String("type", o.msg.Type), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.ws.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.mu.Lock()
				c.closing = true
				c.mu.Unlock()
				_ = c.ws.CloseNow()
				return
			}
		}
	}
}
