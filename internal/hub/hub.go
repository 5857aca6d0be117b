package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/DoyleJ11/stop-backend/internal/lobby"
)

var ErrHubClosed = errors.New("hub closed")

const (
	codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength  = 10
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Settings lobby.Settings // ID is assigned by the hub
	Reply    chan CreateResult
}

type CreateResult struct {
	Room *lobby.Room
	Err  error
}

type GetRoom struct {
	ID    string
	Reply chan *lobby.Room
}

type RemoveRoom struct {
	ID string
}

type CountRooms struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (CountRooms) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub is the room registry. Rooms are created with the hub's context as
// parent, so shutting the hub down closes every room.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*lobby.Room
	opts   lobby.Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts lobby.Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*lobby.Room),
		opts:   opts,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			clear(h.rooms)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg.Settings)

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case RemoveRoom:
				if _, ok := h.rooms[msg.ID]; ok {
					delete(h.rooms, msg.ID)
					h.log.Info("room deregistered", zap.String("room_id", msg.ID), zap.Int("rooms", len(h.rooms)))
				}

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case ShutdownHub:
				clear(h.rooms)
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(s lobby.Settings) CreateResult {
	if h.ctx.Err() != nil {
		return CreateResult{Err: ErrHubClosed}
	}
	for {
		code, err := GenerateCode()
		if err != nil {
			return CreateResult{Err: fmt.Errorf("generate room code: %w", err)}
		}
		if _, taken := h.rooms[code]; taken {
			h.log.Debug("collision on code, regenerating")
			continue
		}
		s.ID = code
		break
	}

	opts := h.opts
	opts.OnClose = h.Remove
	r, err := lobby.NewRoom(h.ctx, s, opts)
	if err != nil {
		return CreateResult{Err: err}
	}
	h.rooms[s.ID] = r
	h.log.Info("room created", zap.String("room_id", s.ID), zap.Int("rooms", len(h.rooms)))
	return CreateResult{Room: r}
}

func (h *Hub) Create(ctx context.Context, s lobby.Settings) (*lobby.Room, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateRoom{Settings: s, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Room, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}
}

// Get returns nil when no room has that id.
func (h *Hub) Get(ctx context.Context, id string) *lobby.Room {
	reply := make(chan *lobby.Room, 1)
	if err := h.send(ctx, GetRoom{ID: id, Reply: reply}); err != nil {
		return nil
	}
	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

// Remove is called by rooms as they close. It never blocks past shutdown.
func (h *Hub) Remove(id string) {
	select {
	case h.inbox <- RemoveRoom{ID: id}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Count(ctx context.Context) int {
	reply := make(chan int, 1)
	if err := h.send(ctx, CountRooms{Reply: reply}); err != nil {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	case <-h.ctx.Done():
		return 0
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}

// Done is closed once the hub stops accepting work.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// GenerateCode returns an unpredictable room code without look-alike
// characters.
func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
