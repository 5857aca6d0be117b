package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/internal/lobby"
	"github.com/DoyleJ11/stop-backend/internal/types"
	pubtypes "github.com/DoyleJ11/stop-backend/pkg/types"
)

const removeTimeout = 5 * time.Second

// Room is the part of *lobby.Room a connection drives.
type Room interface {
	StartRound(ctx context.Context) error
	StopRound(ctx context.Context, requester lobby.PlayerID) error
	ChangeAnswer(ctx context.Context, id lobby.PlayerID, category, answer string) error
	ChangeAnswerVote(ctx context.Context, id lobby.PlayerID, answer string, accepted bool) error
	RemovePlayer(ctx context.Context, id lobby.PlayerID, reason engine.Reason) error
}

type Config struct {
	Inactivity     time.Duration
	InboundRate    float64 // frames per second, heartbeats excluded
	InboundBurst   int
	OriginPatterns []string
}

func DefaultConfig() Config {
	return Config{
		Inactivity:   30 * time.Second,
		InboundRate:  20,
		InboundBurst: 40,
	}
}

// Supervisor turns inbound frames of one player into room operations and
// removes the player when it goes quiet.
type Supervisor struct {
	room       Room
	player     lobby.PlayerID
	inactivity time.Duration
	timer      *time.Timer
	limiter    *rate.Limiter
	log        *zap.Logger
	closeOnce  sync.Once
}

func NewSupervisor(room Room, player lobby.PlayerID, cfg Config, log *zap.Logger) *Supervisor {
	s := &Supervisor{
		room:       room,
		player:     player,
		inactivity: cfg.Inactivity,
		limiter:    rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		log:        log,
	}
	s.timer = time.AfterFunc(cfg.Inactivity, s.timeout)
	return s
}

// Handle processes one frame. The only error it returns is a protocol
// violation, after which the connection must be closed.
func (s *Supervisor) Handle(ctx context.Context, data []byte) error {
	cm, err := types.ParseClientMessage(data)
	if err != nil {
		return err
	}

	if cm.Type == pubtypes.InHeartbeat {
		s.timer.Reset(s.inactivity)
		return nil
	}
	if !s.limiter.Allow() {
		s.log.Warn("inbound rate exceeded, dropping frame", zap.String("type", cm.Type))
		return nil
	}

	switch cm.Type {
	case pubtypes.InStartRound:
		s.logFailure(cm.Type, s.room.StartRound(ctx))
	case pubtypes.InStopRound:
		s.logFailure(cm.Type, s.room.StopRound(ctx, s.player))
	case pubtypes.InChangeAnswer:
		s.logFailure(cm.Type, s.room.ChangeAnswer(ctx, s.player, cm.Category, cm.Answer))
	case pubtypes.InChangeAnswerVote:
		s.logFailure(cm.Type, s.room.ChangeAnswerVote(ctx, s.player, cm.Answer, *cm.Accepted))
	case pubtypes.InLeaveRoom:
		s.logFailure(cm.Type, s.room.RemovePlayer(ctx, s.player, engine.ReasonLeft))
	}
	return nil
}

// Closed runs when the network connection is gone. Removing a player that
// already left is a no-op on the room side.
func (s *Supervisor) Closed() {
	s.closeOnce.Do(func() {
		s.timer.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
		defer cancel()
		err := s.room.RemovePlayer(ctx, s.player, engine.ReasonLeft)
		if err != nil && !errors.Is(err, lobby.ErrNotMember) && !errors.Is(err, lobby.ErrRoomClosed) {
			s.log.Warn("remove on disconnect failed", zap.Error(err))
		}
	})
}

func (s *Supervisor) timeout() {
	s.log.Info("player inactive, removing")
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	s.logFailure("inactivity", s.room.RemovePlayer(ctx, s.player, engine.ReasonTimedOut))
}

// Requests made stale by a state change are normal; the room just ignores
// them.
func (s *Supervisor) logFailure(op string, err error) {
	if err == nil {
		return
	}
	s.log.Info("request rejected", zap.String("op", op), zap.Error(err))
}
