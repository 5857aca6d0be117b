package lobby

import (
	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/internal/types"
	pubtypes "github.com/DoyleJ11/stop-backend/pkg/types"
)

// Conn is the delivery side of a player's network connection. Send must not
// block; Close must run after every message sent before it.
type Conn interface {
	Send(msg types.ServerMessage)
	Close(code int, reason string)
}

// PlayerID is a room-local handle. It is never reused within a room, so a
// stale handle held by a closed connection cannot address a newer player.
type PlayerID uint64

// NoRequester marks a stop that was not asked for by a player.
const NoRequester PlayerID = 0

type Player struct {
	id      PlayerID
	name    string
	conn    Conn
	answers map[string]string   // category -> answer
	votes   map[string]struct{} // accepted answers for the category being voted
}

func newPlayer(id PlayerID, name string, conn Conn) *Player {
	return &Player{
		id:      id,
		name:    name,
		conn:    conn,
		answers: map[string]string{},
		votes:   map[string]struct{}{},
	}
}

// deliver sends msg and applies the local effects some messages carry.
func (p *Player) deliver(msg types.ServerMessage) {
	p.conn.Send(msg)

	switch msg.Type {
	case pubtypes.OutRoundStarting:
		clear(p.answers)
	case pubtypes.OutCategoryVoteStarted:
		p.votes = make(map[string]struct{}, len(msg.Answers))
		for _, a := range msg.Answers {
			p.votes[a] = struct{}{}
		}
	case pubtypes.OutPlayerRemoved:
		if msg.Name == p.name {
			p.conn.Close(pubtypes.ClosePlayerRemoved, string(msg.Reason))
		}
	}
}

func (p *Player) ballot(category string) engine.Ballot {
	return engine.Ballot{Answer: p.answers[category], Accepted: p.votes}
}
