package lobby

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/internal/types"
)

const recordTimeout = 5 * time.Second

func (r *Room) join(name string, conn Conn) (PlayerID, error) {
	if r.playerByName(name) != nil {
		return 0, ErrDuplicateName
	}
	r.disarm(timerEmptyRoom)

	r.lastID++
	p := newPlayer(r.lastID, name, conn)
	r.players = append(r.players, p)

	p.deliver(types.RoomPlayers(r.names()))
	p.deliver(types.RoomCategories(r.categories))
	r.broadcast(types.PlayerJoined(name))

	r.log.Info("player joined", zap.String("player", name), zap.Int("players", len(r.players)))
	return p.id, nil
}

func (r *Room) removePlayer(id PlayerID, reason engine.Reason) error {
	idx := slices.IndexFunc(r.players, func(p *Player) bool { return p.id == id })
	if idx < 0 {
		return ErrNotMember
	}
	p := r.players[idx]

	// The removed player is still listed so it sees its own removal.
	r.broadcast(types.PlayerRemoved(p.name, reason))
	r.players = slices.Delete(r.players, idx, idx+1)

	r.log.Info("player removed", zap.String("player", p.name), zap.String("reason", string(reason)))

	if len(r.players) == 0 && r.phase == engine.PhaseLobby {
		r.arm(timerEmptyRoom, r.timings.EmptyRoomGrace)
	}
	return nil
}

func (r *Room) startRound() error {
	if r.phase != engine.PhaseLobby {
		return ErrRoundInProgress
	}
	r.disarm(timerEmptyRoom)

	r.broadcast(types.RoundStarting())
	r.phase = engine.PhaseRoundStarting
	r.stopAllowed = false
	r.letter = engine.PickLetter(r.letters)

	r.arm(timerRoundStart, r.timings.StartDelay)
	r.log.Info("round starting", zap.String("letter", r.letter))
	return nil
}

func (r *Room) beginAnswering() {
	if r.phase != engine.PhaseRoundStarting {
		panic(fmt.Sprintf("lobby: round start fired in phase %s", r.phase))
	}
	d := engine.RoundDuration(len(r.categories), r.timings.PerCategory)

	r.phase = engine.PhaseAnswering
	r.broadcast(types.RoundStarted(r.letter, d))
	r.arm(timerRoundEnd, d)
	r.arm(timerStopAvailable, d/2)
}

func (r *Room) allowStop() {
	if r.phase != engine.PhaseAnswering {
		panic(fmt.Sprintf("lobby: stop window fired in phase %s", r.phase))
	}
	r.stopAllowed = true
	r.broadcast(types.StopAvailable())
}

func (r *Room) stopRound(requester PlayerID) error {
	switch {
	case r.phase == engine.PhaseStopping || r.phase == engine.PhaseVoting:
		return ErrAlreadyStopping
	case !r.phase.RoundInProgress():
		return ErrNoRound
	}

	var name string
	if requester != NoRequester {
		p := r.player(requester)
		if p == nil {
			return ErrNotMember
		}
		if !r.stopAllowed {
			return ErrStopNotAllowed
		}
		name = p.name
	}

	r.disarm(timerRoundStart)
	r.disarm(timerRoundEnd)
	r.disarm(timerStopAvailable)

	r.phase = engine.PhaseStopping
	r.broadcast(types.RoundStopping(name))
	r.arm(timerStopGrace, r.timings.StopGrace)

	r.log.Info("round stopping", zap.String("requester", name))
	return nil
}

func (r *Room) beginVoting() {
	if r.phase != engine.PhaseStopping {
		panic(fmt.Sprintf("lobby: voting began in phase %s", r.phase))
	}
	r.phase = engine.PhaseVoting

	vc := newVoteCycle(r, r.categories, r.timings.VoteDuration)
	r.voting = vc
	r.votingDone = vc.done
	vc.start()
}

func (r *Room) finishVoting(scores map[*Player]int) {
	r.voting = nil

	byName := make(map[string]int, len(r.players))
	for _, p := range r.players {
		byName[p.name] = scores[p]
	}
	r.broadcast(types.VotingEnded(byName))
	r.log.Info("voting ended", zap.Any("scores", byName))

	r.record(byName)

	// A finished round closes the room; there is no replay.
	r.teardown()
}

func (r *Room) record(scores map[string]int) {
	if r.recorder == nil {
		return
	}
	summary := RoundSummary{
		RoomID:     r.id,
		Letter:     r.letter,
		Categories: slices.Clone(r.categories),
		Scores:     scores,
		FinishedAt: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.recorder.RecordRound(ctx, summary); err != nil {
			r.log.Warn("record round failed", zap.Error(err))
		}
	}()
}

func (r *Room) teardown() {
	if r.phase == engine.PhaseClosed {
		return
	}
	if r.voting != nil {
		r.voting.stop()
		r.voting = nil
	}
	r.votingDone = nil
	r.disarmAll()

	for _, p := range slices.Clone(r.players) {
		r.broadcast(types.PlayerRemoved(p.name, engine.ReasonRoomClosed))
	}
	r.players = nil
	r.phase = engine.PhaseClosed
	r.cancel()

	if r.onClose != nil {
		r.onClose(r.id)
	}
	r.log.Info("room closed")
}

func (r *Room) changeAnswer(id PlayerID, category, answer string) error {
	p := r.player(id)
	if p == nil {
		return ErrNotMember
	}
	if !r.phase.AcceptsAnswers() {
		return ErrNotAnswering
	}
	if !engine.ContainsCategory(r.categories, category) {
		r.log.Warn("answer for unknown category", zap.String("player", p.name), zap.String("category", category))
	}
	p.answers[category] = engine.NormalizeAnswer(answer)
	return nil
}

func (r *Room) changeAnswerVote(id PlayerID, answer string, accepted bool) error {
	p := r.player(id)
	if p == nil {
		return ErrNotMember
	}
	if r.voting == nil {
		return ErrNotVoting
	}
	answer = engine.NormalizeAnswer(answer)
	if !accepted {
		delete(p.votes, answer)
		return nil
	}
	if !slices.Contains(r.voting.current, answer) {
		return ErrUnknownAnswer
	}
	p.votes[answer] = struct{}{}
	return nil
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for _, p := range r.players {
		p.deliver(msg)
	}
}

func (r *Room) player(id PlayerID) *Player {
	for _, p := range r.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByName(name string) *Player {
	for _, p := range r.players {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (r *Room) names() []string {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.name)
	}
	return names
}

func (r *Room) view() View {
	return View{
		ID:          r.id,
		Phase:       r.phase,
		Players:     r.names(),
		Categories:  slices.Clone(r.categories),
		Letter:      r.letter,
		StopAllowed: r.stopAllowed,
	}
}
