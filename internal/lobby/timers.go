package lobby

import (
	"time"

	"go.uber.org/zap"
)

type timerKind int

const (
	timerEmptyRoom timerKind = iota
	timerRoundStart
	timerStopAvailable
	timerRoundEnd
	timerStopGrace
)

func (k timerKind) String() string {
	switch k {
	case timerEmptyRoom:
		return "empty-room"
	case timerRoundStart:
		return "round-start"
	case timerStopAvailable:
		return "stop-available"
	case timerRoundEnd:
		return "round-end"
	case timerStopGrace:
		return "stop-grace"
	default:
		return "unknown"
	}
}

type armedTimer struct {
	seq uint64
	t   *time.Timer
}

// timerFired is what a timer posts to the inbox when it goes off. seq ties
// the message to the arming that produced it.
type timerFired struct {
	kind timerKind
	seq  uint64
}

func (timerFired) isRoomMsg() {}

func (r *Room) arm(kind timerKind, d time.Duration) {
	r.disarm(kind)
	r.timerSeq++
	seq := r.timerSeq
	t := time.AfterFunc(d, func() {
		r.post(timerFired{kind: kind, seq: seq})
	})
	r.timers[kind] = armedTimer{seq: seq, t: t}
}

func (r *Room) disarm(kind timerKind) {
	if a, ok := r.timers[kind]; ok {
		a.t.Stop()
		delete(r.timers, kind)
	}
}

func (r *Room) disarmAll() {
	for kind := range r.timers {
		r.disarm(kind)
	}
}

func (r *Room) fire(m timerFired) {
	a, ok := r.timers[m.kind]
	if !ok || a.seq != m.seq {
		// Stop() lost the race with a timer that had already posted.
		r.log.Debug("stale timer ignored", zap.Stringer("timer", m.kind))
		return
	}
	delete(r.timers, m.kind)

	switch m.kind {
	case timerEmptyRoom:
		if len(r.players) > 0 {
			return
		}
		r.log.Info("closing empty room")
		r.teardown()
	case timerRoundStart:
		r.beginAnswering()
	case timerStopAvailable:
		r.allowStop()
	case timerRoundEnd:
		if err := r.stopRound(NoRequester); err != nil {
			panic("lobby: round end timer could not stop the round: " + err.Error())
		}
	case timerStopGrace:
		r.beginVoting()
	}
}
