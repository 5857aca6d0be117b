package lobby

import (
	"time"

	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/internal/types"
)

// voteCycle runs one timed vote per category and reports the accumulated
// scores on done, exactly once. All methods except cadence run on the room
// goroutine.
type voteCycle struct {
	room       *Room
	categories []string
	every      time.Duration

	cursor  int
	current []string // answers announced for the category being voted
	scores  map[*Player]int

	done    chan map[*Player]int
	quit    chan struct{}
	stopped bool
}

type voteTick struct{ cycle *voteCycle }

func (voteTick) isRoomMsg() {}

func newVoteCycle(r *Room, categories []string, every time.Duration) *voteCycle {
	scores := make(map[*Player]int, len(r.players))
	for _, p := range r.players {
		scores[p] = 0
	}
	return &voteCycle{
		room:       r,
		categories: categories,
		every:      every,
		scores:     scores,
		done:       make(chan map[*Player]int, 1),
		quit:       make(chan struct{}),
	}
}

// start opens the first category right away; later ones follow the cadence.
func (vc *voteCycle) start() {
	vc.tick()
	if !vc.stopped {
		go vc.cadence()
	}
}

func (vc *voteCycle) cadence() {
	ticker := time.NewTicker(vc.every)
	defer ticker.Stop()
	for {
		select {
		case <-vc.quit:
			return
		case <-ticker.C:
			select {
			case vc.room.inbox <- voteTick{cycle: vc}:
			case <-vc.quit:
				return
			case <-vc.room.done:
				return
			}
		}
	}
}

func (vc *voteCycle) tick() {
	if vc.stopped {
		return
	}
	if vc.cursor > 0 {
		vc.tally(vc.categories[vc.cursor-1])
	}

	if vc.cursor == len(vc.categories) {
		vc.stop()
		vc.done <- vc.scores
		close(vc.done)
		return
	}

	category := vc.categories[vc.cursor]
	answers := make([]string, 0, len(vc.room.players))
	for _, p := range vc.room.players {
		answers = append(answers, p.answers[category])
	}
	vc.current = engine.DistinctAnswers(answers)
	vc.room.broadcast(types.CategoryVoteStarted(category, vc.current, vc.every))
	vc.cursor++
}

func (vc *voteCycle) tally(category string) {
	ballots := make(map[*Player]engine.Ballot, len(vc.room.players))
	for _, p := range vc.room.players {
		ballots[p] = p.ballot(category)
	}
	for p, s := range engine.ScoreCategory(ballots) {
		vc.scores[p] += s
	}
}

// stop halts the cadence without reporting. Safe to call more than once.
func (vc *voteCycle) stop() {
	if vc.stopped {
		return
	}
	vc.stopped = true
	close(vc.quit)
}
