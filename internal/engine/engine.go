package engine

import (
	"errors"
	"slices"
)

var ErrNoLetters = errors.New("letter set is empty")
var ErrBadLetter = errors.New("letters must be single characters")
var ErrNoCategories = errors.New("category list is empty")
var ErrTooManyCategories = errors.New("too many categories")

const MaxCategories = 32

type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseRoundStarting Phase = "round-starting"
	PhaseAnswering     Phase = "round-answering"
	PhaseStopping      Phase = "round-stopping"
	PhaseVoting        Phase = "voting"
	PhaseClosed        Phase = "closed"
)

// RoundInProgress reports whether the answering part of a round is running.
func (p Phase) RoundInProgress() bool {
	switch p {
	case PhaseRoundStarting, PhaseAnswering, PhaseStopping:
		return true
	}
	return false
}

func (p Phase) VotingInProgress() bool { return p == PhaseVoting }

// AcceptsAnswers is true while answers may still arrive, including the
// grace window after a stop was requested.
func (p Phase) AcceptsAnswers() bool {
	return p == PhaseAnswering || p == PhaseStopping
}

type Reason string

const (
	ReasonRoomClosed Reason = "room-closed"
	ReasonLeft       Reason = "left"
	ReasonTimedOut   Reason = "timed-out"
)

// Ballot is what one player contributed to a single category: the answer
// they wrote and the answers they accepted while voting on it.
type Ballot struct {
	Answer   string
	Accepted map[string]struct{}
}

/*
	A category is scored purely on vote counts per answer string:

	answers  {"cat": P1, "dog": P2, "cat": P3}
	accepts  "cat" by P1 and P2
	scores   P1=2, P2=0, P3=2

	Who cast a vote does not matter, self votes count like any other.
*/

// ScoreCategory returns, for every ballot key, the number of accept votes
// its own answer received across all ballots.
func ScoreCategory[K comparable](ballots map[K]Ballot) map[K]int {
	counts := make(map[string]int)
	for _, b := range ballots {
		for answer := range b.Accepted {
			counts[answer]++
		}
	}

	scores := make(map[K]int, len(ballots))
	for key, b := range ballots {
		if b.Answer == "" {
			scores[key] = 0
			continue
		}
		scores[key] = counts[b.Answer]
	}
	return scores
}

// DistinctAnswers collects the non-empty answers in first-seen order.
func DistinctAnswers(answers []string) []string {
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		if a == "" || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
