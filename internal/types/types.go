package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/pkg/types"
	"github.com/go-playground/validator/v10"
)

var ErrMalformed = errors.New("malformed message")

var validate = validator.New(validator.WithRequiredStructEnabled())

type ClientMessage struct {
	Type     string `json:"type" validate:"required,oneof=heartbeat start-round stop-round change-answer change-answer-vote leave-room"`
	Category string `json:"category,omitempty" validate:"required_if=Type change-answer,max=64"`
	Answer   string `json:"answer,omitempty" validate:"required_if=Type change-answer-vote,max=128"`
	Accepted *bool  `json:"accepted,omitempty" validate:"required_if=Type change-answer-vote"`
}

type ServerMessage struct {
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	Names      []string       `json:"names,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Letter     string         `json:"letter,omitempty"`
	Duration   int64          `json:"duration,omitempty"` // milliseconds
	Requester  string         `json:"requester,omitempty"`
	Category   string         `json:"category,omitempty"`
	Answers    []string       `json:"answers,omitempty"`
	Scores     map[string]int `json:"scores,omitempty"`
	Reason     engine.Reason  `json:"reason,omitempty"`
}

// MarshalJSON always writes the answer list of a category vote and the score
// table of voting-ended, even when they are empty.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	type wire ServerMessage
	switch m.Type {
	case types.OutCategoryVoteStarted:
		answers := m.Answers
		if answers == nil {
			answers = []string{}
		}
		return json.Marshal(struct {
			wire
			Answers []string `json:"answers"`
		}{wire(m), answers})
	case types.OutVotingEnded:
		scores := m.Scores
		if scores == nil {
			scores = map[string]int{}
		}
		return json.Marshal(struct {
			wire
			Scores map[string]int `json:"scores"`
		}{wire(m), scores})
	}
	return json.Marshal(wire(m))
}

// ParseClientMessage decodes one inbound frame and checks that the fields its
// type needs are present. Any failure wraps ErrMalformed.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(cm); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cm, nil
}

func PlayerJoined(name string) ServerMessage {
	return ServerMessage{Type: types.OutPlayerJoined, Name: name}
}

func RoomPlayers(names []string) ServerMessage {
	return ServerMessage{Type: types.OutRoomPlayers, Names: names}
}

func RoomCategories(categories []string) ServerMessage {
	return ServerMessage{Type: types.OutRoomCategories, Categories: categories}
}

func RoundStarting() ServerMessage {
	return ServerMessage{Type: types.OutRoundStarting}
}

func RoundStarted(letter string, d time.Duration) ServerMessage {
	return ServerMessage{Type: types.OutRoundStarted, Letter: letter, Duration: d.Milliseconds()}
}

func RoundStopping(requester string) ServerMessage {
	return ServerMessage{Type: types.OutRoundStopping, Requester: requester}
}

func StopAvailable() ServerMessage {
	return ServerMessage{Type: types.OutStopAvailable}
}

func CategoryVoteStarted(category string, answers []string, d time.Duration) ServerMessage {
	return ServerMessage{Type: types.OutCategoryVoteStarted, Category: category, Answers: answers, Duration: d.Milliseconds()}
}

func VotingEnded(scores map[string]int) ServerMessage {
	return ServerMessage{Type: types.OutVotingEnded, Scores: scores}
}

func PlayerRemoved(name string, reason engine.Reason) ServerMessage {
	return ServerMessage{Type: types.OutPlayerRemoved, Name: name, Reason: reason}
}
