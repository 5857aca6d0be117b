package lobby

import (
	"context"
	"time"
)

// RoundSummary is what a room hands to its Recorder when voting ends.
type RoundSummary struct {
	RoomID     string
	Letter     string
	Categories []string
	Scores     map[string]int
	FinishedAt time.Time
}

type Recorder interface {
	RecordRound(ctx context.Context, s RoundSummary) error
}
