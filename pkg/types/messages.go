package types

// Client -> Server
// heartbeat:          {}
// start-round:        {}
// stop-round:         {}
// change-answer:      category: string, answer: string
// change-answer-vote: answer: string, accepted: boolean
// leave-room:         {}
const (
	InHeartbeat        = "heartbeat"
	InStartRound       = "start-round"
	InStopRound        = "stop-round"
	InChangeAnswer     = "change-answer"
	InChangeAnswerVote = "change-answer-vote"
	InLeaveRoom        = "leave-room"
)

// Server -> Client
// player-joined:         name
// room-players:          names: string[]
// room-categories:       categories: string[]
// round-starting:        {}
// round-started:         letter, duration (ms)
// round-stopping:        requester? (absent when the timer ran out)
// stop-available:        {}
// category-vote-started: category, answers: string[], duration (ms)
// voting-ended:          scores: { [name]: number }
// player-removed:        name, reason: "room-closed" | "left" | "timed-out"
const (
	OutPlayerJoined        = "player-joined"
	OutRoomPlayers         = "room-players"
	OutRoomCategories      = "room-categories"
	OutRoundStarting       = "round-starting"
	OutRoundStarted        = "round-started"
	OutRoundStopping       = "round-stopping"
	OutStopAvailable       = "stop-available"
	OutCategoryVoteStarted = "category-vote-started"
	OutVotingEnded         = "voting-ended"
	OutPlayerRemoved       = "player-removed"
)

// Close codes sent on the websocket. 1008 (policy violation) is used for
// malformed frames.
const (
	CloseNoRoomWithID          = 4001
	CloseWrongRoomPassword     = 4002
	CloseNicknameAlreadyInRoom = 4003
	ClosePlayerRemoved         = 4004
)
