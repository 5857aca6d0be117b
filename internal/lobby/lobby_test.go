package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/stop-backend/internal/engine"
	"github.com/DoyleJ11/stop-backend/internal/types"
	pubtypes "github.com/DoyleJ11/stop-backend/pkg/types"
)

// fakeConn records everything the room delivers to one player.
type fakeConn struct {
	mu     sync.Mutex
	msgs   []types.ServerMessage
	closed bool
	code   int
	reason string
	out    chan types.ServerMessage
}

func newFakeConn() *fakeConn {
	return &fakeConn{out: make(chan types.ServerMessage, 256)}
}

func (c *fakeConn) Send(msg types.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.msgs = append(c.msgs, msg)
	select {
	case c.out <- msg:
	default:
	}
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.code = code
	c.reason = reason
}

func (c *fakeConn) count(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == kind {
			n++
		}
	}
	return n
}

func (c *fakeConn) closeInfo() (bool, int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.code, c.reason
}

// helper: skip messages until one of the wanted kind shows up
func recvKind(t *testing.T, c *fakeConn, kind string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg := <-c.out:
			if msg.Type == kind {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return types.ServerMessage{}
		}
	}
}

func recvNext(t *testing.T, c *fakeConn, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case msg := <-c.out:
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for a message")
		return types.ServerMessage{}
	}
}

func testTimings() Timings {
	return Timings{
		StartDelay:     10 * time.Millisecond,
		PerCategory:    200 * time.Millisecond,
		StopGrace:      10 * time.Millisecond,
		VoteDuration:   50 * time.Millisecond,
		EmptyRoomGrace: time.Hour,
	}
}

type testRoom struct {
	*Room
	closed chan string
}

func newTestRoom(t *testing.T, s Settings, tweak func(*Options)) testRoom {
	t.Helper()
	if s.ID == "" {
		s.ID = "ROOM01"
	}
	if s.Letters == nil {
		s.Letters = []string{"B"}
	}
	if s.Categories == nil {
		s.Categories = []string{"Animal", "Food"}
	}
	closed := make(chan string, 1)
	opts := Options{
		Timings:      testTimings(),
		PasswordCost: bcrypt.MinCost,
		OnClose:      func(id string) { closed <- id },
	}
	if tweak != nil {
		tweak(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r, err := NewRoom(ctx, s, opts)
	require.NoError(t, err)
	return testRoom{Room: r, closed: closed}
}

func join(t *testing.T, r testRoom, name string) (PlayerID, *fakeConn) {
	t.Helper()
	c := newFakeConn()
	id, err := r.Join(context.Background(), name, c)
	require.NoError(t, err)
	return id, c
}

func waitClosed(t *testing.T, r testRoom, within time.Duration) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(within):
		t.Fatalf("room did not close within %v", within)
	}
}

func TestNewRoom_RejectsBadSettings(t *testing.T) {
	ctx := context.Background()
	opts := Options{PasswordCost: bcrypt.MinCost}

	_, err := NewRoom(ctx, Settings{ID: "x", Letters: []string{}, Categories: []string{"Animal"}}, opts)
	assert.ErrorIs(t, err, engine.ErrNoLetters)

	_, err = NewRoom(ctx, Settings{ID: "x", Letters: []string{"A"}}, opts)
	assert.ErrorIs(t, err, engine.ErrNoCategories)
}

func TestCheckPassword(t *testing.T) {
	r := newTestRoom(t, Settings{Password: "hunter2"}, nil)
	assert.True(t, r.CheckPassword("hunter2"))
	assert.False(t, r.CheckPassword("hunter3"))
}

func TestJoin_SendsRosterThenBroadcastsJoin(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)

	_, alice := join(t, r, "alice")
	first := recvNext(t, alice, time.Second)
	assert.Equal(t, pubtypes.OutRoomPlayers, first.Type)
	assert.Equal(t, []string{"alice"}, first.Names)
	cats := recvNext(t, alice, time.Second)
	assert.Equal(t, pubtypes.OutRoomCategories, cats.Type)
	assert.Equal(t, []string{"Animal", "Food"}, cats.Categories)
	joined := recvNext(t, alice, time.Second)
	assert.Equal(t, pubtypes.OutPlayerJoined, joined.Type)
	assert.Equal(t, "alice", joined.Name)

	_, bob := join(t, r, "bob")
	roster := recvKind(t, bob, pubtypes.OutRoomPlayers, time.Second)
	assert.Equal(t, []string{"alice", "bob"}, roster.Names)

	notice := recvKind(t, alice, pubtypes.OutPlayerJoined, time.Second)
	assert.Equal(t, "bob", notice.Name)
}

func TestJoin_DuplicateNameLeavesMembershipUnchanged(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)
	join(t, r, "alice")

	c := newFakeConn()
	_, err := r.Join(context.Background(), "alice", c)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Zero(t, c.count(pubtypes.OutRoomPlayers))

	view, err := r.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, view.Players)
}

func TestRemovePlayer(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)
	ctx := context.Background()
	aliceID, alice := join(t, r, "alice")
	_, bob := join(t, r, "bob")

	require.NoError(t, r.RemovePlayer(ctx, aliceID, engine.ReasonLeft))

	notice := recvKind(t, bob, pubtypes.OutPlayerRemoved, time.Second)
	assert.Equal(t, "alice", notice.Name)
	assert.Equal(t, engine.ReasonLeft, notice.Reason)

	closed, code, reason := alice.closeInfo()
	assert.True(t, closed)
	assert.Equal(t, pubtypes.ClosePlayerRemoved, code)
	assert.Equal(t, "left", reason)

	closed, _, _ = bob.closeInfo()
	assert.False(t, closed)

	assert.ErrorIs(t, r.RemovePlayer(ctx, aliceID, engine.ReasonLeft), ErrNotMember)
}

func TestStartRound_TwiceFails(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)
	ctx := context.Background()
	join(t, r, "alice")

	require.NoError(t, r.StartRound(ctx))
	assert.ErrorIs(t, r.StartRound(ctx), ErrRoundInProgress)

	view, err := r.State(ctx)
	require.NoError(t, err)
	assert.True(t, view.Phase.RoundInProgress())
	assert.False(t, view.Phase.VotingInProgress())
}

func TestStopRound_WithoutRound(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)
	id, _ := join(t, r, "alice")
	assert.ErrorIs(t, r.StopRound(context.Background(), id), ErrNoRound)
	assert.ErrorIs(t, r.StopRound(context.Background(), NoRequester), ErrNoRound)
}

func TestRoundScenario(t *testing.T) {
	r := newTestRoom(t, Settings{Letters: []string{"B"}, Categories: []string{"Animal", "Food"}}, nil)
	ctx := context.Background()
	aliceID, alice := join(t, r, "alice")
	bobID, bob := join(t, r, "bob")

	require.NoError(t, r.StartRound(ctx))
	recvKind(t, alice, pubtypes.OutRoundStarting, time.Second)

	started := recvKind(t, alice, pubtypes.OutRoundStarted, time.Second)
	assert.Equal(t, "B", started.Letter)
	assert.Equal(t, (2 * testTimings().PerCategory).Milliseconds(), started.Duration)

	assert.ErrorIs(t, r.StopRound(ctx, aliceID), ErrStopNotAllowed)

	require.NoError(t, r.ChangeAnswer(ctx, aliceID, "Animal", "bear"))
	require.NoError(t, r.ChangeAnswer(ctx, bobID, "Food", "bread"))

	recvKind(t, alice, pubtypes.OutStopAvailable, time.Second)
	require.NoError(t, r.StopRound(ctx, aliceID))
	assert.ErrorIs(t, r.StopRound(ctx, bobID), ErrAlreadyStopping)

	stopping := recvKind(t, bob, pubtypes.OutRoundStopping, time.Second)
	assert.Equal(t, "alice", stopping.Requester)

	vote := recvKind(t, bob, pubtypes.OutCategoryVoteStarted, time.Second)
	assert.Equal(t, "Animal", vote.Category)
	assert.Equal(t, []string{"bear"}, vote.Answers)

	ended := recvKind(t, alice, pubtypes.OutVotingEnded, 2*time.Second)
	// Everyone accepts everything by default.
	assert.Equal(t, map[string]int{"alice": 2, "bob": 2}, ended.Scores)

	waitClosed(t, r, time.Second)
	assert.Equal(t, "ROOM01", <-r.closed)
	assert.Equal(t, 1, alice.count(pubtypes.OutVotingEnded))
	assert.Equal(t, 1, bob.count(pubtypes.OutVotingEnded))

	closed, code, reason := alice.closeInfo()
	assert.True(t, closed)
	assert.Equal(t, pubtypes.ClosePlayerRemoved, code)
	assert.Equal(t, "room-closed", reason)
}

func TestRoundEndsOnItsOwn(t *testing.T) {
	r := newTestRoom(t, Settings{Categories: []string{"Animal"}}, func(o *Options) {
		o.Timings.PerCategory = 40 * time.Millisecond
	})
	_, alice := join(t, r, "alice")

	require.NoError(t, r.StartRound(context.Background()))
	stopping := recvKind(t, alice, pubtypes.OutRoundStopping, time.Second)
	assert.Empty(t, stopping.Requester)
	recvKind(t, alice, pubtypes.OutVotingEnded, time.Second)
	waitClosed(t, r, time.Second)
}

func TestVotingScoresByAcceptedAnswer(t *testing.T) {
	r := newTestRoom(t, Settings{Categories: []string{"Animal"}}, func(o *Options) {
		o.Timings.VoteDuration = 300 * time.Millisecond
	})
	ctx := context.Background()
	p1, c1 := join(t, r, "p1")
	p2, _ := join(t, r, "p2")
	p3, _ := join(t, r, "p3")

	require.NoError(t, r.StartRound(ctx))
	recvKind(t, c1, pubtypes.OutRoundStarted, time.Second)
	require.NoError(t, r.ChangeAnswer(ctx, p1, "Animal", "cat"))
	require.NoError(t, r.ChangeAnswer(ctx, p2, "Animal", "dog"))
	require.NoError(t, r.ChangeAnswer(ctx, p3, "Animal", " cat "))
	require.NoError(t, r.StopRound(ctx, NoRequester))

	vote := recvKind(t, c1, pubtypes.OutCategoryVoteStarted, time.Second)
	assert.Equal(t, []string{"cat", "dog"}, vote.Answers)

	// Only p1 and p2 keep "cat"; nobody keeps "dog".
	for _, id := range []PlayerID{p1, p2, p3} {
		require.NoError(t, r.ChangeAnswerVote(ctx, id, "dog", false))
	}
	require.NoError(t, r.ChangeAnswerVote(ctx, p3, "cat", false))
	assert.ErrorIs(t, r.ChangeAnswerVote(ctx, p3, "cow", true), ErrUnknownAnswer)

	ended := recvKind(t, c1, pubtypes.OutVotingEnded, 2*time.Second)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 0, "p3": 2}, ended.Scores)
}

func TestVoting_OnlyRemainingPlayersAreScored(t *testing.T) {
	r := newTestRoom(t, Settings{Categories: []string{"Animal"}}, func(o *Options) {
		o.Timings.VoteDuration = 200 * time.Millisecond
	})
	ctx := context.Background()
	_, alice := join(t, r, "alice")
	bobID, _ := join(t, r, "bob")

	require.NoError(t, r.StartRound(ctx))
	require.NoError(t, r.StopRound(ctx, NoRequester))
	recvKind(t, alice, pubtypes.OutCategoryVoteStarted, time.Second)
	require.NoError(t, r.RemovePlayer(ctx, bobID, engine.ReasonTimedOut))

	ended := recvKind(t, alice, pubtypes.OutVotingEnded, time.Second)
	assert.Equal(t, map[string]int{"alice": 0}, ended.Scores)
}

func TestAnswersOnlyDuringRound(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)
	ctx := context.Background()
	id, c := join(t, r, "alice")

	assert.ErrorIs(t, r.ChangeAnswer(ctx, id, "Animal", "bear"), ErrNotAnswering)
	assert.ErrorIs(t, r.ChangeAnswerVote(ctx, id, "bear", true), ErrNotVoting)

	require.NoError(t, r.StartRound(ctx))
	recvKind(t, c, pubtypes.OutRoundStarted, time.Second)
	// Unknown categories are logged but still accepted.
	assert.NoError(t, r.ChangeAnswer(ctx, id, "Colour", "blue"))
	assert.ErrorIs(t, r.ChangeAnswer(ctx, 99, "Animal", "bear"), ErrNotMember)
}

func TestEmptyRoomGrace(t *testing.T) {
	grace := 80 * time.Millisecond
	r := newTestRoom(t, Settings{}, func(o *Options) {
		o.Timings.EmptyRoomGrace = grace
	})
	ctx := context.Background()

	aliceID, _ := join(t, r, "alice")
	require.NoError(t, r.RemovePlayer(ctx, aliceID, engine.ReasonLeft))

	// Rejoining inside the grace period keeps the room alive.
	bobID, _ := join(t, r, "bob")
	select {
	case <-r.Done():
		t.Fatalf("room closed although a player rejoined")
	case <-time.After(3 * grace):
	}

	require.NoError(t, r.RemovePlayer(ctx, bobID, engine.ReasonLeft))
	waitClosed(t, r, time.Second)
	assert.Equal(t, "ROOM01", <-r.closed)

	_, err := r.Join(ctx, "carol", newFakeConn())
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestFreshRoomClosesWhenNobodyJoins(t *testing.T) {
	r := newTestRoom(t, Settings{}, func(o *Options) {
		o.Timings.EmptyRoomGrace = 20 * time.Millisecond
	})
	waitClosed(t, r, time.Second)
}

func TestClose_CancelsPendingTimers(t *testing.T) {
	r := newTestRoom(t, Settings{}, func(o *Options) {
		o.Timings.StartDelay = 50 * time.Millisecond
	})
	_, alice := join(t, r, "alice")

	require.NoError(t, r.StartRound(context.Background()))
	r.Close()
	waitClosed(t, r, time.Second)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, alice.count(pubtypes.OutRoundStarted))
	assert.Equal(t, 1, alice.count(pubtypes.OutPlayerRemoved))
}

func TestClose_DuringVotingEmitsNoScores(t *testing.T) {
	r := newTestRoom(t, Settings{}, nil)
	ctx := context.Background()
	_, alice := join(t, r, "alice")

	require.NoError(t, r.StartRound(ctx))
	require.NoError(t, r.StopRound(ctx, NoRequester))
	recvKind(t, alice, pubtypes.OutCategoryVoteStarted, time.Second)

	r.Close()
	waitClosed(t, r, time.Second)
	time.Sleep(3 * testTimings().VoteDuration)
	assert.Zero(t, alice.count(pubtypes.OutVotingEnded))
}

func TestParentCancelClosesRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, err := NewRoom(ctx, Settings{ID: "R", Letters: []string{"A"}, Categories: []string{"Animal"}},
		Options{Timings: testTimings(), PasswordCost: bcrypt.MinCost})
	require.NoError(t, err)

	c := newFakeConn()
	_, err = r.Join(ctx, "alice", c)
	require.NoError(t, err)

	cancel()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("room ignored parent cancellation")
	}
	closed, _, reason := c.closeInfo()
	assert.True(t, closed)
	assert.Equal(t, "room-closed", reason)
}

type chanRecorder chan RoundSummary

func (c chanRecorder) RecordRound(_ context.Context, s RoundSummary) error {
	c <- s
	return nil
}

func TestFinishedRoundIsRecorded(t *testing.T) {
	rec := make(chanRecorder, 1)
	r := newTestRoom(t, Settings{Categories: []string{"Animal"}}, func(o *Options) {
		o.Recorder = rec
	})
	ctx := context.Background()
	join(t, r, "alice")

	require.NoError(t, r.StartRound(ctx))
	require.NoError(t, r.StopRound(ctx, NoRequester))

	select {
	case s := <-rec:
		assert.Equal(t, "ROOM01", s.RoomID)
		assert.Equal(t, "B", s.Letter)
		assert.Equal(t, map[string]int{"alice": 0}, s.Scores)
	case <-time.After(2 * time.Second):
		t.Fatalf("round was not recorded")
	}
}

func TestEmptyRoomGrace_NotArmedMidRound(t *testing.T) {
	grace := 30 * time.Millisecond
	r := newTestRoom(t, Settings{Categories: []string{"Animal"}}, func(o *Options) {
		o.Timings.EmptyRoomGrace = grace
		o.Timings.PerCategory = 300 * time.Millisecond
	})
	ctx := context.Background()
	id, c := join(t, r, "alice")

	require.NoError(t, r.StartRound(ctx))
	recvKind(t, c, pubtypes.OutRoundStarted, time.Second)
	require.NoError(t, r.RemovePlayer(ctx, id, engine.ReasonLeft))

	select {
	case <-r.Done():
		t.Fatalf("room closed by the empty-room timer during a round")
	case <-time.After(4 * grace):
	}
	view, err := r.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseAnswering, view.Phase)

	// The round still runs to the end of voting, which closes the room.
	waitClosed(t, r, 2*time.Second)
	assert.Equal(t, "ROOM01", <-r.closed)
}

func TestTimings_MissingDurationsFallBackToDefaults(t *testing.T) {
	def := DefaultTimings()

	got := Timings{StartDelay: time.Millisecond, StopGrace: time.Millisecond}.withDefaults()
	assert.Equal(t, time.Millisecond, got.StartDelay)
	assert.Equal(t, time.Millisecond, got.StopGrace)
	assert.Equal(t, def.PerCategory, got.PerCategory)
	assert.Equal(t, def.VoteDuration, got.VoteDuration)
	assert.Equal(t, def.EmptyRoomGrace, got.EmptyRoomGrace)

	assert.Equal(t, def, Timings{}.withDefaults())

	r := newTestRoom(t, Settings{}, func(o *Options) {
		o.Timings.VoteDuration = 0
	})
	assert.Equal(t, def.VoteDuration, r.timings.VoteDuration)
}
