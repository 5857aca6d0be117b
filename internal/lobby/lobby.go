package lobby

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/stop-backend/internal/engine"
)

var ErrRoomClosed = errors.New("room closed")
var ErrDuplicateName = errors.New("name already in room")
var ErrNotMember = errors.New("player not in room")
var ErrRoundInProgress = errors.New("round already in progress")
var ErrNoRound = errors.New("no round in progress")
var ErrAlreadyStopping = errors.New("round already stopping")
var ErrStopNotAllowed = errors.New("stop not available yet")
var ErrNotAnswering = errors.New("answers are closed")
var ErrNotVoting = errors.New("no vote in progress")
var ErrUnknownAnswer = errors.New("answer is not up for vote")

type Msg interface{ isRoomMsg() }

type Join struct {
	Name  string
	Conn  Conn
	Reply chan JoinResult
}

type JoinResult struct {
	Player PlayerID
	Err    error
}

func (Join) isRoomMsg() {}

type RemovePlayer struct {
	Player PlayerID
	Reason engine.Reason
	Reply  chan error
}

func (RemovePlayer) isRoomMsg() {}

type StartRound struct{ Reply chan error }

func (StartRound) isRoomMsg() {}

type StopRound struct {
	Requester PlayerID
	Reply     chan error
}

func (StopRound) isRoomMsg() {}

type ChangeAnswer struct {
	Player   PlayerID
	Category string
	Answer   string
	Reply    chan error
}

func (ChangeAnswer) isRoomMsg() {}

type ChangeAnswerVote struct {
	Player   PlayerID
	Answer   string
	Accepted bool
	Reply    chan error
}

func (ChangeAnswerVote) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// View is a copy of the room state, safe to hand out of the loop.
type View struct {
	ID          string
	Phase       engine.Phase
	Players     []string
	Categories  []string
	Letter      string
	StopAllowed bool
}

type Timings struct {
	StartDelay     time.Duration // "round-starting" -> "round-started"
	PerCategory    time.Duration // round length = categories * PerCategory
	StopGrace      time.Duration // "round-stopping" -> first vote
	VoteDuration   time.Duration // per category
	EmptyRoomGrace time.Duration // close an empty room after this
}

func DefaultTimings() Timings {
	return Timings{
		StartDelay:     3 * time.Second,
		PerCategory:    15 * time.Second,
		StopGrace:      2 * time.Second,
		VoteDuration:   15 * time.Second,
		EmptyRoomGrace: time.Minute,
	}
}

// withDefaults fills the durations a room cannot run without. A zero Timings
// means all defaults.
func (t Timings) withDefaults() Timings {
	def := DefaultTimings()
	if t == (Timings{}) {
		return def
	}
	if t.PerCategory <= 0 {
		t.PerCategory = def.PerCategory
	}
	if t.VoteDuration <= 0 {
		t.VoteDuration = def.VoteDuration
	}
	if t.EmptyRoomGrace <= 0 {
		t.EmptyRoomGrace = def.EmptyRoomGrace
	}
	return t
}

type Settings struct {
	ID         string
	Password   string
	Letters    []string
	Categories []string
}

type Options struct {
	Timings  Timings
	Logger   *zap.Logger
	Recorder Recorder
	// OnClose runs on the room goroutine once the room is closed.
	OnClose      func(id string)
	PasswordCost int
}

type Room struct {
	id           string
	passwordHash []byte
	letters      []string
	categories   []string
	timings      Timings
	log          *zap.Logger
	recorder     Recorder
	onClose      func(id string)

	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the loop goroutine.
	phase       engine.Phase
	players     []*Player
	lastID      PlayerID
	letter      string
	stopAllowed bool
	timers      map[timerKind]armedTimer
	timerSeq    uint64
	voting      *voteCycle
	votingDone  <-chan map[*Player]int
}

func NewRoom(parent context.Context, s Settings, opts Options) (*Room, error) {
	letters, err := engine.NormalizeLetters(s.Letters)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateCategories(s.Categories); err != nil {
		return nil, err
	}

	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash room password: %w", err)
	}

	opts.Timings = opts.Timings.withDefaults()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		id:           s.ID,
		passwordHash: hash,
		letters:      letters,
		categories:   slices.Clone(s.Categories),
		timings:      opts.Timings,
		log:          log.With(zap.String("room_id", s.ID)),
		recorder:     opts.Recorder,
		onClose:      opts.OnClose,
		inbox:        make(chan Msg, 64),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		phase:        engine.PhaseLobby,
		timers:       make(map[timerKind]armedTimer),
	}

	// Nobody may ever join a fresh room; treat it like one that emptied.
	r.arm(timerEmptyRoom, r.timings.EmptyRoomGrace)

	go r.loop()
	return r, nil
}

func (r *Room) loop() {
	defer close(r.done)
	for r.phase != engine.PhaseClosed {
		select {
		case <-r.ctx.Done():
			r.teardown()

		case scores := <-r.votingDone:
			// One-shot: drop the channel before acting on it.
			r.votingDone = nil
			r.finishVoting(scores)

		case m := <-r.inbox:
			r.handle(m)
		}
	}
}

func (r *Room) handle(m Msg) {
	switch msg := m.(type) {
	case Join:
		id, err := r.join(msg.Name, msg.Conn)
		reply(msg.Reply, JoinResult{Player: id, Err: err})

	case RemovePlayer:
		reply(msg.Reply, r.removePlayer(msg.Player, msg.Reason))

	case StartRound:
		reply(msg.Reply, r.startRound())

	case StopRound:
		reply(msg.Reply, r.stopRound(msg.Requester))

	case ChangeAnswer:
		reply(msg.Reply, r.changeAnswer(msg.Player, msg.Category, msg.Answer))

	case ChangeAnswerVote:
		reply(msg.Reply, r.changeAnswerVote(msg.Player, msg.Answer, msg.Accepted))

	case GetState:
		reply(msg.Reply, r.view())

	case Shutdown:
		r.teardown()

	case timerFired:
		r.fire(msg)

	case voteTick:
		if msg.cycle == r.voting {
			msg.cycle.tick()
		}

	default:
		panic(fmt.Sprintf("lobby: unexpected message %T", m))
	}
}

func reply[T any](ch chan T, v T) {
	if ch != nil {
		ch <- v
	}
}

// post is used by timers and the vote cadence. It never blocks once the room
// is gone.
func (r *Room) post(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.done:
	}
}

func (r *Room) send(ctx context.Context, m Msg) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, r *Room, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-r.done:
		// The reply may have been written just before the room closed.
		select {
		case v := <-ch:
			return v, nil
		default:
			return zero, ErrRoomClosed
		}
	}
}

func (r *Room) call(ctx context.Context, m Msg, ch chan error) error {
	if err := r.send(ctx, m); err != nil {
		return err
	}
	err, waitErr := await(ctx, r, ch)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (r *Room) ID() string { return r.id }

// CheckPassword compares against the hash taken at construction; it does not
// go through the loop.
func (r *Room) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)) == nil
}

// Done is closed once the room reached its terminal phase.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Join(ctx context.Context, name string, conn Conn) (PlayerID, error) {
	ch := make(chan JoinResult, 1)
	if err := r.send(ctx, Join{Name: name, Conn: conn, Reply: ch}); err != nil {
		return 0, err
	}
	res, err := await(ctx, r, ch)
	if err != nil {
		return 0, err
	}
	return res.Player, res.Err
}

func (r *Room) RemovePlayer(ctx context.Context, id PlayerID, reason engine.Reason) error {
	ch := make(chan error, 1)
	return r.call(ctx, RemovePlayer{Player: id, Reason: reason, Reply: ch}, ch)
}

func (r *Room) StartRound(ctx context.Context) error {
	ch := make(chan error, 1)
	return r.call(ctx, StartRound{Reply: ch}, ch)
}

// StopRound ends the answering period. Pass NoRequester for a stop that no
// player asked for; a player's stop needs the stop-available window.
func (r *Room) StopRound(ctx context.Context, requester PlayerID) error {
	ch := make(chan error, 1)
	return r.call(ctx, StopRound{Requester: requester, Reply: ch}, ch)
}

func (r *Room) ChangeAnswer(ctx context.Context, id PlayerID, category, answer string) error {
	ch := make(chan error, 1)
	return r.call(ctx, ChangeAnswer{Player: id, Category: category, Answer: answer, Reply: ch}, ch)
}

func (r *Room) ChangeAnswerVote(ctx context.Context, id PlayerID, answer string, accepted bool) error {
	ch := make(chan error, 1)
	return r.call(ctx, ChangeAnswerVote{Player: id, Answer: answer, Accepted: accepted, Reply: ch}, ch)
}

func (r *Room) State(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	if err := r.send(ctx, GetState{Reply: ch}); err != nil {
		return View{}, err
	}
	return await(ctx, r, ch)
}

// Close tears the room down as if it had been closed from the inside.
func (r *Room) Close() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
	}
}
