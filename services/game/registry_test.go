package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Forest/services/clock"
	"Forest/services/combat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorded struct {
	Room    string
	To      string
	Event   string
	Payload any
}

type recorder struct {
	mu           sync.Mutex
	events       []recorded
	unsubscribed []string
	torn         []string
}

func (r *recorder) Broadcast(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{Room: room, Event: event, Payload: payload})
}

func (r *recorder) Send(room, participant, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{Room: room, To: participant, Event: event, Payload: payload})
}

func (r *recorder) Unsubscribe(room, participant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribed = append(r.unsubscribed, participant)
}

func (r *recorder) Teardown(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.torn = append(r.torn, room)
}

func (r *recorder) named(event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (r *recorder) turnOwners() []string {
	var owners []string
	for _, p := range r.named(EventTurnStarted) {
		owners = append(owners, p.(TurnStartedEvent).CurrentPlayer)
	}
	return owners
}

type abilityTable map[string]combat.Ability

func (t abilityTable) Lookup(_ context.Context, name string) (combat.Ability, bool, error) {
	a, ok := t[name]
	return a, ok, nil
}

var testAbilities = abilityTable{
	"Fireball": {Name: "Fireball", Kind: combat.Attack, Narrative: "[player2] burns [player1]", Dice: combat.Spec{Count: 2, Sides: 6}},
	"Mend":     {Name: "Mend", Kind: combat.Heal, Narrative: "[player2] mends [player1]", Dice: combat.Spec{Count: 1, Sides: 8}},
	"Smite":    {Name: "Smite", Kind: combat.Attack, Dice: combat.Spec{Count: 1, Sides: 4}},
}

var loadout = []string{"Fireball", "Mend"}

type fixture struct {
	reg   *Registry
	clock *clock.Fake
	rec   *recorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{clock: clock.NewFake(time.Unix(1_700_000_000, 0)), rec: &recorder{}}
	opts.Clock = f.clock
	opts.Notifier = f.rec
	opts.Logger = zaptest.NewLogger(t)
	f.reg = NewRegistry(testAbilities, opts)
	t.Cleanup(f.reg.Shutdown)
	return f
}

// lobby creates a room owned by the first team1 member and seats everyone.
func (f *fixture) lobby(t *testing.T, t1, t2 []string) string {
	t.Helper()
	code, err := f.reg.CreateRoom(t1[0], "")
	require.NoError(t, err)

	for _, p := range append(append([]string{}, t1...), t2...) {
		_, err := f.reg.JoinRoom(code, p, "")
		require.NoError(t, err)
	}
	for _, p := range t1 {
		require.NoError(t, f.reg.AssignTeam(code, p, Character{Name: "char-" + p, Abilities: loadout}, "team1"))
	}
	for _, p := range t2 {
		require.NoError(t, f.reg.AssignTeam(code, p, Character{Name: "char-" + p, Abilities: loadout}, "team2"))
	}
	return code
}

// start seats everyone, readies them and acknowledges the connection check.
func (f *fixture) start(t *testing.T, t1, t2 []string) string {
	t.Helper()
	code := f.lobby(t, t1, t2)
	all := append(append([]string{}, t1...), t2...)
	for _, p := range all {
		require.NoError(t, f.reg.SetReady(code, p, true))
	}
	for _, p := range all {
		require.NoError(t, f.reg.AcknowledgeValidation(code, p))
	}
	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	require.Equal(t, StatusActive, state.Status)
	return code
}

func (f *fixture) room(t *testing.T, code string) *Room {
	t.Helper()
	f.reg.mu.RLock()
	defer f.reg.mu.RUnlock()
	room, ok := f.reg.rooms[code]
	require.True(t, ok)
	return room
}

func TestCreateRoomRegeneratesOnCollision(t *testing.T) {
	codes := []string{"AAAA", "AAAA", "BBBB"}
	i := 0
	f := newFixture(t, Options{NewCode: func() string { c := codes[i]; i++; return c }})

	first, err := f.reg.CreateRoom("alice", "")
	require.NoError(t, err)
	second, err := f.reg.CreateRoom("bob", "")
	require.NoError(t, err)

	assert.Equal(t, "AAAA", first)
	assert.Equal(t, "BBBB", second)
	assert.Equal(t, 2, f.reg.Rooms())
}

func TestGeneratedRoomCodes(t *testing.T) {
	code := generateRoomCode(4)
	assert.Len(t, code, 4)
	for _, c := range code {
		assert.Contains(t, charset, string(c))
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	code, err := f.reg.CreateRoom("alice", "")
	require.NoError(t, err)

	_, err = f.reg.JoinRoom(code, "bob", "key-1")
	require.NoError(t, err)
	state, err := f.reg.JoinRoom(code, "bob", "key-2")
	require.NoError(t, err)

	assert.Len(t, state.Members, 2)
	assert.Len(t, f.rec.named(EventNewPlayer), 1)

	m, err := f.reg.Member(code, "bob")
	require.NoError(t, err)
	assert.Equal(t, "key-2", m.PublicKey)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.reg.JoinRoom("nope", "bob", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoiningAnotherRoomLeavesThePreviousOne(t *testing.T) {
	f := newFixture(t, Options{})
	first, err := f.reg.CreateRoom("alice", "")
	require.NoError(t, err)
	_, err = f.reg.JoinRoom(first, "bob", "")
	require.NoError(t, err)

	second, err := f.reg.CreateRoom("bob", "")
	require.NoError(t, err)

	state, err := f.reg.GetState(first)
	require.NoError(t, err)
	assert.Len(t, state.Members, 1)

	code, ok := f.reg.RoomOf("bob")
	require.True(t, ok)
	assert.Equal(t, second, code)
}

func TestNewMembersRejectedOnceStarted(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.start(t, []string{"A"}, []string{"C"})

	_, err := f.reg.JoinRoom(code, "late", "")
	assert.ErrorIs(t, err, ErrMatchStarted)
}

func TestAssignTeamMovesBetweenTeams(t *testing.T) {
	f := newFixture(t, Options{})
	code, err := f.reg.CreateRoom("alice", "")
	require.NoError(t, err)

	require.NoError(t, f.reg.AssignTeam(code, "alice", Character{Name: "Rowan"}, "team1"))
	require.NoError(t, f.reg.AssignTeam(code, "alice", Character{Name: "Rowan"}, "group2"))

	t1, err := f.reg.Team(code, "team1")
	require.NoError(t, err)
	t2, err := f.reg.Team(code, "team2")
	require.NoError(t, err)
	assert.Empty(t, t1)
	assert.Equal(t, []string{"alice"}, t2)

	assert.ErrorIs(t, f.reg.AssignTeam(code, "alice", Character{Name: "Rowan"}, "team3"), ErrUnknownTeam)
	assert.ErrorIs(t, f.reg.AssignTeam(code, "alice", Character{}, "team1"), ErrNoCharacter)
	assert.ErrorIs(t, f.reg.AssignTeam(code, "ghost", Character{Name: "x"}, "team1"), ErrNotMember)
}

func TestReadyRequiresTeam(t *testing.T) {
	f := newFixture(t, Options{})
	code, err := f.reg.CreateRoom("alice", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.reg.SetReady(code, "alice", true), ErrNoTeam)
}

func TestValidationStartsMatch(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A", "B"}, []string{"C", "D"})

	for _, p := range []string{"A", "B", "C"} {
		require.NoError(t, f.reg.SetReady(code, p, true))
	}
	assert.Empty(t, f.rec.named(EventValidateConnection))

	require.NoError(t, f.reg.SetReady(code, "D", true))
	checks := f.rec.named(EventValidateConnection)
	require.Len(t, checks, 1)
	assert.Equal(t, ValidateConnectionEvent{RoomCode: code, Timeout: 10}, checks[0])

	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, StatusValidating, state.Status)

	for _, p := range []string{"A", "B", "C", "D"} {
		require.NoError(t, f.reg.AcknowledgeValidation(code, p))
	}

	state, err = f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, state.Status)
	require.NotNil(t, state.Current)
	assert.Equal(t, "A", state.Current.CurrentPlayer)
	assert.Equal(t, "C", state.Current.NextPlayer)
	assert.Equal(t, 60, state.Current.Duration)
	assert.Equal(t, state.Current.StartTime+60_000, state.Current.Deadline)
	for _, h := range state.Health {
		assert.Equal(t, 50, h)
	}
	assert.Len(t, f.rec.named(EventGameStarted), 1)

	// the validation timer was cancelled
	f.clock.Advance(15 * time.Second)
	assert.Empty(t, f.rec.named(EventGameStartFailed))
}

func TestValidationTimeoutRevertsToWaiting(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A"}, []string{"C"})
	require.NoError(t, f.reg.SetReady(code, "A", true))
	require.NoError(t, f.reg.SetReady(code, "C", true))
	require.NoError(t, f.reg.AcknowledgeValidation(code, "A"))

	f.clock.Advance(10 * time.Second)

	failed := f.rec.named(EventGameStartFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].(GameStartFailedEvent).Reason, "C")

	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, state.Status)
	for _, m := range state.Members {
		assert.False(t, m.Ready)
	}
	assert.ErrorIs(t, f.reg.AcknowledgeValidation(code, "C"), ErrNotValidating)

	// everyone can try again
	require.NoError(t, f.reg.SetReady(code, "A", true))
	require.NoError(t, f.reg.SetReady(code, "C", true))
	assert.Len(t, f.rec.named(EventValidateConnection), 2)
}

func TestUnreadyDuringValidationAborts(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A"}, []string{"C"})
	require.NoError(t, f.reg.SetReady(code, "A", true))
	require.NoError(t, f.reg.SetReady(code, "C", true))

	require.NoError(t, f.reg.SetReady(code, "C", false))

	failed := f.rec.named(EventGameStartFailed)
	require.Len(t, failed, 1)
	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, state.Status)

	// the stale validation timer must not fire a second failure
	f.clock.Advance(time.Minute)
	assert.Len(t, f.rec.named(EventGameStartFailed), 1)
}

func TestSingleTeamDoesNotValidate(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A", "B"}, nil)
	require.NoError(t, f.reg.SetReady(code, "A", true))
	require.NoError(t, f.reg.SetReady(code, "B", true))

	assert.Empty(t, f.rec.named(EventValidateConnection))
}

func TestDisconnectBeforeReadyRemovesAfterGrace(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A"}, []string{"C"})

	require.NoError(t, f.reg.Disconnect(code, "C"))
	f.clock.Advance(5 * time.Second)
	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, state.Team2)

	f.clock.Advance(5 * time.Second)
	state, err = f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, state.Team1)
	assert.Empty(t, state.Team2)
	assert.NotContains(t, state.Health, "C")
	for _, m := range state.Members {
		assert.NotEqual(t, "C", m.Username)
	}
	_, ok := f.reg.RoomOf("C")
	assert.False(t, ok)
}

func TestRejoinCancelsDisconnectRemoval(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A"}, []string{"C"})

	require.NoError(t, f.reg.Disconnect(code, "C"))
	_, err := f.reg.JoinRoom(code, "C", "")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, state.Team2)
}

func TestDisconnectMidMatchKeepsTurns(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.start(t, []string{"A"}, []string{"C"})

	require.NoError(t, f.reg.Disconnect(code, "C"))
	require.NoError(t, f.reg.SkipTurn(code, "A", 0))

	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	require.NotNil(t, state.Current)
	assert.Equal(t, "C", state.Current.CurrentPlayer)

	// C never answers; the turn expires and play continues
	f.clock.Advance(60 * time.Second)
	state, err = f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, "A", state.Current.CurrentPlayer)
}

func TestLeaveBeforeStartRemovesAndTearsDown(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A"}, []string{"C"})

	require.NoError(t, f.reg.LeaveRoom(code, "A"))
	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, "C", state.Owner)
	assert.Empty(t, state.Team1)

	require.NoError(t, f.reg.LeaveRoom(code, "C"))
	_, err = f.reg.GetState(code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, []string{code}, f.rec.torn)
	assert.Zero(t, f.reg.Rooms())
}

func TestLeaveDuringValidationAborts(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.lobby(t, []string{"A", "B"}, []string{"C"})
	for _, p := range []string{"A", "B", "C"} {
		require.NoError(t, f.reg.SetReady(code, p, true))
	}

	require.NoError(t, f.reg.LeaveRoom(code, "B"))
	assert.Len(t, f.rec.named(EventGameStartFailed), 1)
}

func TestLeaveMidMatchOnlyMarks(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.start(t, []string{"A"}, []string{"C"})

	require.NoError(t, f.reg.LeaveRoom(code, "C"))
	state, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, state.Team2)
	for _, m := range state.Members {
		if m.Username == "C" {
			assert.True(t, m.Left)
		}
	}

	require.NoError(t, f.reg.LeaveRoom(code, "A"))
	_, err = f.reg.GetState(code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGetStateIsRepeatable(t *testing.T) {
	f := newFixture(t, Options{})
	code := f.start(t, []string{"A", "B"}, []string{"C"})

	first, err := f.reg.GetState(code)
	require.NoError(t, err)
	second, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// mutating a snapshot never leaks into the room
	first.Health["A"] = 1
	first.Team1[0] = "X"
	third, err := f.reg.GetState(code)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestPublicReason(t *testing.T) {
	assert.Equal(t, "not your turn", PublicReason(ErrNotYourTurn))
	assert.Equal(t, "roll outside the ability's dice range",
		PublicReason(errors.Join(errors.New("ctx"), ErrInvalidRoll)))
	assert.Equal(t, "internal server error", PublicReason(errors.New("db down")))
}
