// Package game owns match state: rooms, membership, teams, the connection
// check before a match, and the turn cycle. All state of a room is guarded
// by that room's own lock; timer callbacks take the same lock.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	game_constants "Forest/constants/game"
	"Forest/services/clock"
	"Forest/services/combat"

	"go.uber.org/zap"
)

// AbilitySource resolves ability names against the catalog.
type AbilitySource interface {
	Lookup(ctx context.Context, name string) (combat.Ability, bool, error)
}

type Options struct {
	TurnDuration      time.Duration
	ValidationTimeout time.Duration
	DisconnectGrace   time.Duration
	// RoundLimit is the number of turns per starting participant after which
	// the match is decided on remaining health. Zero disables it.
	RoundLimit int

	Clock    clock.Clock
	Logger   *zap.Logger
	Notifier Notifier
	// NewCode generates candidate room codes; collisions are retried.
	NewCode func() string
}

func (o *Options) withDefaults() {
	if o.TurnDuration <= 0 {
		o.TurnDuration = game_constants.TurnDuration
	}
	if o.ValidationTimeout <= 0 {
		o.ValidationTimeout = game_constants.ValidationTimeout
	}
	if o.DisconnectGrace <= 0 {
		o.DisconnectGrace = game_constants.DisconnectGrace
	}
	if o.RoundLimit < 0 {
		o.RoundLimit = 0
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.NewCode == nil {
		o.NewCode = func() string { return generateRoomCode(game_constants.RoomCodeLength) }
	}
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateRoomCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}

// Registry holds every live room.
//
// Lock order: a room's lock may be held while taking Registry.mu, never the
// other way around.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	// where maps a participant to the room they currently belong to.
	where map[string]string

	abilities AbilitySource
	opts      Options
	clock     clock.Clock
	notifier  Notifier
	logger    *zap.Logger
}

func NewRegistry(abilities AbilitySource, opts Options) *Registry {
	opts.withDefaults()
	return &Registry{
		rooms:     make(map[string]*Room),
		where:     make(map[string]string),
		abilities: abilities,
		opts:      opts,
		clock:     opts.Clock,
		notifier:  opts.Notifier,
		logger:    opts.Logger.Named("rooms"),
	}
}

// lock returns the room for code with its lock held.
func (g *Registry) lock(code string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.rooms[code]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RoomOf returns the code of the room participant currently belongs to.
func (g *Registry) RoomOf(participant string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	code, ok := g.where[participant]
	return code, ok
}

// leaveOthers removes participant from any room other than keep.
func (g *Registry) leaveOthers(participant, keep string) {
	code, ok := g.RoomOf(participant)
	if !ok || code == keep {
		return
	}
	g.logger.Info("[ROOM] moving player out of previous room",
		zap.String("player", participant), zap.String("room", code))
	if err := g.LeaveRoom(code, participant); err != nil {
		g.logger.Debug("[ROOM] previous room cleanup", zap.Error(err))
	}
}

// CreateRoom opens a room owned by owner and joins them to it.
func (g *Registry) CreateRoom(owner, publicKey string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("create room: empty owner")
	}
	g.leaveOthers(owner, "")

	g.mu.Lock()
	defer g.mu.Unlock()

	code := g.opts.NewCode()
	for g.rooms[code] != nil {
		code = g.opts.NewCode()
	}

	room := newRoom(code, owner)
	room.addMember(owner, publicKey)
	room.appendLog("join", owner, "", fmt.Sprintf("%s created the room", owner), "", g.clock.Now())
	g.rooms[code] = room
	g.where[owner] = code

	g.logger.Info("[ROOM] created", zap.String("room", code), zap.String("owner", owner))
	return code, nil
}

// JoinRoom adds participant to the room. Joining a room one already belongs
// to refreshes the connection and cancels a pending disconnect removal.
func (g *Registry) JoinRoom(code, participant, publicKey string) (Snapshot, error) {
	g.leaveOthers(participant, code)

	room, err := g.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer room.mu.Unlock()

	now := g.clock.Now()
	if m, ok := room.members[participant]; ok {
		if publicKey != "" {
			m.PublicKey = publicKey
		}
		m.Connected = true
		m.Left = false
		if m.removal != nil {
			m.removal.Stop()
			m.removal = nil
		}
		m.removalGen++
		g.track(participant, code)
		g.logger.Info("[JOIN] player reconnected", zap.String("room", code), zap.String("player", participant))
		return room.snapshot(), nil
	}

	if room.status != StatusWaiting {
		return Snapshot{}, ErrMatchStarted
	}

	room.addMember(participant, publicKey)
	room.appendLog("join", participant, "", fmt.Sprintf("%s joined the room", participant), "", now)
	g.track(participant, code)

	g.logger.Info("[JOIN] player joined", zap.String("room", code), zap.String("player", participant))
	g.notifier.Broadcast(code, EventNewPlayer, PlayerEvent{RoomCode: code, Username: participant, Players: room.players()})
	return room.snapshot(), nil
}

// LeaveRoom removes participant before the match starts. Once it is
// underway the participant is only marked as gone and keeps their turns.
func (g *Registry) LeaveRoom(code, participant string) error {
	room, err := g.lock(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m, ok := room.members[participant]
	if !ok {
		return ErrNotMember
	}

	now := g.clock.Now()
	room.appendLog("leave", participant, "", fmt.Sprintf("%s left the room", participant), "", now)
	g.untrack(participant, code)
	g.notifier.Unsubscribe(code, participant)

	switch room.status {
	case StatusActive:
		m.Left = true
		m.Connected = false
		g.logger.Info("[LEAVE] player left during match", zap.String("room", code), zap.String("player", participant))
		g.notifier.Broadcast(code, EventPlayerLeft, PlayerEvent{RoomCode: code, Username: participant, Players: room.players()})
		if room.allLeft() {
			g.teardownLocked(room)
		}
		return nil

	default:
		g.removeLocked(room, participant, fmt.Sprintf("%s left the room", participant))
		return nil
	}
}

// removeLocked fully removes a member and tears the room down when empty.
func (g *Registry) removeLocked(room *Room, participant, reason string) {
	wasValidating := room.status == StatusValidating
	room.removeMember(participant)

	g.logger.Info("[LEAVE] player removed", zap.String("room", room.code), zap.String("player", participant))
	if len(room.members) == 0 {
		g.teardownLocked(room)
		return
	}

	g.notifier.Broadcast(room.code, EventPlayerLeft, PlayerEvent{RoomCode: room.code, Username: participant, Players: room.players()})
	if wasValidating {
		g.abortValidationLocked(room, reason)
		return
	}
	if room.status == StatusWaiting {
		g.maybeValidateLocked(room)
	}
}

// Disconnect records a lost transport session. Before the match the member is
// removed after the grace period unless they rejoin first.
func (g *Registry) Disconnect(code, participant string) error {
	room, err := g.lock(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m, ok := room.members[participant]
	if !ok {
		return ErrNotMember
	}
	m.Connected = false
	g.notifier.Unsubscribe(code, participant)

	if room.status == StatusActive || room.status == StatusEnded {
		room.appendLog("disconnect", participant, "", fmt.Sprintf("%s disconnected", participant), "", g.clock.Now())
		g.logger.Info("[DISCONNECT] player disconnected mid-match", zap.String("room", code), zap.String("player", participant))
		// nobody is left to read the result
		if room.status == StatusEnded && !room.anyConnected() {
			g.teardownLocked(room)
		}
		return nil
	}

	if m.removal != nil {
		m.removal.Stop()
	}
	m.removalGen++
	gen := m.removalGen
	m.removal = g.clock.AfterFunc(g.opts.DisconnectGrace, func() {
		g.removeAfterGrace(room, participant, gen)
	})
	g.logger.Info("[DISCONNECT] removal scheduled",
		zap.String("room", code), zap.String("player", participant), zap.Duration("grace", g.opts.DisconnectGrace))
	return nil
}

func (g *Registry) removeAfterGrace(room *Room, participant string, gen int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return
	}
	m, ok := room.members[participant]
	if !ok || m.Connected || m.removalGen != gen {
		return
	}
	if room.status != StatusWaiting && room.status != StatusValidating {
		return
	}

	m.removal = nil
	room.appendLog("leave", participant, "", fmt.Sprintf("%s timed out", participant), "", g.clock.Now())
	g.untrack(participant, room.code)
	g.removeLocked(room, participant, fmt.Sprintf("%s disconnected", participant))
}

// AssignTeam puts participant's character on team, leaving any other team.
func (g *Registry) AssignTeam(code, participant string, character Character, team string) error {
	t, err := ParseTeam(team)
	if err != nil {
		return err
	}
	if character.Name == "" {
		return ErrNoCharacter
	}

	room, err := g.lock(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m, ok := room.members[participant]
	if !ok {
		return ErrNotMember
	}
	if room.status != StatusWaiting {
		return ErrMatchStarted
	}

	room.removeFromTeams(participant)
	room.teams[t] = append(room.teams[t], participant)
	m.Team = t
	m.Character = Character{Name: character.Name, Abilities: append([]string(nil), character.Abilities...)}
	room.health[participant] = game_constants.MaxHealth

	room.appendLog("team", participant, "", fmt.Sprintf("%s joined %s as %s", participant, teamNames[t], character.Name), "", g.clock.Now())
	g.logger.Info("[TEAM] player assigned",
		zap.String("room", code), zap.String("player", participant), zap.String("team", teamNames[t]))
	g.notifier.Broadcast(code, EventGroupChange, GroupChangeEvent{
		RoomCode:  code,
		Username:  participant,
		Team:      teamNames[t],
		Character: character.Name,
		Team1:     append([]string{}, room.teams[team1]...),
		Team2:     append([]string{}, room.teams[team2]...),
	})
	return nil
}

// Team lists the participants on a team.
func (g *Registry) Team(code, team string) ([]string, error) {
	t, err := ParseTeam(team)
	if err != nil {
		return nil, err
	}
	room, err := g.lock(code)
	if err != nil {
		return nil, err
	}
	defer room.mu.Unlock()
	return append([]string{}, room.teams[t]...), nil
}

// GetState returns a reconciliation snapshot of the room.
func (g *Registry) GetState(code string) (Snapshot, error) {
	room, err := g.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer room.mu.Unlock()
	return room.snapshot(), nil
}

// Member returns a copy of a member's record.
func (g *Registry) Member(code, participant string) (Member, error) {
	room, err := g.lock(code)
	if err != nil {
		return Member{}, err
	}
	defer room.mu.Unlock()

	m, ok := room.members[participant]
	if !ok {
		return Member{}, ErrNotMember
	}
	out := *m
	out.removal = nil
	out.Character.Abilities = append([]string(nil), m.Character.Abilities...)
	return out, nil
}

// Rooms returns the number of live rooms.
func (g *Registry) Rooms() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

func (g *Registry) track(participant, code string) {
	g.mu.Lock()
	g.where[participant] = code
	g.mu.Unlock()
}

func (g *Registry) untrack(participant, code string) {
	g.mu.Lock()
	if g.where[participant] == code {
		delete(g.where, participant)
	}
	g.mu.Unlock()
}

func (g *Registry) teardownLocked(room *Room) {
	room.closed = true
	room.stopTimers()
	g.notifier.Teardown(room.code)

	g.mu.Lock()
	delete(g.rooms, room.code)
	for p, c := range g.where {
		if c == room.code {
			delete(g.where, p)
		}
	}
	g.mu.Unlock()

	g.logger.Info("[ROOM] torn down", zap.String("room", room.code))
}

// Shutdown stops every timer and releases every room.
func (g *Registry) Shutdown() {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	for _, room := range rooms {
		room.mu.Lock()
		if !room.closed {
			g.teardownLocked(room)
		}
		room.mu.Unlock()
	}
}
