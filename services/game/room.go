package game

import (
	"slices"
	"sync"
	"time"

	game_constants "Forest/constants/game"
	"Forest/services/clock"
	"Forest/services/combat"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusValidating Status = "validating"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
)

const (
	team1 = 0
	team2 = 1
)

var teamNames = [2]string{game_constants.TEAM_1, game_constants.TEAM_2}

// ParseTeam maps a client team name onto a team index.
func ParseTeam(name string) (int, error) {
	switch name {
	case game_constants.TEAM_1, game_constants.GROUP_1:
		return team1, nil
	case game_constants.TEAM_2, game_constants.GROUP_2:
		return team2, nil
	}
	return 0, ErrUnknownTeam
}

// Character is the participant's pick for the match: its name and the
// abilities in its six slots.
type Character struct {
	Name      string   `json:"name"`
	Abilities []string `json:"abilities"`
}

type Member struct {
	ID        string
	PublicKey string
	Character Character
	Team      int // -1 until a team is picked
	Ready     bool
	Connected bool
	Left      bool

	removal    clock.Timer
	removalGen int
}

type Turn struct {
	Seq            int
	Owner          string
	Team           int
	StartedAt      time.Time
	StartUnixMilli int64
	Duration       time.Duration

	timer    clock.Timer
	resolved bool
}

type LogEntry struct {
	ID      string    `json:"id"`
	Turn    int       `json:"turn"`
	Kind    string    `json:"kind"`
	Actor   string    `json:"actor,omitempty"`
	Target  string    `json:"target,omitempty"`
	Message string    `json:"message"`
	Effect  string    `json:"effect,omitempty"`
	At      time.Time `json:"at"`
}

// Room is one match. Every field is guarded by mu.
type Room struct {
	mu sync.Mutex

	code   string
	owner  string
	status Status
	closed bool

	members map[string]*Member
	order   []string
	teams   [2][]string
	health  map[string]int

	acks          map[string]bool
	validation    clock.Timer
	validationGen int

	// lineup is the team order frozen at match start; cursor is the next
	// index to consider in each lineup.
	lineup   [2][]string
	cursor   [2]int
	starters int
	turnSeq  int
	resolved int
	turn     *Turn
	winner   combat.Outcome

	log []LogEntry
}

func newRoom(code, owner string) *Room {
	return &Room{
		code:    code,
		owner:   owner,
		status:  StatusWaiting,
		members: make(map[string]*Member),
		health:  make(map[string]int),
		acks:    make(map[string]bool),
	}
}

func (r *Room) addMember(id, publicKey string) *Member {
	m := &Member{ID: id, PublicKey: publicKey, Team: -1, Connected: true}
	r.members[id] = m
	r.order = append(r.order, id)
	return m
}

// removeMember drops id from every pre-match structure.
func (r *Room) removeMember(id string) {
	if m, ok := r.members[id]; ok && m.removal != nil {
		m.removal.Stop()
	}
	delete(r.members, id)
	delete(r.acks, id)
	delete(r.health, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.removeFromTeams(id)

	if r.owner == id && len(r.order) > 0 {
		r.owner = r.order[0]
	}
}

func (r *Room) removeFromTeams(id string) {
	for t := range r.teams {
		r.teams[t] = slices.DeleteFunc(r.teams[t], func(s string) bool { return s == id })
	}
}

func (r *Room) players() []string {
	return slices.Clone(r.order)
}

func (r *Room) appendLog(kind, actor, target, message, effect string, at time.Time) {
	r.log = append(r.log, LogEntry{
		ID:      uuid.NewString(),
		Turn:    r.turnSeq,
		Kind:    kind,
		Actor:   actor,
		Target:  target,
		Message: message,
		Effect:  effect,
		At:      at,
	})
}

// peek returns the next living member of team without moving the cursor.
func (r *Room) peek(team int) (string, int) {
	line := r.lineup[team]
	for i := 0; i < len(line); i++ {
		idx := (r.cursor[team] + i) % len(line)
		if r.health[line[idx]] > 0 {
			return line[idx], idx
		}
	}
	return "", -1
}

// take returns the next living member of team and advances its cursor past them.
func (r *Room) take(team int) string {
	id, idx := r.peek(team)
	if idx >= 0 {
		r.cursor[team] = (idx + 1) % len(r.lineup[team])
	}
	return id
}

func (r *Room) healthCopy() map[string]int {
	out := make(map[string]int, len(r.health))
	for k, v := range r.health {
		out[k] = v
	}
	return out
}

func (r *Room) teamHealth(team int) []int {
	hs := make([]int, 0, len(r.lineup[team]))
	for _, id := range r.lineup[team] {
		hs = append(hs, r.health[id])
	}
	return hs
}

// teamOf reports which lineup id plays in, or -1.
func (r *Room) teamOf(id string) int {
	for t := range r.lineup {
		if slices.Contains(r.lineup[t], id) {
			return t
		}
	}
	return -1
}

// resolveTarget finds the targeted participant. A character name alone is
// only accepted when it is unique among the lineups.
func (r *Room) resolveTarget(participant, character string) (string, error) {
	if participant != "" {
		if r.teamOf(participant) < 0 {
			return "", ErrUnknownTarget
		}
		if m := r.members[participant]; character != "" && (m == nil || m.Character.Name != character) {
			return "", ErrTargetMismatch
		}
		return participant, nil
	}
	if character == "" {
		return "", ErrUnknownTarget
	}

	found := ""
	for _, t := range r.lineup {
		for _, id := range t {
			if m, ok := r.members[id]; ok && m.Character.Name == character {
				if found != "" {
					return "", ErrAmbiguousTarget
				}
				found = id
			}
		}
	}
	if found == "" {
		return "", ErrUnknownTarget
	}
	return found, nil
}

func (r *Room) readyToValidate() bool {
	if len(r.members) < game_constants.MinPlayers {
		return false
	}
	if len(r.teams[team1]) == 0 || len(r.teams[team2]) == 0 {
		return false
	}
	for _, m := range r.members {
		if !m.Ready || m.Team < 0 {
			return false
		}
	}
	return true
}

func (r *Room) stopTimers() {
	if r.validation != nil {
		r.validation.Stop()
		r.validation = nil
	}
	if r.turn != nil && r.turn.timer != nil {
		r.turn.timer.Stop()
	}
	for _, m := range r.members {
		if m.removal != nil {
			m.removal.Stop()
			m.removal = nil
		}
	}
}

func (r *Room) anyConnected() bool {
	for _, m := range r.members {
		if m.Connected && !m.Left {
			return true
		}
	}
	return false
}

func (r *Room) allLeft() bool {
	for _, m := range r.members {
		if !m.Left {
			return false
		}
	}
	return true
}
