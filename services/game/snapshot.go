package game

import "slices"

type MemberState struct {
	Username  string `json:"username"`
	Team      string `json:"team,omitempty"`
	Character string `json:"character,omitempty"`
	Health    int    `json:"health"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	Left      bool   `json:"left"`
}

type TurnState struct {
	Number        int    `json:"turn"`
	CurrentPlayer string `json:"current_player"`
	NextPlayer    string `json:"next_player"`
	Team          string `json:"team"`
	StartTime     int64  `json:"start_time"`
	Duration      int    `json:"duration"`
	Deadline      int64  `json:"deadline"`
}

// Snapshot is a self-contained copy of a room, enough for a participant to
// rebuild its view after missing events.
type Snapshot struct {
	RoomCode string         `json:"room_code"`
	Owner    string         `json:"owner"`
	Status   Status         `json:"status"`
	Turn     int            `json:"turn"`
	Members  []MemberState  `json:"members"`
	Team1    []string       `json:"team1"`
	Team2    []string       `json:"team2"`
	Health   map[string]int `json:"health"`
	Current  *TurnState     `json:"current_turn,omitempty"`
	Winner   string         `json:"winner,omitempty"`
	Log      []LogEntry     `json:"log"`
}

func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		RoomCode: r.code,
		Owner:    r.owner,
		Status:   r.status,
		Turn:     r.turnSeq,
		Members:  make([]MemberState, 0, len(r.order)),
		Team1:    slices.Clone(r.teams[team1]),
		Team2:    slices.Clone(r.teams[team2]),
		Health:   r.healthCopy(),
		Winner:   string(r.winner),
		Log:      slices.Clone(r.log),
	}
	if s.Team1 == nil {
		s.Team1 = []string{}
	}
	if s.Team2 == nil {
		s.Team2 = []string{}
	}
	if s.Log == nil {
		s.Log = []LogEntry{}
	}

	for _, id := range r.order {
		m := r.members[id]
		ms := MemberState{
			Username:  id,
			Character: m.Character.Name,
			Health:    r.health[id],
			Ready:     m.Ready,
			Connected: m.Connected,
			Left:      m.Left,
		}
		if m.Team >= 0 {
			ms.Team = teamNames[m.Team]
		}
		s.Members = append(s.Members, ms)
	}

	if r.status == StatusActive && r.turn != nil && !r.turn.resolved {
		next, _ := r.peek(1 - r.turn.Team)
		s.Current = &TurnState{
			Number:        r.turn.Seq,
			CurrentPlayer: r.turn.Owner,
			NextPlayer:    next,
			Team:          teamNames[r.turn.Team],
			StartTime:     r.turn.StartUnixMilli,
			Duration:      int(r.turn.Duration.Seconds()),
			Deadline:      r.turn.StartUnixMilli + r.turn.Duration.Milliseconds(),
		}
	}
	return s
}
