package game

// Events sent to participants. Field names follow the deployed clients.
const (
	EventNewPlayer          = "new_player"
	EventPlayerLeft         = "player_left"
	EventGroupChange        = "group_change"
	EventPlayerReady        = "player_ready"
	EventPlayerUnready      = "player_unready"
	EventValidateConnection = "validate_connection"
	EventGameStarted        = "game_started"
	EventGameStartFailed    = "game_start_failed"
	EventTurnStarted        = "turn_started"
	EventTurnExpired        = "turn_expired"
	EventMoveMade           = "move_made"
	EventSkipMade           = "skip_made"
	EventGameEnded          = "game_ended"
	EventError              = "error"
)

// Notifier fans room events out to participants. Implementations must not
// block and must not call back into the Registry.
type Notifier interface {
	Broadcast(room, event string, payload any)
	Send(room, participant, event string, payload any)
	Unsubscribe(room, participant string)
	Teardown(room string)
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, string, any) {}
func (nopNotifier) Send(string, string, string, any) {}
func (nopNotifier) Unsubscribe(string, string) {}
func (nopNotifier) Teardown(string) {}

type PlayerEvent struct {
	RoomCode string   `json:"room_code"`
	Username string   `json:"username"`
	Players  []string `json:"players"`
}

type GroupChangeEvent struct {
	RoomCode  string   `json:"room_code"`
	Username  string   `json:"username"`
	Team      string   `json:"team"`
	Character string   `json:"character"`
	Team1     []string `json:"team1"`
	Team2     []string `json:"team2"`
}

type ValidateConnectionEvent struct {
	RoomCode string `json:"room_code"`
	Timeout  int    `json:"timeout"`
}

type GameStartedEvent struct {
	RoomCode string         `json:"room_code"`
	Team1    []string       `json:"team1"`
	Team2    []string       `json:"team2"`
	Health   map[string]int `json:"health"`
}

type GameStartFailedEvent struct {
	RoomCode string `json:"room_code"`
	Reason   string `json:"reason"`
}

type TurnStartedEvent struct {
	Turn          int    `json:"turn"`
	CurrentPlayer string `json:"current_player"`
	NextPlayer    string `json:"next_player"`
	Team          string `json:"team"`
	StartTime     int64  `json:"start_time"`
	Duration      int    `json:"duration"`
	Deadline      int64  `json:"deadline"`
}

type TurnExpiredEvent struct {
	Turn          int    `json:"turn"`
	CurrentPlayer string `json:"current_player"`
	NextPlayer    string `json:"next_player"`
}

type MoveMadeEvent struct {
	Turn            int            `json:"turn"`
	Actor           string         `json:"actor"`
	Ability         string         `json:"ability"`
	Target          string         `json:"target"`
	TargetCharacter string         `json:"target_character"`
	Value           int            `json:"value"`
	Effect          string         `json:"effect"`
	Narrative       string         `json:"narrative"`
	Health          map[string]int `json:"health"`
	CurrentPlayer   string         `json:"current_player"`
	NextPlayer      string         `json:"next_player"`
}

type SkipMadeEvent struct {
	Turn          int    `json:"turn"`
	Actor         string `json:"actor"`
	CurrentPlayer string `json:"current_player"`
	NextPlayer    string `json:"next_player"`
}

type GameEndedEvent struct {
	RoomCode string         `json:"room_code"`
	Winner   string         `json:"winner"`
	Health   map[string]int `json:"health"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}
