package game_constants

import "time"

const MaxHealth = 50
const AbilitySlots = 6 // NOTE: the client shows exactly six ability buttons
const MinPlayers = 2
const RoomCodeLength = 4
const RoundLimit = 15 // turns per participant before the match is decided on health

const TurnDuration = 60 * time.Second
const ValidationTimeout = 10 * time.Second
const DisconnectGrace = 10 * time.Second

// Team names
const (
	TEAM_1 = "team1"
	TEAM_2 = "team2"
)

// Legacy team names still sent by older clients
const (
	GROUP_1 = "group1"
	GROUP_2 = "group2"
)
