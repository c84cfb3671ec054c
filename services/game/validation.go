package game

import (
	"fmt"
	"slices"
	"strings"

	game_constants "Forest/constants/game"

	"go.uber.org/zap"
)

// SetReady toggles participant's ready flag. When everyone is ready the room
// starts the connection check; un-readying during the check aborts it.
func (g *Registry) SetReady(code, participant string, ready bool) error {
	room, err := g.lock(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m, ok := room.members[participant]
	if !ok {
		return ErrNotMember
	}
	if room.status != StatusWaiting && room.status != StatusValidating {
		return ErrMatchStarted
	}

	if ready {
		if m.Team < 0 {
			return ErrNoTeam
		}
		if m.Ready {
			return nil
		}
		m.Ready = true
		g.logger.Info("[READY] player ready", zap.String("room", code), zap.String("player", participant))
		g.notifier.Broadcast(code, EventPlayerReady, PlayerEvent{RoomCode: code, Username: participant, Players: room.players()})
		g.maybeValidateLocked(room)
		return nil
	}

	if !m.Ready {
		return nil
	}
	m.Ready = false
	g.logger.Info("[READY] player unready", zap.String("room", code), zap.String("player", participant))
	g.notifier.Broadcast(code, EventPlayerUnready, PlayerEvent{RoomCode: code, Username: participant, Players: room.players()})
	if room.status == StatusValidating {
		g.abortValidationLocked(room, fmt.Sprintf("%s is no longer ready", participant))
	}
	return nil
}

func (g *Registry) maybeValidateLocked(room *Room) {
	if room.status != StatusWaiting || !room.readyToValidate() {
		return
	}

	room.status = StatusValidating
	room.acks = make(map[string]bool)
	room.validationGen++
	gen := room.validationGen
	room.validation = g.clock.AfterFunc(g.opts.ValidationTimeout, func() {
		g.validationExpired(room, gen)
	})

	room.appendLog("validation", "", "", "all players ready, checking connections", "", g.clock.Now())
	g.logger.Info("[VALIDATION] started", zap.String("room", room.code), zap.Int("players", len(room.members)))
	g.notifier.Broadcast(room.code, EventValidateConnection, ValidateConnectionEvent{
		RoomCode: room.code,
		Timeout:  int(g.opts.ValidationTimeout.Seconds()),
	})
}

// AcknowledgeValidation records participant's answer to the connection
// check. The last acknowledgement starts the match.
func (g *Registry) AcknowledgeValidation(code, participant string) error {
	room, err := g.lock(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if _, ok := room.members[participant]; !ok {
		return ErrNotMember
	}
	if room.status != StatusValidating {
		return ErrNotValidating
	}

	room.acks[participant] = true
	g.logger.Debug("[VALIDATION] ack", zap.String("room", code), zap.String("player", participant),
		zap.Int("acks", len(room.acks)), zap.Int("players", len(room.members)))

	for id := range room.members {
		if !room.acks[id] {
			return nil
		}
	}
	g.activateLocked(room)
	return nil
}

func (g *Registry) validationExpired(room *Room, gen int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed || room.status != StatusValidating || room.validationGen != gen {
		return
	}

	var missing []string
	for _, id := range room.order {
		if !room.acks[id] {
			missing = append(missing, id)
		}
	}
	g.abortValidationLocked(room, fmt.Sprintf("connection check timed out for: %s", strings.Join(missing, ", ")))
}

// abortValidationLocked returns the room to waiting. Ready and
// acknowledgement state is cleared so everyone has to confirm again.
func (g *Registry) abortValidationLocked(room *Room, reason string) {
	if room.validation != nil {
		room.validation.Stop()
		room.validation = nil
	}
	room.validationGen++
	room.status = StatusWaiting
	room.acks = make(map[string]bool)
	for _, m := range room.members {
		m.Ready = false
	}

	room.appendLog("validation_failed", "", "", reason, "", g.clock.Now())
	g.logger.Warn("[VALIDATION] failed", zap.String("room", room.code), zap.String("reason", reason))
	g.notifier.Broadcast(room.code, EventGameStartFailed, GameStartFailedEvent{RoomCode: room.code, Reason: reason})
}

func (g *Registry) activateLocked(room *Room) {
	if room.validation != nil {
		room.validation.Stop()
		room.validation = nil
	}
	room.validationGen++
	room.status = StatusActive

	for t := range room.teams {
		room.lineup[t] = slices.Clone(room.teams[t])
		for _, id := range room.lineup[t] {
			room.health[id] = game_constants.MaxHealth
		}
	}
	room.cursor = [2]int{}
	room.starters = len(room.lineup[team1]) + len(room.lineup[team2])

	room.appendLog("start", "", "", "match started", "", g.clock.Now())
	g.logger.Info("[GAME] started", zap.String("room", room.code), zap.Int("players", room.starters))
	g.notifier.Broadcast(room.code, EventGameStarted, GameStartedEvent{
		RoomCode: room.code,
		Team1:    slices.Clone(room.lineup[team1]),
		Team2:    slices.Clone(room.lineup[team2]),
		Health:   room.healthCopy(),
	})

	g.startTurnLocked(room, team1)
}
