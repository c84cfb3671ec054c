package game

import (
	"context"
	"fmt"
	"slices"

	"Forest/services/combat"

	"go.uber.org/zap"
)

// Move is a participant's action for the current turn.
type Move struct {
	// Turn, when non-zero, must match the current turn number. It lets the
	// server reject moves composed for a turn that already ended.
	Turn    int    `json:"turn"`
	Ability string `json:"ability"`
	// TargetParticipant names the target; health is kept per participant.
	TargetParticipant string `json:"target_user"`
	// TargetCharacter must be the target's character when both are given.
	// On its own it must name exactly one character in the match.
	TargetCharacter string `json:"target_name"`
	Value           int    `json:"value"`
}

// startTurnLocked hands the turn to the next living member of team.
func (g *Registry) startTurnLocked(room *Room, team int) {
	owner := room.take(team)
	if owner == "" {
		// The opposite team is empty of living members; the outcome check
		// should already have ended the match.
		g.endLocked(room, combat.Decide(room.teamHealth(team1), room.teamHealth(team2)))
		return
	}

	room.turnSeq++
	now := g.clock.Now()
	turn := &Turn{
		Seq:            room.turnSeq,
		Owner:          owner,
		Team:           team,
		StartedAt:      now,
		StartUnixMilli: now.UnixMilli(),
		Duration:       g.opts.TurnDuration,
	}
	seq := turn.Seq
	turn.timer = g.clock.AfterFunc(turn.Duration, func() {
		g.expireTurn(room, seq)
	})
	room.turn = turn

	next, _ := room.peek(1 - team)
	g.logger.Debug("[TURN] started", zap.String("room", room.code), zap.Int("turn", seq),
		zap.String("player", owner), zap.String("next", next))
	g.notifier.Broadcast(room.code, EventTurnStarted, TurnStartedEvent{
		Turn:          seq,
		CurrentPlayer: owner,
		NextPlayer:    next,
		Team:          teamNames[team],
		StartTime:     turn.StartUnixMilli,
		Duration:      int(turn.Duration.Seconds()),
		Deadline:      turn.StartUnixMilli + turn.Duration.Milliseconds(),
	})
}

// expireTurn runs when a turn's deadline passes. It loses to any move or skip
// that resolved the same turn first.
func (g *Registry) expireTurn(room *Room, seq int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	turn := room.turn
	if room.closed || room.status != StatusActive || turn == nil || turn.Seq != seq || turn.resolved {
		g.logger.Debug("[TURN] stale expiry ignored", zap.String("room", room.code), zap.Int("turn", seq))
		return
	}
	turn.resolved = true

	next, _ := room.peek(1 - turn.Team)
	room.appendLog("expired", turn.Owner, "", fmt.Sprintf("%s ran out of time", turn.Owner), "", g.clock.Now())
	g.logger.Info("[TURN] expired", zap.String("room", room.code), zap.Int("turn", seq), zap.String("player", turn.Owner))
	g.notifier.Broadcast(room.code, EventTurnExpired, TurnExpiredEvent{Turn: seq, CurrentPlayer: turn.Owner, NextPlayer: next})

	g.advanceLocked(room)
}

// claimTurnLocked checks that participant may act on the current turn.
func (g *Registry) claimTurnLocked(room *Room, participant string, turnNumber int) (*Turn, error) {
	if _, ok := room.members[participant]; !ok {
		return nil, ErrNotMember
	}
	if room.status != StatusActive || room.turn == nil {
		return nil, ErrNotActive
	}
	turn := room.turn
	if turn.resolved || (turnNumber != 0 && turnNumber != turn.Seq) {
		return nil, ErrTurnClosed
	}
	if turn.Owner != participant {
		return nil, ErrNotYourTurn
	}
	return turn, nil
}

// SubmitMove validates and resolves participant's move for the current turn.
func (g *Registry) SubmitMove(ctx context.Context, code, participant string, move Move) (combat.Result, error) {
	if g.abilities == nil {
		return combat.Result{}, fmt.Errorf("submit move: no ability catalog configured")
	}
	ability, found, err := g.abilities.Lookup(ctx, move.Ability)
	if err != nil {
		return combat.Result{}, fmt.Errorf("looking up ability %q: %w", move.Ability, err)
	}
	if !found {
		return combat.Result{}, ErrUnknownAbility
	}

	room, err := g.lock(code)
	if err != nil {
		return combat.Result{}, err
	}
	defer room.mu.Unlock()

	turn, err := g.claimTurnLocked(room, participant, move.Turn)
	if err != nil {
		g.logger.Debug("[MOVE] rejected", zap.String("room", code), zap.String("player", participant), zap.Error(err))
		return combat.Result{}, err
	}

	actor := room.members[participant]
	if len(actor.Character.Abilities) > 0 && !slices.Contains(actor.Character.Abilities, ability.Name) {
		return combat.Result{}, ErrUnknownAbility
	}
	target, err := room.resolveTarget(move.TargetParticipant, move.TargetCharacter)
	if err != nil {
		g.logger.Debug("[MOVE] rejected", zap.String("room", code), zap.String("player", participant), zap.Error(err))
		return combat.Result{}, err
	}
	if room.health[target] <= 0 {
		return combat.Result{}, ErrTargetDefeated
	}

	targetCharacter := target
	if m, ok := room.members[target]; ok && m.Character.Name != "" {
		targetCharacter = m.Character.Name
	}
	res, err := combat.Resolve(ability,
		combat.Combatant{Participant: participant, Character: actor.Character.Name, Health: room.health[participant]},
		combat.Combatant{Participant: target, Character: targetCharacter, Health: room.health[target]},
		move.Value)
	if err != nil {
		g.logger.Debug("[MOVE] rejected", zap.String("room", code), zap.String("player", participant), zap.Error(err))
		return combat.Result{}, fmt.Errorf("%w: %w", ErrInvalidRoll, err)
	}

	turn.resolved = true
	turn.timer.Stop()
	room.health[target] = res.TargetHealth

	room.appendLog("move", participant, target, res.Narrative, res.Effect, g.clock.Now())
	g.logger.Info("[MOVE] resolved", zap.String("room", code), zap.Int("turn", turn.Seq),
		zap.String("player", participant), zap.String("ability", ability.Name),
		zap.String("target", target), zap.Int("value", move.Value))

	outcome := combat.Decide(room.teamHealth(team1), room.teamHealth(team2))
	current, next := "", ""
	if outcome == combat.OutcomeNone {
		current, _ = room.peek(1 - turn.Team)
		next, _ = room.peek(turn.Team)
	}
	g.notifier.Broadcast(code, EventMoveMade, MoveMadeEvent{
		Turn:            turn.Seq,
		Actor:           participant,
		Ability:         ability.Name,
		Target:          target,
		TargetCharacter: targetCharacter,
		Value:           move.Value,
		Effect:          res.Effect,
		Narrative:       res.Narrative,
		Health:          room.healthCopy(),
		CurrentPlayer:   current,
		NextPlayer:      next,
	})

	if outcome != combat.OutcomeNone {
		room.resolved++
		g.endLocked(room, outcome)
		return res, nil
	}
	g.advanceLocked(room)
	return res, nil
}

// SkipTurn gives up participant's current turn.
func (g *Registry) SkipTurn(code, participant string, turnNumber int) error {
	room, err := g.lock(code)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	turn, err := g.claimTurnLocked(room, participant, turnNumber)
	if err != nil {
		return err
	}
	turn.resolved = true
	turn.timer.Stop()

	current, _ := room.peek(1 - turn.Team)
	next, _ := room.peek(turn.Team)
	room.appendLog("skip", participant, "", fmt.Sprintf("%s skipped their turn", participant), "", g.clock.Now())
	g.logger.Info("[TURN] skipped", zap.String("room", code), zap.Int("turn", turn.Seq), zap.String("player", participant))
	g.notifier.Broadcast(code, EventSkipMade, SkipMadeEvent{Turn: turn.Seq, Actor: participant, CurrentPlayer: current, NextPlayer: next})

	g.advanceLocked(room)
	return nil
}

// advanceLocked closes out a resolved turn: it applies the round limit and
// otherwise passes the turn to the opposite team.
func (g *Registry) advanceLocked(room *Room) {
	room.resolved++
	if g.opts.RoundLimit > 0 && room.resolved >= g.opts.RoundLimit*room.starters {
		g.logger.Info("[GAME] round limit reached", zap.String("room", room.code), zap.Int("turns", room.resolved))
		g.endLocked(room, combat.DecideByTotal(room.teamHealth(team1), room.teamHealth(team2)))
		return
	}
	g.startTurnLocked(room, 1-room.turn.Team)
}

func (g *Registry) endLocked(room *Room, outcome combat.Outcome) {
	room.status = StatusEnded
	room.winner = outcome
	if room.turn != nil {
		room.turn.resolved = true
		if room.turn.timer != nil {
			room.turn.timer.Stop()
		}
	}

	room.appendLog("end", "", "", fmt.Sprintf("match over, winner: %s", outcome), "", g.clock.Now())
	g.logger.Info("[GAME] ended", zap.String("room", room.code), zap.String("winner", string(outcome)))
	g.notifier.Broadcast(room.code, EventGameEnded, GameEndedEvent{
		RoomCode: room.code,
		Winner:   string(outcome),
		Health:   room.healthCopy(),
	})
}
