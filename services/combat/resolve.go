// Package combat turns a validated ability use into health changes and
// decides when a match is over.
package combat

import (
	"errors"
	"fmt"
	"strings"

	game_constants "Forest/constants/game"
)

type Kind string

const (
	Attack Kind = "attack"
	Heal   Kind = "heal"
)

var ErrUnknownKind = errors.New("unknown ability type")

// ParseKind accepts the full names and the single-letter catalog codes.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "attack":
		return Attack, nil
	case "h", "heal":
		return Heal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type Ability struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"type"`
	Description string `json:"description"`
	// Narrative uses [player1] for the target character and [player2] for the actor's.
	Narrative string `json:"chat"`
	Dice      Spec   `json:"dice"`
}

// Combatant is one side of a resolution: the participant and the character
// they play.
type Combatant struct {
	Participant string
	Character   string
	Health      int
}

type Result struct {
	HealthDelta  int    `json:"health_delta"`
	TargetHealth int    `json:"target_health"`
	Effect       string `json:"effect"`
	Narrative    string `json:"narrative"`
	Eliminated   bool   `json:"eliminated"`
}

var ErrTargetDefeated = errors.New("target has no health left")

// Resolve applies value for ability from actor to target. value must already
// have passed Spec.ValidateRoll; Resolve re-checks it and never clamps a roll.
func Resolve(ability Ability, actor, target Combatant, value int) (Result, error) {
	if err := ability.Dice.ValidateRoll(value); err != nil {
		return Result{}, err
	}
	if target.Health <= 0 {
		return Result{}, ErrTargetDefeated
	}

	name := target.Character
	if name == "" {
		name = target.Participant
	}

	var res Result
	switch ability.Kind {
	case Attack:
		res.TargetHealth = max(0, target.Health-value)
		res.Effect = fmt.Sprintf("%s took %d damage!", name, value)
	case Heal:
		res.TargetHealth = min(game_constants.MaxHealth, target.Health+value)
		res.Effect = fmt.Sprintf("%s healed for %d health!", name, value)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, ability.Kind)
	}

	res.HealthDelta = res.TargetHealth - target.Health
	res.Eliminated = res.TargetHealth == 0
	res.Narrative = Narrate(ability.Narrative, actor.Character, name)
	return res, nil
}

// Narrate fills an ability's narrative template.
func Narrate(template, actorCharacter, targetCharacter string) string {
	return strings.NewReplacer(
		"[player1]", targetCharacter,
		"[player2]", actorCharacter,
	).Replace(template)
}

type Outcome string

const (
	OutcomeNone  Outcome = ""
	OutcomeTeam1 Outcome = "team1"
	OutcomeTeam2 Outcome = "team2"
	OutcomeTie   Outcome = "tie"
)

// Decide reports the winner once one team has no living member.
func Decide(team1, team2 []int) Outcome {
	alive1, alive2 := anyAlive(team1), anyAlive(team2)
	switch {
	case alive1 && !alive2:
		return OutcomeTeam1
	case alive2 && !alive1:
		return OutcomeTeam2
	case !alive1 && !alive2:
		return OutcomeTie
	}
	return OutcomeNone
}

// DecideByTotal picks the team with more remaining health. Used when the
// round limit is reached.
func DecideByTotal(team1, team2 []int) Outcome {
	t1, t2 := sum(team1), sum(team2)
	switch {
	case t1 > t2:
		return OutcomeTeam1
	case t2 > t1:
		return OutcomeTeam2
	}
	return OutcomeTie
}

func anyAlive(hs []int) bool {
	for _, h := range hs {
		if h > 0 {
			return true
		}
	}
	return false
}

func sum(hs []int) int {
	total := 0
	for _, h := range hs {
		total += h
	}
	return total
}
