package game

import "errors"

// UserError is a rejection the participant caused. Its Reason is safe to send
// back over the wire.
type UserError struct {
	Reason string
}

func (e *UserError) Error() string { return e.Reason }

var (
	ErrRoomNotFound    = &UserError{"room not found"}
	ErrNotMember       = &UserError{"you are not in this room"}
	ErrMatchStarted    = &UserError{"match already started"}
	ErrUnknownTeam     = &UserError{"unknown team"}
	ErrNoCharacter     = &UserError{"a character is required"}
	ErrNoTeam          = &UserError{"join a team before getting ready"}
	ErrNotValidating   = &UserError{"no connection check in progress"}
	ErrNotActive       = &UserError{"match is not in progress"}
	ErrNotYourTurn     = &UserError{"not your turn"}
	ErrTurnClosed      = &UserError{"turn already resolved"}
	ErrUnknownAbility  = &UserError{"ability not available to this character"}
	ErrUnknownTarget   = &UserError{"target is not in this match"}
	ErrTargetDefeated  = &UserError{"target is already defeated"}
	ErrTargetMismatch  = &UserError{"target character does not match the target player"}
	ErrAmbiguousTarget = &UserError{"several players use that character, name the target player"}
	ErrInvalidRoll     = &UserError{"roll outside the ability's dice range"}
)

const internalReason = "internal server error"

// PublicReason returns the text a participant may see for err. Anything that
// is not a UserError is reported generically.
func PublicReason(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return internalReason
}
