package handlers

import (
	"context"
	"errors"

	"Forest/services/catalog"
	"Forest/services/game"

	"go.uber.org/zap"
)

var (
	errUnknownCharacter = &game.UserError{Reason: "character not found"}
	errUnknownAbility   = &game.UserError{Reason: "ability not found"}
)

func characterError(err error) error {
	if errors.Is(err, catalog.ErrUnknownCharacter) {
		return errUnknownCharacter
	}
	return err
}

type moveRequest struct {
	RoomCode string `json:"room_code"`
	game.Move
}

type skipRequest struct {
	RoomCode string `json:"room_code"`
	Turn     int    `json:"turn"`
}

// stateFor returns the snapshot of a room the session's player belongs to.
func (d *Deps) stateFor(s *Session, code string) (game.Snapshot, error) {
	if _, err := d.Registry.Member(code, s.Username); err != nil {
		return game.Snapshot{}, err
	}
	return d.Registry.GetState(code)
}

// HandleGetGameState replies with the full room snapshot.
func HandleGetGameState(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req roomRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "get_game_state", err)
			return
		}
		snapshot, err := d.stateFor(s, req.RoomCode)
		if err != nil {
			d.fail(s, reply, "get_game_state", err)
			return
		}
		d.respond(s, reply, EventGameState, snapshot)
	}
}

// HandleReconnectToGame reattaches a returning player's socket to a room it
// is already a member of and replies with reconnection_sync.
func HandleReconnectToGame(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req roomRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "reconnect_to_game", err)
			return
		}
		s.UpdatePublicKey(req.PublicKey)
		if _, err := d.Registry.Member(req.RoomCode, s.Username); err != nil {
			d.fail(s, reply, "reconnect_to_game", err)
			return
		}

		publicKey := s.PublicKey()
		d.Hub.Subscribe(req.RoomCode, s.Username, s.sink, publicKey)
		snapshot, err := d.Registry.JoinRoom(req.RoomCode, s.Username, publicKey)
		if err != nil {
			d.Hub.Detach(req.RoomCode, s.Username, s.sink)
			d.fail(s, reply, "reconnect_to_game", err)
			return
		}
		d.markPresence(s.Username, req.RoomCode)

		d.Logger.Info("[RECONNECT] player resynchronized", zap.String("room", req.RoomCode), zap.String("player", s.Username))
		d.respond(s, reply, EventReconnectionSync, snapshot)
	}
}

// HandleGetAbility replies with one catalog ability.
func HandleGetAbility(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req struct {
			Name string `json:"name"`
		}
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "get_ability", err)
			return
		}
		ability, ok, err := d.Catalog.Lookup(context.Background(), req.Name)
		if err != nil {
			d.fail(s, reply, "get_ability", err)
			return
		}
		if !ok {
			d.fail(s, reply, "get_ability", errUnknownAbility)
			return
		}
		d.respond(s, reply, EventAbilityDetails, ability)
	}
}

// HandleMakeMove submits the player's move for the current turn.
func HandleMakeMove(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req moveRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "make_move", err)
			return
		}
		result, err := d.Registry.SubmitMove(context.Background(), req.RoomCode, s.Username, req.Move)
		if err != nil {
			d.fail(s, reply, "make_move", err)
			return
		}
		d.respond(s, reply, EventMoveAccepted, result)
	}
}

// HandleSkipTurn gives up the player's current turn.
func HandleSkipTurn(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req skipRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "skip_turn", err)
			return
		}
		if err := d.Registry.SkipTurn(req.RoomCode, s.Username, req.Turn); err != nil {
			d.fail(s, reply, "skip_turn", err)
			return
		}
		d.respond(s, reply, EventSkipAccepted, map[string]any{"room_code": req.RoomCode, "turn": req.Turn})
	}
}
