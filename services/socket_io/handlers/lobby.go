package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Reply events for requests made without an ack.
const (
	EventRoomJoined          = "room_joined"
	EventGroupJoined         = "group_joined"
	EventReadyStatus         = "ready_status"
	EventConnectionConfirmed = "connection_confirmed"
	EventGameState           = "game_state"
	EventReconnectionSync    = "reconnection_sync"
	EventAbilityDetails      = "ability_details"
	EventMoveAccepted        = "move_accepted"
	EventSkipAccepted        = "skip_accepted"
	EventRoomLeft            = "room_left"
)

type roomRequest struct {
	RoomCode  string `json:"room_code"`
	PublicKey string `json:"public_key,omitempty"`
}

type groupRequest struct {
	RoomCode      string `json:"room_code"`
	Group         string `json:"group"`
	CharacterName string `json:"character_name"`
	// Older clients send these instead.
	Team      string `json:"team,omitempty"`
	Character string `json:"character,omitempty"`
}

func (r groupRequest) group() string {
	if r.Group != "" {
		return r.Group
	}
	return r.Team
}

func (r groupRequest) character() string {
	if r.CharacterName != "" {
		return r.CharacterName
	}
	return r.Character
}

// HandleJoinRoom joins the session's player to a room and subscribes this
// socket to the room's events.
func HandleJoinRoom(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req roomRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "join_room", err)
			return
		}
		code := strings.TrimSpace(req.RoomCode)
		s.UpdatePublicKey(req.PublicKey)

		if previous, ok := d.Registry.RoomOf(s.Username); ok && previous != code {
			d.Hub.Detach(previous, s.Username, s.sink)
			d.clearPresence(s.Username, previous)
		}

		// Subscribed first so the joiner also sees its own new_player
		publicKey := s.PublicKey()
		d.Hub.Subscribe(code, s.Username, s.sink, publicKey)
		snapshot, err := d.Registry.JoinRoom(code, s.Username, publicKey)
		if err != nil {
			d.Hub.Detach(code, s.Username, s.sink)
			d.fail(s, reply, "join_room", err)
			return
		}
		d.markPresence(s.Username, code)

		d.Logger.Info("[JOIN] socket joined room", zap.String("room", code), zap.String("player", s.Username))
		d.respond(s, reply, EventRoomJoined, snapshot)
	}
}

// HandleJoinGroup puts the player's character on a team.
func HandleJoinGroup(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req groupRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "join_group", err)
			return
		}

		character, err := d.Catalog.Character(context.Background(), s.Username, req.character())
		if err != nil {
			d.fail(s, reply, "join_group", characterError(err))
			return
		}
		if err := d.Registry.AssignTeam(req.RoomCode, s.Username, character, req.group()); err != nil {
			d.fail(s, reply, "join_group", err)
			return
		}
		d.respond(s, reply, EventGroupJoined, map[string]string{
			"room_code":      req.RoomCode,
			"group":          req.group(),
			"character_name": character.Name,
		})
	}
}

// HandleReady returns the press_ready (ready=true) or unpress_ready handler.
func HandleReady(d *Deps, s *Session, ready bool) func(args ...any) {
	event := "press_ready"
	if !ready {
		event = "unpress_ready"
	}
	return func(args ...any) {
		var req roomRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, event, err)
			return
		}
		if err := d.Registry.SetReady(req.RoomCode, s.Username, ready); err != nil {
			d.fail(s, reply, event, err)
			return
		}
		d.respond(s, reply, EventReadyStatus, map[string]any{"room_code": req.RoomCode, "ready": ready})
	}
}

// HandleConnectionReady answers the validate_connection challenge.
func HandleConnectionReady(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req roomRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "connection_ready", err)
			return
		}
		if err := d.Registry.AcknowledgeValidation(req.RoomCode, s.Username); err != nil {
			d.fail(s, reply, "connection_ready", err)
			return
		}
		d.respond(s, reply, EventConnectionConfirmed, map[string]string{"room_code": req.RoomCode})
	}
}

// HandleLeaveRoom removes the player from the room.
func HandleLeaveRoom(d *Deps, s *Session) func(args ...any) {
	return func(args ...any) {
		var req roomRequest
		reply, err := d.request(args, &req)
		if err != nil {
			d.invalid(s, reply, "leave_room", err)
			return
		}
		if err := d.Registry.LeaveRoom(req.RoomCode, s.Username); err != nil {
			d.fail(s, reply, "leave_room", err)
			return
		}
		d.Hub.Detach(req.RoomCode, s.Username, s.sink)
		d.clearPresence(s.Username, req.RoomCode)

		d.Logger.Info("[LEAVE] player left room", zap.String("room", req.RoomCode), zap.String("player", s.Username))
		d.respond(s, reply, EventRoomLeft, map[string]string{"room_code": req.RoomCode})
	}
}
