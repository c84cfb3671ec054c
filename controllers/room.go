package controllers

import (
	"net/http"
	"strings"

	"Forest/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type roomRequest struct {
	RoomCode string `json:"room_code"`
}

func (s *Services) roomCode(c *gin.Context) (string, bool) {
	var req roomRequest
	if err := s.open(c, &req); err != nil {
		s.badRequest(c, err)
		return "", false
	}
	code := strings.TrimSpace(req.RoomCode)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_code is required"})
		return "", false
	}
	return code, true
}

func (s *Services) markPresence(c *gin.Context, username, code string) {
	if s.Presence == nil {
		return
	}
	if err := s.Presence.SetPlayerRoom(c.Request.Context(), username, code); err != nil {
		s.Logger.Warn("[ROOM] presence update failed", zap.String("player", username), zap.Error(err))
	}
}

func (s *Services) clearPresence(c *gin.Context, username, code string) {
	if s.Presence == nil {
		return
	}
	if err := s.Presence.ClearPlayerRoom(c.Request.Context(), username, code); err != nil {
		s.Logger.Warn("[ROOM] presence clear failed", zap.String("player", username), zap.Error(err))
	}
}

// @Summary Create a room
// @Description Opens a room owned by the caller, who leaves any previous room
// @Tags rooms
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 201 {object} envelope.Envelope "Envelope of {room_code}"
// @Failure 401 {object} object{error=string}
// @Router /create_room [post]
// @Security ApiKeyAuth
func CreateRoom(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.CurrentUser(c)
		key, _ := s.Catalog.PublicKey(c.Request.Context(), username)

		if previous, ok := s.Registry.RoomOf(username); ok {
			s.clearPresence(c, username, previous)
		}
		code, err := s.Registry.CreateRoom(username, key)
		if err != nil {
			s.gameError(c, err)
			return
		}
		s.markPresence(c, username, code)
		s.seal(c, http.StatusCreated, key, gin.H{"room_code": code})
	}
}

// @Summary Join a room
// @Description Joins the room by code and returns its state
// @Tags rooms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {room_code}"
// @Success 200 {object} envelope.Envelope "Envelope of the room snapshot"
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /join_room_route [post]
// @Security ApiKeyAuth
func JoinRoom(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, ok := s.roomCode(c)
		if !ok {
			return
		}
		username := middleware.CurrentUser(c)
		key, _ := s.Catalog.PublicKey(c.Request.Context(), username)

		if previous, ok := s.Registry.RoomOf(username); ok && previous != code {
			s.clearPresence(c, username, previous)
		}
		snapshot, err := s.Registry.JoinRoom(code, username, key)
		if err != nil {
			s.gameError(c, err)
			return
		}
		s.markPresence(c, username, code)
		s.seal(c, http.StatusOK, key, snapshot)
	}
}

// @Summary Leave a room
// @Description Removes the caller from the room; once the match started the caller is only marked as gone
// @Tags rooms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {room_code}"
// @Success 200 {object} envelope.Envelope "Envelope of {message}"
// @Failure 404 {object} object{error=string}
// @Router /remove_player_from_room [post]
// @Security ApiKeyAuth
func RemovePlayerFromRoom(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, ok := s.roomCode(c)
		if !ok {
			return
		}
		username := middleware.CurrentUser(c)
		if err := s.Registry.LeaveRoom(code, username); err != nil {
			s.gameError(c, err)
			return
		}
		s.clearPresence(c, username, code)
		s.sealForUser(c, http.StatusOK, gin.H{"message": "left room", "room_code": code})
	}
}

// @Summary Room state
// @Description Returns the full room snapshot, including the event log and turn timer
// @Tags rooms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {room_code}"
// @Success 200 {object} envelope.Envelope "Envelope of the room snapshot"
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /get_room_data [post]
// @Security ApiKeyAuth
func GetRoomData(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, ok := s.roomCode(c)
		if !ok {
			return
		}
		if _, err := s.Registry.Member(code, middleware.CurrentUser(c)); err != nil {
			s.gameError(c, err)
			return
		}
		snapshot, err := s.Registry.GetState(code)
		if err != nil {
			s.gameError(c, err)
			return
		}
		s.sealForUser(c, http.StatusOK, snapshot)
	}
}

// GetGroup lists the members of one team.
//
// @Summary Team members
// @Description Lists the members of team1 (/get_group1) or team2 (/get_group2)
// @Tags rooms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {room_code}"
// @Success 200 {object} envelope.Envelope "Envelope of {room_code, group, members}"
// @Failure 404 {object} object{error=string}
// @Router /get_group1 [post]
// @Router /get_group2 [post]
// @Security ApiKeyAuth
func GetGroup(s *Services, group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, ok := s.roomCode(c)
		if !ok {
			return
		}
		members, err := s.Registry.Team(code, group)
		if err != nil {
			s.gameError(c, err)
			return
		}
		s.sealForUser(c, http.StatusOK, gin.H{"room_code": code, "group": group, "members": members})
	}
}
