package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"Forest/middleware"
	"Forest/services/catalog"
	"Forest/services/envelope"
	"Forest/services/game"
	"Forest/services/keys"
	"Forest/services/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Presence mirrors which room a player is in.
type Presence interface {
	SetPlayerRoom(ctx context.Context, username, roomCode string) error
	ClearPlayerRoom(ctx context.Context, username, roomCode string) error
}

// Services carries what the REST handlers need.
type Services struct {
	Store    store.Store
	Catalog  *catalog.Catalog
	Registry *game.Registry
	Codec    *envelope.Codec
	Keys     *keys.Pair
	Auth     *middleware.Auth
	// Presence may be nil.
	Presence Presence
	Logger   *zap.Logger
}

var errEmptyBody = errors.New("empty body")

// open decrypts the request envelope into dst.
func (s *Services) open(c *gin.Context, dst any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	env, err := envelope.Parse(body)
	if err != nil {
		return err
	}
	pt, err := s.Codec.Decrypt(env, s.Keys.Private)
	if err != nil {
		return err
	}
	return pt.Decode(dst)
}

// seal answers with payload encrypted for publicKey.
func (s *Services) seal(c *gin.Context, status int, publicKey string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.internal(c, "marshal response", err)
		return
	}
	env, err := s.Codec.EncryptFor(data, publicKey)
	if err != nil {
		s.internal(c, "seal response", err)
		return
	}
	c.JSON(status, env)
}

// sealForUser answers the authenticated caller with their registered key.
func (s *Services) sealForUser(c *gin.Context, status int, payload any) {
	username := middleware.CurrentUser(c)
	key, err := s.Catalog.PublicKey(c.Request.Context(), username)
	if err != nil {
		s.Logger.Warn("[HTTP] no public key for caller, replying with fallback", zap.String("player", username), zap.Error(err))
	}
	s.seal(c, status, key, payload)
}

func (s *Services) badRequest(c *gin.Context, err error) {
	s.Logger.Debug("[HTTP] bad request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid encrypted request"})
}

func (s *Services) internal(c *gin.Context, what string, err error) {
	s.Logger.Error("[HTTP] "+what, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// gameError maps registry rejections onto status codes.
func (s *Services) gameError(c *gin.Context, err error) {
	var ue *game.UserError
	if !errors.As(err, &ue) {
		s.internal(c, "room operation", err)
		return
	}
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrMatchStarted):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": ue.Reason})
}
