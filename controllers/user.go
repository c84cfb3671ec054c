package controllers

import (
	"errors"
	"net/http"
	"strings"

	"Forest/middleware"
	models "Forest/models/postgres"
	"Forest/services/keys"
	"Forest/services/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	PublicKey string `json:"public_key"`
}

// @Summary Register a new player
// @Description Creates an account. The body is an envelope sealed for the server key; the reply is sealed for the supplied public key
// @Tags auth
// @Accept json
// @Produce json
// @Param request body envelope.Envelope true "Envelope of {username, password, public_key}"
// @Success 201 {object} envelope.Envelope
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /register [post]
func Register(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}

		//Minimum input sanitizing
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || strings.TrimSpace(req.Password) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameters can't be empty"})
			return
		}
		if req.PublicKey != "" {
			if _, err := keys.ParsePublicKey(req.PublicKey); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid public key"})
				return
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.internal(c, "hash password", err)
			return
		}

		err = s.Store.CreateUser(c.Request.Context(), models.User{
			Username:     req.Username,
			PasswordHash: string(hash),
			PublicKey:    req.PublicKey,
		})
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
			return
		}
		if err != nil {
			s.internal(c, "create user", err)
			return
		}

		s.Logger.Info("[AUTH] player registered", zap.String("player", req.Username))
		s.seal(c, http.StatusCreated, req.PublicKey, gin.H{"message": "registered", "username": req.Username})
	}
}

// @Summary Log in
// @Description Checks the credentials, stores a session and returns a bearer token. A supplied public key replaces the registered one
// @Tags auth
// @Accept json
// @Produce json
// @Param request body envelope.Envelope true "Envelope of {username, password, public_key?}"
// @Success 200 {object} envelope.Envelope
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Router /login [post]
func Login(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		var req credentials
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}
		if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Parameters can't be empty"})
			return
		}

		user, err := s.Store.GetUser(c.Request.Context(), strings.TrimSpace(req.Username))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.Logger.Error("[AUTH] user lookup failed", zap.Error(err))
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password!"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password!"})
			return
		}

		publicKey := user.PublicKey
		if req.PublicKey != "" && req.PublicKey != user.PublicKey {
			if _, err := keys.ParsePublicKey(req.PublicKey); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid public key"})
				return
			}
			if err := s.Catalog.SetPublicKey(c.Request.Context(), user.Username, req.PublicKey); err != nil {
				s.internal(c, "store public key", err)
				return
			}
			publicKey = req.PublicKey
		}

		token, err := s.Auth.GenerateToken(user.Username)
		if err != nil {
			s.internal(c, "sign token", err)
			return
		}

		session.Set(middleware.UserKey, user.Username)
		if err := session.Save(); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No session!"})
			return
		}

		s.Logger.Info("[AUTH] player logged in", zap.String("player", user.Username))
		s.seal(c, http.StatusOK, publicKey, gin.H{"token": token, "username": user.Username})
	}
}

// @Summary Log out
// @Description Deletes the login session
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Router /auth/logout [delete]
// @Security ApiKeyAuth
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	// Bearer-only clients have nothing to delete
	if session.Get(middleware.UserKey) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session token"})
		return
	}

	session.Delete(middleware.UserKey)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
