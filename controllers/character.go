package controllers

import (
	"errors"
	"net/http"
	"strings"

	"Forest/middleware"
	models "Forest/models/postgres"
	"Forest/services/catalog"
	"Forest/services/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type characterRequest struct {
	Name        string   `json:"name"`
	NewName     string   `json:"new_name,omitempty"`
	Description string   `json:"description"`
	Abilities   []string `json:"abilities"`
}

type characterView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Abilities   []string `json:"abilities"`
}

func toView(c models.Character) (characterView, error) {
	names, err := c.AbilityNames()
	if err != nil {
		return characterView{}, err
	}
	return characterView{Name: c.Name, Description: c.Description, Abilities: names}, nil
}

func (s *Services) characterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
	case errors.Is(err, store.ErrExists):
		c.JSON(http.StatusConflict, gin.H{"error": "A character with that name already exists"})
	case errors.Is(err, catalog.ErrLoadoutSize), errors.Is(err, catalog.ErrUnknownAbility):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.internal(c, "character operation", err)
	}
}

// @Summary List characters
// @Description Lists the caller's characters
// @Tags characters
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} envelope.Envelope "Envelope of [{name, description, abilities}]"
// @Router /get_characters [post]
// @Security ApiKeyAuth
func GetCharacters(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.Store.ListCharacters(c.Request.Context(), middleware.CurrentUser(c))
		if err != nil {
			s.internal(c, "list characters", err)
			return
		}
		out := make([]characterView, 0, len(rows))
		for _, row := range rows {
			v, err := toView(row)
			if err != nil {
				s.internal(c, "decode character", err)
				return
			}
			out = append(out, v)
		}
		s.sealForUser(c, http.StatusOK, out)
	}
}

// @Summary Get a character
// @Tags characters
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {name}"
// @Success 200 {object} envelope.Envelope "Envelope of {name, description, abilities}"
// @Failure 404 {object} object{error=string}
// @Router /get_character [post]
// @Security ApiKeyAuth
func GetCharacter(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req characterRequest
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}
		row, err := s.Store.GetCharacter(c.Request.Context(), middleware.CurrentUser(c), req.Name)
		if err != nil {
			s.characterError(c, err)
			return
		}
		v, err := toView(row)
		if err != nil {
			s.internal(c, "decode character", err)
			return
		}
		s.sealForUser(c, http.StatusOK, v)
	}
}

// @Summary Save a character
// @Description Creates a character with exactly six abilities from the catalog
// @Tags characters
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {name, description, abilities}"
// @Success 201 {object} envelope.Envelope
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /save_character [post]
// @Security ApiKeyAuth
func SaveCharacter(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req characterRequest
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		if err := s.Catalog.ValidateLoadout(c.Request.Context(), req.Abilities); err != nil {
			s.characterError(c, err)
			return
		}

		username := middleware.CurrentUser(c)
		row := models.Character{Owner: username, Name: req.Name, Description: req.Description}
		if err := row.SetAbilityNames(req.Abilities); err != nil {
			s.internal(c, "encode abilities", err)
			return
		}
		if err := s.Store.CreateCharacter(c.Request.Context(), row); err != nil {
			s.characterError(c, err)
			return
		}
		s.Logger.Info("[CHARACTER] saved", zap.String("player", username), zap.String("character", req.Name))
		s.sealForUser(c, http.StatusCreated, characterView{Name: row.Name, Description: row.Description, Abilities: req.Abilities})
	}
}

// @Summary Edit a character
// @Description Replaces description and abilities, optionally renaming it with new_name
// @Tags characters
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {name, new_name?, description, abilities}"
// @Success 200 {object} envelope.Envelope
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /edit_character [post]
// @Security ApiKeyAuth
func EditCharacter(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req characterRequest
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}
		if err := s.Catalog.ValidateLoadout(c.Request.Context(), req.Abilities); err != nil {
			s.characterError(c, err)
			return
		}
		name := strings.TrimSpace(req.NewName)
		if name == "" {
			name = req.Name
		}

		row := models.Character{Name: name, Description: req.Description}
		if err := row.SetAbilityNames(req.Abilities); err != nil {
			s.internal(c, "encode abilities", err)
			return
		}
		if err := s.Store.UpdateCharacter(c.Request.Context(), middleware.CurrentUser(c), req.Name, row); err != nil {
			s.characterError(c, err)
			return
		}
		s.sealForUser(c, http.StatusOK, characterView{Name: name, Description: req.Description, Abilities: req.Abilities})
	}
}

// @Summary Delete a character
// @Tags characters
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {name}"
// @Success 200 {object} envelope.Envelope
// @Failure 404 {object} object{error=string}
// @Router /delete_character [post]
// @Security ApiKeyAuth
func DeleteCharacter(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req characterRequest
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}
		if err := s.Store.DeleteCharacter(c.Request.Context(), middleware.CurrentUser(c), req.Name); err != nil {
			s.characterError(c, err)
			return
		}
		s.sealForUser(c, http.StatusOK, gin.H{"message": "deleted", "name": req.Name})
	}
}
