package controllers

import (
	"net/http"

	"Forest/services/combat"

	"github.com/gin-gonic/gin"
)

type abilityView struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Chat        string `json:"chat"`
	Num         int    `json:"num"`
	Dice        int    `json:"dice"`
	Range       string `json:"range"`
}

func abilityToView(a combat.Ability) abilityView {
	return abilityView{
		Name:        a.Name,
		Type:        string(a.Kind),
		Description: a.Description,
		Chat:        a.Narrative,
		Num:         a.Dice.Count,
		Dice:        a.Dice.Sides,
		Range:       a.Dice.String(),
	}
}

// @Summary List abilities
// @Description Lists every ability of the catalog
// @Tags abilities
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} envelope.Envelope "Envelope of [ability]"
// @Router /get_abilities [post]
// @Security ApiKeyAuth
func GetAbilities(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.Store.ListAbilities(c.Request.Context())
		if err != nil {
			s.internal(c, "list abilities", err)
			return
		}
		out := make([]abilityView, 0, len(rows))
		for _, row := range rows {
			a, err := row.ToCombat()
			if err != nil {
				// Broken catalog rows are skipped rather than failing the list
				continue
			}
			out = append(out, abilityToView(a))
		}
		s.sealForUser(c, http.StatusOK, out)
	}
}

// @Summary Ability details
// @Tags abilities
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body envelope.Envelope true "Envelope of {name}"
// @Success 200 {object} envelope.Envelope "Envelope of the ability"
// @Failure 404 {object} object{error=string}
// @Router /get_ability_details [post]
// @Security ApiKeyAuth
func GetAbilityDetails(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := s.open(c, &req); err != nil {
			s.badRequest(c, err)
			return
		}
		a, ok, err := s.Catalog.Lookup(c.Request.Context(), req.Name)
		if err != nil {
			s.internal(c, "lookup ability", err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ability not found"})
			return
		}
		s.sealForUser(c, http.StatusOK, abilityToView(a))
	}
}
