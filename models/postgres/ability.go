package postgres

import "Forest/services/combat"

/*
 * 'Ability' is catalog reference data. Type keeps the legacy one-letter codes
 * ('a', 'h') as well as the long names.
 */
type Ability struct {
	Name        string `gorm:"primaryKey;size:50;not null"`
	Type        string `gorm:"size:10;not null"`
	Description string `gorm:"type:text"`
	Chat        string `gorm:"type:text"`
	Num         int    `gorm:"not null;default:1"`
	Dice        int    `gorm:"not null;default:6"`
}

// ToCombat converts the row into the resolver's view of it.
func (a Ability) ToCombat() (combat.Ability, error) {
	kind, err := combat.ParseKind(a.Type)
	if err != nil {
		return combat.Ability{}, err
	}
	spec := combat.Spec{Count: a.Num, Sides: a.Dice}
	if !spec.Valid() {
		return combat.Ability{}, combat.ErrInvalidDiceSpec
	}
	return combat.Ability{
		Name:        a.Name,
		Kind:        kind,
		Description: a.Description,
		Narrative:   a.Chat,
		Dice:        spec,
	}, nil
}
