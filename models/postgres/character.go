package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

/*
 * 'Character' is a named loadout of ability names owned by one User. The name
 * is unique per owner.
 */
type Character struct {
	ID          uint           `gorm:"primaryKey"`
	Owner       string         `gorm:"size:50;not null;uniqueIndex:idx_owner_name"`
	Name        string         `gorm:"size:50;not null;uniqueIndex:idx_owner_name"`
	Description string         `gorm:"type:text"`
	Abilities   datatypes.JSON `gorm:"type:jsonb;default:'[]'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AbilityNames decodes the stored loadout.
func (c Character) AbilityNames() ([]string, error) {
	if len(c.Abilities) == 0 {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal(c.Abilities, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// SetAbilityNames encodes names into the jsonb column.
func (c *Character) SetAbilityNames(names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	c.Abilities = datatypes.JSON(data)
	return nil
}
