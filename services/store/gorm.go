package store

import (
	"context"
	"errors"
	"fmt"

	models "Forest/models/postgres"

	"gorm.io/gorm"
)

// Gorm implements Store on top of the Postgres models.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *Gorm) CreateUser(ctx context.Context, user models.User) error {
	var count int64
	if err := g.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("user %q: %w", user.Username, ErrExists)
	}
	return g.db.WithContext(ctx).Create(&user).Error
}

func (g *Gorm) GetUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return user, notFound(err)
}

func (g *Gorm) SetPublicKey(ctx context.Context, username, publicKey string) error {
	res := g.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Update("public_key", publicKey)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) ListCharacters(ctx context.Context, owner string) ([]models.Character, error) {
	var out []models.Character
	err := g.db.WithContext(ctx).Where("owner = ?", owner).Order("name").Find(&out).Error
	return out, err
}

func (g *Gorm) GetCharacter(ctx context.Context, owner, name string) (models.Character, error) {
	var c models.Character
	err := g.db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).First(&c).Error
	return c, notFound(err)
}

func (g *Gorm) CreateCharacter(ctx context.Context, c models.Character) error {
	_, err := g.GetCharacter(ctx, c.Owner, c.Name)
	switch {
	case err == nil:
		return fmt.Errorf("character %q: %w", c.Name, ErrExists)
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return g.db.WithContext(ctx).Create(&c).Error
}

func (g *Gorm) UpdateCharacter(ctx context.Context, owner, name string, c models.Character) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Character
		if err := tx.Where("owner = ? AND name = ?", owner, name).First(&current).Error; err != nil {
			return notFound(err)
		}
		if c.Name != name {
			var count int64
			if err := tx.Model(&models.Character{}).Where("owner = ? AND name = ?", owner, c.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("character %q: %w", c.Name, ErrExists)
			}
		}
		return tx.Model(&current).Updates(map[string]any{
			"name":        c.Name,
			"description": c.Description,
			"abilities":   c.Abilities,
		}).Error
	})
}

func (g *Gorm) DeleteCharacter(ctx context.Context, owner, name string) error {
	res := g.db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).Delete(&models.Character{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) ListAbilities(ctx context.Context) ([]models.Ability, error) {
	var out []models.Ability
	err := g.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (g *Gorm) GetAbility(ctx context.Context, name string) (models.Ability, error) {
	var a models.Ability
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&a).Error
	return a, notFound(err)
}
