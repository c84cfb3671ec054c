// Package catalog resolves abilities, characters and public keys through the
// redis cache in front of the store.
package catalog

import (
	"context"
	"errors"
	"fmt"

	game_constants "Forest/constants/game"
	"Forest/services/combat"
	"Forest/services/game"
	"Forest/services/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrLoadoutSize     = fmt.Errorf("a character needs exactly %d abilities", game_constants.AbilitySlots)
	ErrUnknownAbility  = errors.New("unknown ability")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrUnknownCharacter = errors.New("unknown character")
)

// AbilityCache is the subset of the redis client used for abilities.
type AbilityCache interface {
	GetAbility(ctx context.Context, name string) (combat.Ability, bool, error)
	SetAbility(ctx context.Context, ability combat.Ability) error
}

// KeyCache is the subset of the redis client used for public keys.
type KeyCache interface {
	GetPublicKey(ctx context.Context, username string) (string, bool, error)
	SetPublicKey(ctx context.Context, username, publicKey string) error
}

// Catalog implements game.AbilitySource. Both caches may be nil.
type Catalog struct {
	store     store.Store
	abilities AbilityCache
	keys      KeyCache
	group     singleflight.Group
	logger    *zap.Logger
}

var _ game.AbilitySource = (*Catalog)(nil)

func New(s store.Store, abilities AbilityCache, keys KeyCache, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{store: s, abilities: abilities, keys: keys, logger: logger.Named("catalog")}
}

// Lookup returns the ability called name. A cache failure falls through to the store.
func (c *Catalog) Lookup(ctx context.Context, name string) (combat.Ability, bool, error) {
	if c.abilities != nil {
		ability, ok, err := c.abilities.GetAbility(ctx, name)
		if err != nil {
			c.logger.Warn("[CATALOG] ability cache read failed", zap.String("ability", name), zap.Error(err))
		} else if ok {
			return ability, true, nil
		}
	}

	v, err, _ := c.group.Do("ability:"+name, func() (any, error) {
		row, err := c.store.GetAbility(ctx, name)
		if err != nil {
			return nil, err
		}
		ability, err := row.ToCombat()
		if err != nil {
			return nil, fmt.Errorf("ability %q: %w", name, err)
		}
		if c.abilities != nil {
			if err := c.abilities.SetAbility(ctx, ability); err != nil {
				c.logger.Warn("[CATALOG] ability cache write failed", zap.String("ability", name), zap.Error(err))
			}
		}
		return ability, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return combat.Ability{}, false, nil
	}
	if err != nil {
		return combat.Ability{}, false, err
	}
	return v.(combat.Ability), true, nil
}

// ValidateLoadout checks that names holds exactly AbilitySlots known abilities.
func (c *Catalog) ValidateLoadout(ctx context.Context, names []string) error {
	if len(names) != game_constants.AbilitySlots {
		return ErrLoadoutSize
	}
	for _, name := range names {
		_, ok, err := c.Lookup(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAbility, name)
		}
	}
	return nil
}

// Character loads owner's character called name as a match loadout.
func (c *Catalog) Character(ctx context.Context, owner, name string) (game.Character, error) {
	row, err := c.store.GetCharacter(ctx, owner, name)
	if errors.Is(err, store.ErrNotFound) {
		return game.Character{}, fmt.Errorf("%w: %s", ErrUnknownCharacter, name)
	}
	if err != nil {
		return game.Character{}, err
	}
	names, err := row.AbilityNames()
	if err != nil {
		return game.Character{}, fmt.Errorf("character %q: %w", name, err)
	}
	return game.Character{Name: row.Name, Abilities: names}, nil
}

// PublicKey returns the exported public key a player registered.
func (c *Catalog) PublicKey(ctx context.Context, username string) (string, error) {
	if c.keys != nil {
		key, ok, err := c.keys.GetPublicKey(ctx, username)
		if err != nil {
			c.logger.Warn("[CATALOG] key cache read failed", zap.String("player", username), zap.Error(err))
		} else if ok {
			return key, nil
		}
	}

	v, err, _ := c.group.Do("pubkey:"+username, func() (any, error) {
		user, err := c.store.GetUser(ctx, username)
		if err != nil {
			return "", err
		}
		if c.keys != nil && user.PublicKey != "" {
			if err := c.keys.SetPublicKey(ctx, username, user.PublicKey); err != nil {
				c.logger.Warn("[CATALOG] key cache write failed", zap.String("player", username), zap.Error(err))
			}
		}
		return user.PublicKey, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlayer, username)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetPublicKey records a new key for username in the store and the cache.
func (c *Catalog) SetPublicKey(ctx context.Context, username, publicKey string) error {
	if err := c.store.SetPublicKey(ctx, username, publicKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownPlayer, username)
		}
		return err
	}
	if c.keys != nil {
		if err := c.keys.SetPublicKey(ctx, username, publicKey); err != nil {
			c.logger.Warn("[CATALOG] key cache write failed", zap.String("player", username), zap.Error(err))
		}
	}
	return nil
}
