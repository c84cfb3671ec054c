// Package store is the account and catalog collaborator: players, their
// characters and the ability catalog.
package store

import (
	"context"
	"errors"

	models "Forest/models/postgres"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

type Accounts interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, username string) (models.User, error)
	SetPublicKey(ctx context.Context, username, publicKey string) error
}

type Characters interface {
	ListCharacters(ctx context.Context, owner string) ([]models.Character, error)
	GetCharacter(ctx context.Context, owner, name string) (models.Character, error)
	CreateCharacter(ctx context.Context, c models.Character) error
	// UpdateCharacter replaces the character currently called name.
	UpdateCharacter(ctx context.Context, owner, name string, c models.Character) error
	DeleteCharacter(ctx context.Context, owner, name string) error
}

type Abilities interface {
	ListAbilities(ctx context.Context) ([]models.Ability, error)
	GetAbility(ctx context.Context, name string) (models.Ability, error)
}

// Store bundles every collaborator the server needs.
type Store interface {
	Accounts
	Characters
	Abilities
}
