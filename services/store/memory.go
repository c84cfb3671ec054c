package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	models "Forest/models/postgres"
)

type characterKey struct{ owner, name string }

// Memory is an in-process Store for tests and local runs without Postgres.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]models.User
	characters map[characterKey]models.Character
	abilities  map[string]models.Ability

	abilityReads int
}

func NewMemory(abilities ...models.Ability) *Memory {
	m := &Memory{
		users:      make(map[string]models.User),
		characters: make(map[characterKey]models.Character),
		abilities:  make(map[string]models.Ability),
	}
	for _, a := range abilities {
		m.abilities[a.Name] = a
	}
	return m
}

func (m *Memory) CreateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return fmt.Errorf("user %q: %w", user.Username, ErrExists)
	}
	m.users[user.Username] = user
	return nil
}

func (m *Memory) GetUser(_ context.Context, username string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) SetPublicKey(_ context.Context, username, publicKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.PublicKey = publicKey
	m.users[username] = u
	return nil
}

func (m *Memory) ListCharacters(_ context.Context, owner string) ([]models.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Character{}
	for k, c := range m.characters {
		if k.owner == owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetCharacter(_ context.Context, owner, name string) (models.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.characters[characterKey{owner, name}]
	if !ok {
		return models.Character{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateCharacter(_ context.Context, c models.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := characterKey{c.Owner, c.Name}
	if _, ok := m.characters[key]; ok {
		return fmt.Errorf("character %q: %w", c.Name, ErrExists)
	}
	m.characters[key] = c
	return nil
}

func (m *Memory) UpdateCharacter(_ context.Context, owner, name string, c models.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := characterKey{owner, name}
	current, ok := m.characters[old]
	if !ok {
		return ErrNotFound
	}
	next := characterKey{owner, c.Name}
	if next != old {
		if _, taken := m.characters[next]; taken {
			return fmt.Errorf("character %q: %w", c.Name, ErrExists)
		}
		delete(m.characters, old)
	}
	current.Name = c.Name
	current.Description = c.Description
	current.Abilities = c.Abilities
	m.characters[next] = current
	return nil
}

func (m *Memory) DeleteCharacter(_ context.Context, owner, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := characterKey{owner, name}
	if _, ok := m.characters[key]; !ok {
		return ErrNotFound
	}
	delete(m.characters, key)
	return nil
}

func (m *Memory) ListAbilities(_ context.Context) ([]models.Ability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Ability, 0, len(m.abilities))
	for _, a := range m.abilities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetAbility(_ context.Context, name string) (models.Ability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abilityReads++
	a, ok := m.abilities[name]
	if !ok {
		return models.Ability{}, ErrNotFound
	}
	return a, nil
}

// Reads returns how many ability reads reached the store.
func (m *Memory) Reads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.abilityReads
}
