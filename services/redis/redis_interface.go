package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Forest/services/combat"
	redis_utils "Forest/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

const (
	PublicKeyTTL = 24 * time.Hour
	AbilityTTL   = time.Hour
	PresenceTTL  = 24 * time.Hour
)

// SetPublicKey caches a player's exported public key
// Key format: "pubkey:{username}"
// TTL: 24 hours
func (rc *RedisClient) SetPublicKey(ctx context.Context, username, publicKey string) error {
	key := redis_utils.FormatPublicKeyKey(username)
	if err := rc.client.Set(ctx, key, publicKey, PublicKeyTTL).Err(); err != nil {
		return fmt.Errorf("error caching public key: %v", err)
	}
	return nil
}

// GetPublicKey returns the cached public key of a player
// Key format: "pubkey:{username}"
// Returns: key, whether it was cached, error
func (rc *RedisClient) GetPublicKey(ctx context.Context, username string) (string, bool, error) {
	key := redis_utils.FormatPublicKeyKey(username)
	value, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error getting public key: %v", err)
	}
	return value, true, nil
}

// SetAbility caches an ability definition
// Key format: "ability:{name}"
// TTL: 1 hour
func (rc *RedisClient) SetAbility(ctx context.Context, ability combat.Ability) error {
	data, err := json.Marshal(ability)
	if err != nil {
		return fmt.Errorf("error marshaling ability: %v", err)
	}
	key := redis_utils.FormatAbilityKey(ability.Name)
	return rc.client.Set(ctx, key, data, AbilityTTL).Err()
}

// GetAbility retrieves a cached ability definition
// Key format: "ability:{name}"
// Returns: ability, whether it was cached, error
func (rc *RedisClient) GetAbility(ctx context.Context, name string) (combat.Ability, bool, error) {
	key := redis_utils.FormatAbilityKey(name)
	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return combat.Ability{}, false, nil
	}
	if err != nil {
		return combat.Ability{}, false, fmt.Errorf("error getting ability: %v", err)
	}

	var ability combat.Ability
	if err := json.Unmarshal(data, &ability); err != nil {
		return combat.Ability{}, false, fmt.Errorf("error unmarshaling ability: %v", err)
	}
	return ability, true, nil
}

// SetPlayerRoom records which room a player is in
// Key format: "player:{username}:room"
// TTL: 24 hours
func (rc *RedisClient) SetPlayerRoom(ctx context.Context, username, roomCode string) error {
	key := redis_utils.FormatPlayerRoomKey(username)
	return rc.client.Set(ctx, key, roomCode, PresenceTTL).Err()
}

// GetPlayerRoom retrieves the room a player was last seen in
// Key format: "player:{username}:room"
func (rc *RedisClient) GetPlayerRoom(ctx context.Context, username string) (string, bool, error) {
	key := redis_utils.FormatPlayerRoomKey(username)
	code, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error getting player's room: %v", err)
	}
	return code, true, nil
}

// ClearPlayerRoom removes the presence entry if it still points at roomCode
// Key format: "player:{username}:room"
func (rc *RedisClient) ClearPlayerRoom(ctx context.Context, username, roomCode string) error {
	key := redis_utils.FormatPlayerRoomKey(username)
	err := rc.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) || (err == nil && current != roomCode) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("error clearing player's room: %v", err)
	}
	return nil
}
