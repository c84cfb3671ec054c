package config

import (
	"log"

	"Forest/services/redis"
)

// Connect to Redis. Presence entries are flushed since rooms do not survive a restart.
func Connect_redis(settings Settings) (*redis.RedisClient, error) {
	redisClient, err := redis.InitRedis(settings.RedisURL, 0, true)
	if err != nil {
		log.Printf("Error connecting to Redis: %v", err)
		return nil, err
	}
	log.Println("Redis connection established")
	return redisClient, nil
}
