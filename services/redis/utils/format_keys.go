package utils

/**
 * This file contains utility functions to format the keys for Redis
 * (key, value) pairs. It avoids having to call "fmt.Sprintf(...)"
 * with the same format spec every time, potentially confusing the key format.
 */

import "fmt"

func FormatPublicKeyKey(username string) string {
	return fmt.Sprintf("pubkey:%s", username)
}

func FormatAbilityKey(name string) string {
	return fmt.Sprintf("ability:%s", name)
}

func FormatPlayerRoomKey(username string) string {
	return fmt.Sprintf("player:%s:room", username)
}
