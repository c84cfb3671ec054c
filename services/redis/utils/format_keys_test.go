package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatKeys(t *testing.T) {
	assert.Equal(t, "pubkey:alice", FormatPublicKeyKey("alice"))
	assert.Equal(t, "ability:Fireball", FormatAbilityKey("Fireball"))
	assert.Equal(t, "player:alice:room", FormatPlayerRoomKey("alice"))
}
