package postgres

import (
	"time"
)

/*
 * 'User' contains the blueprint definition of a player account. The public key
 * is the participant's base64 SPKI export, used to address envelopes to them.
 */
type User struct {
	Username     string    `gorm:"primaryKey;size:50;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	PublicKey    string    `gorm:"type:text"`
	MemberSince  time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	Characters []Character `gorm:"foreignKey:Owner;references:Username;constraint:OnDelete:CASCADE"`
}
