package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a blog account. Local passwords are stored as bcrypt hashes
// only; OAuth accounts carry the provider identity instead. The avatar
// reference is written once at registration and never rewritten afterwards.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Provider     string    `gorm:"size:32" json:"provider"`
	ProviderID   string    `gorm:"size:255;index" json:"-"`
	AvatarURL    string    `gorm:"size:512" json:"avatar_url"`
	Description  string    `gorm:"size:512" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
