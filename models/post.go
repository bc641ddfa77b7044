package models

import "time"

// Post represents a blog entry. The author's name and avatar are denormalized
// onto the row so the feed renders without joining users. Likes is a derived
// counter; only the like toggle transaction may write it.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Username  string    `gorm:"size:64;index;not null" json:"username"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	Album     string    `gorm:"type:text" json:"album,omitempty"` // opaque JSON from the album picker, stored and returned verbatim
	Likes     int64     `gorm:"not null;default:0" json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
