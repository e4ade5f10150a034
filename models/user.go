package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a local snapshot of account data needed for check-in processing.
// Owned and managed solely by this service; populated via sync worker from
// the profile service. PhoneNumber is stored in canonical digits-only form
// (see utils.NormalizePhone) so WhatsApp sender resolution is a plain index
// lookup.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Name           string    `gorm:"index;not null" json:"name"`
	Email          string    `json:"email,omitempty"`
	PhoneNumber    *string   `gorm:"index" json:"phone_number,omitempty"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RemoteUser mirrors the schema of the profile service's `users` table
// (read-only). Used by the contact sync worker to fetch account data.
type RemoteUser struct {
	ID          uint       `gorm:"column:id"`
	Name        string     `gorm:"column:name"`
	Email       string     `gorm:"column:email"`
	PhoneNumber *string    `gorm:"column:phone_number"`
	AvatarURL   *string    `gorm:"column:avatar_url"`
	ExternalID  string     `gorm:"column:external_id"` // links to our User.ExternalUserID
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
}

// Team groups users for team-scoped challenges.
type Team struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null" json:"name"`
	OwnerID uint   `gorm:"index;not null" json:"owner_id"`

	Timestamps
}
