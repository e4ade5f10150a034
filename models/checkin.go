package models

import (
	"time"
)

// Checkin sources
const (
	CheckinSourceWeb      = "web"
	CheckinSourceWhatsApp = "whatsapp"
)

// Checkin moderation statuses
const (
	CheckinPending  = "pending"
	CheckinApproved = "approved"
	CheckinRejected = "rejected"
)

// Checkin is one completed instance of a task on a specific challenge day,
// optionally carrying proof (image/message).
//
// The partial unique index on (participation_id, task_id, challenge_day)
// over live rows is the engine's core idempotency constraint: two racing
// inserts for the same natural key must collide at the storage layer, not
// merely in an application-level existence check. DedupToken plays the same
// role for exact webhook redelivery.
type Checkin struct {
	ID              uint `gorm:"primaryKey" json:"id"`
	ParticipationID uint `gorm:"not null;uniqueIndex:idx_checkins_natural_key,priority:1,where:deleted_at IS NULL" json:"participation_id"`
	TaskID          uint `gorm:"not null;uniqueIndex:idx_checkins_natural_key,priority:2" json:"task_id"`

	// CheckedAt is authoritative for day placement; ChallengeDay is computed
	// from it and the challenge calendar start at insert time, which is what
	// makes retroactive check-ins land on the right day.
	CheckedAt    time.Time `gorm:"not null" json:"checked_at"`
	ChallengeDay int       `gorm:"not null;uniqueIndex:idx_checkins_natural_key,priority:3" json:"challenge_day"`

	Source     string  `gorm:"type:varchar(16);default:'web'" json:"source"`
	DedupToken *string `gorm:"uniqueIndex:idx_checkins_dedup_token,where:deleted_at IS NULL" json:"dedup_token,omitempty"` // provider message id
	Status     string  `gorm:"type:varchar(16);default:'approved'" json:"status"`

	Message  *string `gorm:"type:text" json:"message,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`

	Timestamps
}

func (Checkin) TableName() string {
	return "checkins"
}
