package models

import (
	"time"

	"gorm.io/gorm"
)

// Participation statuses. Exactly one row per (user, challenge) pair;
// rejoin reactivates the existing row instead of creating a new one.
const (
	ParticipationActive    = "active"
	ParticipationPaused    = "paused"
	ParticipationAbandoned = "abandoned"
	ParticipationCompleted = "completed"
	ParticipationExpired   = "expired"
)

// Participation is one user's enrollment in one challenge, carrying all
// cached derived progress state. The derived fields are recomputed together
// on every mutating event; they are a cache of RecomputeProgress over the
// participation's live check-ins, never the source of truth.
type Participation struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	UserID      uint `gorm:"not null;uniqueIndex:idx_participations_user_challenge,priority:1" json:"user_id"`
	ChallengeID uint `gorm:"not null;uniqueIndex:idx_participations_user_challenge,priority:2" json:"challenge_id"`

	Status string `gorm:"type:varchar(16);default:'active';index" json:"status"`

	// StartedAt is the fallback calendar start used only when the challenge
	// has no explicit start_date. Resume shifts it forward by the paused
	// duration so pauses do not penalize personal calendars.
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Derived cached fields.
	CurrentDay     int     `gorm:"default:1" json:"current_day"`
	TotalCheckins  int64   `gorm:"default:0" json:"total_checkins"`
	StreakDays     int     `gorm:"default:0" json:"streak_days"`
	BestStreak     int     `gorm:"default:0" json:"best_streak"` // monotonically non-decreasing
	CompletionRate float64 `gorm:"default:0" json:"completion_rate"`

	Challenge Challenge `json:"challenge,omitempty" gorm:"foreignKey:ChallengeID"`
	Checkins  []Checkin `json:"checkins,omitempty" gorm:"foreignKey:ParticipationID"`

	Timestamps
}

// Terminal reports whether the participation's accounting epoch is closed.
// A terminal participation only changes state again via rejoin.
func (p *Participation) Terminal() bool {
	return p.Status == ParticipationAbandoned ||
		p.Status == ParticipationCompleted ||
		p.Status == ParticipationExpired
}

// Timestamps adds GORM auto-times plus soft delete.
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
