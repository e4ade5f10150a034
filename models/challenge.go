package models

import (
	"time"
)

// Challenge visibility scopes
const (
	VisibilityPrivate = "private"
	VisibilityTeam    = "team"
	VisibilityGlobal  = "global"
)

// TaskScopeOffset namespaces private-challenge hashtags away from team ids.
// Private scope_id = TaskScopeOffset + challenge_id, team scope_id = team_id,
// global scope_id = 0.
const TaskScopeOffset uint = 1_000_000_000

// MaxDurationDays caps a challenge window; DurationDays is always clamped
// into [1, MaxDurationDays] when dates change.
const MaxDurationDays = 365

// Challenge is a time-boxed, multi-task habit program.
type Challenge struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   *time.Time `json:"start_date,omitempty"` // date-granularity; nil = each participation uses its own started_at
	EndDate     *time.Time `json:"end_date,omitempty"`

	// DurationDays is derived as end-start+1 and recomputed whenever the
	// dates change, clamped to [1, MaxDurationDays].
	DurationDays int `gorm:"default:30" json:"duration_days"`

	Visibility string `gorm:"type:varchar(16);default:'private';index" json:"visibility"`
	OwnerID    uint   `gorm:"index;not null" json:"owner_id"`
	TeamID     *uint  `gorm:"index" json:"team_id,omitempty"` // required iff visibility=team

	// Cached counter, refreshed on join/abandon/terminal transitions.
	// Best-effort; never a correctness dependency.
	ParticipantsCount int64 `gorm:"default:0" json:"participants_count"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:ChallengeID"`

	Timestamps
}

// TaskScopeID returns the hashtag-uniqueness namespace for this challenge.
func (c *Challenge) TaskScopeID() uint {
	switch c.Visibility {
	case VisibilityGlobal:
		return 0
	case VisibilityTeam:
		if c.TeamID != nil {
			return *c.TeamID
		}
		return 0
	default:
		return TaskScopeOffset + c.ID
	}
}

// Task is one trackable sub-habit within a challenge, identified by a
// hashtag unique within (scope_id, hashtag).
type Task struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ChallengeID uint   `gorm:"not null;index" json:"challenge_id"`
	Hashtag     string `gorm:"not null;uniqueIndex:idx_tasks_scope_hashtag,priority:2" json:"hashtag"` // lowercase slug
	Name        string `json:"name"`
	IsRequired  bool   `gorm:"default:true" json:"is_required"`
	ScopeID     uint   `gorm:"not null;uniqueIndex:idx_tasks_scope_hashtag,priority:1" json:"scope_id"`

	Timestamps
}
