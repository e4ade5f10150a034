package services

import (
	"errors"
	"fmt"
	"time"

	"habit-challenge-system/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Sentinel errors for the expected rejection conditions. Callers map these
// to validation responses (web) or failure acks (webhook); everything else
// propagates as a storage error for the transport layer's retry policy.
var (
	// ErrOutsideWindow: the event date is before the calendar start or
	// after the anchor date. The one case the caller must be told "no"
	// instead of silently no-op'd.
	ErrOutsideWindow = errors.New("check-in date outside challenge window")

	// ErrParticipationNotActive: check-ins only accrue to active
	// participations.
	ErrParticipationNotActive = errors.New("participation is not active")

	// ErrInvariant marks malformed accounting state (zero-duration
	// challenge, missing rows). The sweep logs and skips these; they must
	// never take down the ingestion pipeline.
	ErrInvariant = errors.New("participation accounting invariant violated")
)

// RecordOutcome discriminates the success paths of Record.
type RecordOutcome string

const (
	RecordCreated   RecordOutcome = "created"
	RecordDuplicate RecordOutcome = "duplicate" // delivered before; success, never an error
)

// CheckinEvent is the canonical inbound event, already normalized by the
// web handler or the WhatsApp ingest worker.
type CheckinEvent struct {
	ParticipationID uint
	TaskID          uint
	OccurredAt      time.Time
	DedupToken      *string // provider message id, nil for plain web posts
	Source          string
	Message         *string
	ImageURL        *string
}

// RecordResult is what Record hands back on the success paths.
type RecordResult struct {
	Outcome RecordOutcome
	Checkin *models.Checkin
}

type CheckinService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewCheckinService(db *gorm.DB, clock clockwork.Clock) *CheckinService {
	return &CheckinService{DB: db, Clock: clock}
}

// Record is the single entry point for check-in ingestion, web and webhook
// alike. Window validation, both idempotency guards, the insert, the
// derived-field recompute and the rollover evaluation all run inside one
// transaction so a concurrent duplicate or rollover cannot interleave into
// inconsistent derived state.
func (s *CheckinService) Record(ev CheckinEvent) (*RecordResult, error) {
	var result *RecordResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var p models.Participation
		if err := tx.Preload("Challenge.Tasks").First(&p, ev.ParticipationID).Error; err != nil {
			return fmt.Errorf("participation %d: %w", ev.ParticipationID, err)
		}
		if p.Status != models.ParticipationActive {
			return ErrParticipationNotActive
		}
		if p.Challenge.DurationDays < 1 {
			return fmt.Errorf("%w: challenge %d has duration %d", ErrInvariant, p.ChallengeID, p.Challenge.DurationDays)
		}

		now := s.Clock.Now()
		w := ResolveWindow(&p.Challenge, &p)
		anchor := AnchorDate(now, w.End)
		if !IsWithinWindow(w.Start, anchor, ev.OccurredAt) {
			return ErrOutsideWindow
		}

		// Idempotency guard, token first: an exact redelivery carries the
		// same provider message id.
		if ev.DedupToken != nil && *ev.DedupToken != "" {
			var prior models.Checkin
			err := tx.Where("dedup_token = ?", *ev.DedupToken).First(&prior).Error
			if err == nil {
				result = &RecordResult{Outcome: RecordDuplicate, Checkin: &prior}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		day := DayIndex(w.Start, ev.OccurredAt, w.DurationDays)

		// Natural-key guard: same (participation, task, day) from another
		// delivery, another source, or a retry without a token.
		var prior models.Checkin
		err := tx.Where("participation_id = ? AND task_id = ? AND challenge_day = ?", p.ID, ev.TaskID, day).
			First(&prior).Error
		if err == nil {
			result = &RecordResult{Outcome: RecordDuplicate, Checkin: &prior}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		checkin := models.Checkin{
			ParticipationID: p.ID,
			TaskID:          ev.TaskID,
			CheckedAt:       ev.OccurredAt,
			ChallengeDay:    day,
			Source:          ev.Source,
			DedupToken:      ev.DedupToken,
			Status:          models.CheckinApproved,
			Message:         ev.Message,
			ImageURL:        ev.ImageURL,
		}
		if err := tx.Create(&checkin).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost a race against an identical concurrent insert. The
				// unique constraint is the authority; treat as duplicate.
				result = &RecordResult{Outcome: RecordDuplicate}
				return nil
			}
			return err
		}

		if err := refreshProgress(tx, &p, &p.Challenge, now); err != nil {
			return err
		}

		result = &RecordResult{Outcome: RecordCreated, Checkin: &checkin}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete soft-deletes a check-in and recomputes the owning participation.
func (s *CheckinService) Delete(checkinID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var checkin models.Checkin
		if err := tx.First(&checkin, checkinID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&checkin).Error; err != nil {
			return err
		}

		var p models.Participation
		if err := tx.Preload("Challenge.Tasks").First(&p, checkin.ParticipationID).Error; err != nil {
			return err
		}
		return refreshProgress(tx, &p, &p.Challenge, s.Clock.Now())
	})
}

// SetStatus moderates a check-in (approve/reject). Moderation metadata
// only; a rejected check-in stays live for accounting until deleted.
func (s *CheckinService) SetStatus(checkinID uint, status string) (*models.Checkin, error) {
	if status != models.CheckinApproved && status != models.CheckinRejected && status != models.CheckinPending {
		return nil, fmt.Errorf("invalid check-in status %q", status)
	}
	var checkin models.Checkin
	if err := s.DB.First(&checkin, checkinID).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&checkin).Update("status", status).Error; err != nil {
		return nil, err
	}
	return &checkin, nil
}

// InWindow returns a participation's live check-ins between two dates,
// inclusive, ordered by challenge day.
func (s *CheckinService) InWindow(participationID uint, from, to time.Time) ([]models.Checkin, error) {
	var checkins []models.Checkin
	err := s.DB.Where("participation_id = ? AND checked_at >= ? AND checked_at < ?",
		participationID, DateOnly(from), DateOnly(to).AddDate(0, 0, 1)).
		Order("challenge_day ASC, task_id ASC").
		Find(&checkins).Error
	return checkins, err
}
