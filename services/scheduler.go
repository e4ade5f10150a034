// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"habit-challenge-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartRolloverSweep launches the periodic backstop for the lazy rollover
// check: a participation left untouched past its window would otherwise
// stay "active" in storage until the next read. The sweep touches every
// live participation once an hour so displayed status is never more than an
// hour stale even without traffic.
func (s *ParticipationService) StartRolloverSweep() {
	sched, _ := gocron.NewScheduler(gocron.WithClock(s.Clock))
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			var ids []uint
			err := s.DB.Model(&models.Participation{}).
				Where("status = ?", models.ParticipationActive).
				Pluck("id", &ids).Error
			if err != nil {
				log.Printf("[Sweep] DB error: %v", err)
				return
			}

			var settled int
			for _, id := range ids {
				p, err := s.RefreshDay(id)
				if err != nil {
					// One malformed participation must not block the rest.
					if errors.Is(err, ErrInvariant) {
						log.Printf("[Sweep] skipping participation %d: %v", id, err)
						continue
					}
					log.Printf("[Sweep] failed to refresh participation %d: %v", id, err)
					continue
				}
				if p.Terminal() {
					settled++
				}
			}
			if settled > 0 {
				log.Printf("[Sweep] settled %d elapsed participations", settled)
			}
		}),
	)
}
