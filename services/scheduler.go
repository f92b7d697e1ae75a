// services/scheduler.go
package services

import (
	"log"
	"time"

	"agent-mission-system/models"

	"github.com/go-co-op/gocron/v2"
)

func (s *MissionService) StartExpiryScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: cancel active missions past their expiry
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var missions []models.Mission
			now := time.Now()
			err := s.DB.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
				models.MissionStatusActive, now).
				Find(&missions).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, m := range missions {
				m.Status = models.MissionStatusCancelled
				if err := s.DB.Save(&m).Error; err != nil {
					log.Printf("[Scheduler] Failed to expire mission %s: %v", m.ID, err)
				} else {
					log.Printf("✅ Auto-expired mission: %s", m.Code)
				}
			}
		}),
	)
}
