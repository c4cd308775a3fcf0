// services/scheduler.go
package services

import (
	"log"
	"time"

	"gamification-engine/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweeper runs the scheduled sweep that cancels open offers whose
// end date has passed, refunding all escrowed coins. Deadlines and end dates
// are advisory inside the engine; this sweep is the external enforcement hook.
func (s *MarketService) StartExpirySweeper(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.SweepExpiredOffers(time.Now())
		}),
	)
}

// SweepExpiredOffers cancels every open offer past its end date. Exported so
// the sweep can be triggered directly in tests and admin tooling.
func (s *MarketService) SweepExpiredOffers(now time.Time) {
	var offers []models.Offer
	err := s.DB.Where("status = ? AND end_date IS NOT NULL AND end_date <= ?", models.OfferStatusOpen, now).
		Find(&offers).Error
	if err != nil {
		log.Printf("[Sweeper] DB error: %v", err)
		return
	}

	for i := range offers {
		if _, err := s.cancelOffer(&offers[i]); err != nil {
			log.Printf("[Sweeper] Failed to cancel expired offer %s: %v", offers[i].ID, err)
		} else {
			log.Printf("✅ Expired offer cancelled: %s", offers[i].Name)
		}
	}
}
