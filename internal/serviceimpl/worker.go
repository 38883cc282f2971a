package serviceimpl

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/service"
)

// worker runs the time-based maintenance nothing on the request path
// triggers: clicked referrals that never signed up eventually move to
// expired so stats stop counting them as live prospects.
type worker struct {
	DB        *gorm.DB
	scheduler gocron.Scheduler
}

var _ service.Worker = &worker{}

func NewWorkerService(db *gorm.DB) *worker {
	return &worker{DB: db}
}

// ExpireStaleReferrals transitions clicked referrals older than the window
// (and still unattributed) to expired, returning the number of rows moved.
// The status guard keeps the transition safe against a concurrent signup:
// a row that just upgraded to signed_up is not matched.
func (w *worker) ExpireStaleReferrals(window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, errors.New("expiry window must be positive")
	}
	cutoff := time.Now().Add(-window)

	res := w.DB.Model(&models.Referral{}).
		Where("status = ? AND referred_user_id IS NULL AND click_date < ?",
			models.ReferralStatusClicked, cutoff).
		Update("status", models.ReferralStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire stale referrals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// StartExpiryScheduler runs ExpireStaleReferrals on a fixed interval for
// deployments that want the engine to drive its own expiry. Callers that
// batch-trigger from an external job can skip this and call
// ExpireStaleReferrals directly.
func (w *worker) StartExpiryScheduler(interval, window time.Duration) error {
	if w.scheduler != nil {
		return errors.New("expiry scheduler already running")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			expired, err := w.ExpireStaleReferrals(window)
			if err != nil {
				log.Printf("[expiry] failed to expire stale referrals: %v", err)
				return
			}
			if expired > 0 {
				log.Printf("[expiry] expired %d stale referrals", expired)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry job: %w", err)
	}

	sched.Start()
	w.scheduler = sched
	return nil
}

func (w *worker) StopExpiryScheduler() error {
	if w.scheduler == nil {
		return nil
	}
	err := w.scheduler.Shutdown()
	w.scheduler = nil
	return err
}
