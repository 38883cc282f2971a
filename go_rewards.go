package go_rewards

import (
	"gorm.io/gorm"

	db2 "github.com/launchkit/go-rewards/internal/db"
	"github.com/launchkit/go-rewards/internal/serviceimpl"
	"github.com/launchkit/go-rewards/service"
)

// RewardsEngine bundles the referral attribution, tier progression and
// discount redemption services behind one constructor. All state lives in
// the injected database; the engine holds no long-lived in-memory state.
type RewardsEngine struct {
	Seasons   service.SeasonService
	Referrals service.ReferralService
	Stats     service.StatsService
	Rewards   service.RewardService
	Discounts service.DiscountService
	Worker    service.Worker
}

func NewRewardsEngine(db *gorm.DB) *RewardsEngine {
	db2.Migrate(db)
	discounts := serviceimpl.NewDiscountService(db)
	return &RewardsEngine{
		Seasons:   serviceimpl.NewSeasonService(db),
		Referrals: serviceimpl.NewReferralService(db),
		Stats:     serviceimpl.NewStatsService(db),
		Rewards:   serviceimpl.NewRewardService(db, discounts),
		Discounts: discounts,
		Worker:    serviceimpl.NewWorkerService(db),
	}
}
