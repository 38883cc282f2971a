package serviceimpl

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/request"
	"github.com/launchkit/go-rewards/service"
)

type rewardService struct {
	DB        *gorm.DB
	Discounts service.DiscountService
}

var _ service.RewardService = &rewardService{}

func NewRewardService(db *gorm.DB, discounts service.DiscountService) *rewardService {
	return &rewardService{DB: db, Discounts: discounts}
}

// CheckTierProgress grants every tier of the default season whose requirement
// the user's successful referrals now meet, skipping tiers already granted.
// Safe to call after every conversion: repeat invocations grant nothing new
// and only the newly granted rewards are returned.
func (s *rewardService) CheckTierProgress(userID string) ([]models.ReferralReward, error) {
	var stats models.ReferralStats
	if err := s.DB.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch stats for user %s: %w", userID, err)
	}

	var season models.ReferralSeason
	if err := s.DB.Where("is_default = ? AND is_active = ?", true, true).
		First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch default season: %w", err)
	}

	var tiers []models.ReferralTier
	if err := s.DB.Where("season_id = ? AND is_active = ?", season.ID, true).
		Order("referrals_required ASC, sort_order ASC, id ASC").
		Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tiers: %w", err)
	}

	var granted []models.ReferralReward
	for _, tier := range tiers {
		if stats.SuccessfulReferrals < tier.ReferralsRequired {
			break
		}

		var count int64
		if err := s.DB.Model(&models.ReferralReward{}).
			Where("user_id = ? AND tier_id = ?", userID, tier.ID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check existing reward: %w", err)
		}
		if count > 0 {
			continue
		}

		reward, err := s.GrantReward(userID, tier)
		if err != nil {
			return nil, err
		}
		if reward != nil {
			granted = append(granted, *reward)
		}
	}

	return granted, nil
}

// GrantReward inserts the grant record for a met tier, then mints and links
// a discount code when the tier rewards one. The (user_id, tier_id) unique index
// is the backstop against concurrent double grants: losing the race returns
// (nil, nil), not an error.
func (s *rewardService) GrantReward(userID string, tier models.ReferralTier) (*models.ReferralReward, error) {
	reward := &models.ReferralReward{
		UserID:     userID,
		TierID:     tier.ID,
		SeasonID:   tier.SeasonID,
		RewardType: tier.RewardType,
		RewardData: tier.RewardValue,
		IsUnlocked: true,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reward).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ReferralStats{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"total_rewards_earned": gorm.Expr("total_rewards_earned + ?", 1),
				"current_tier_id":      tier.ID,
			}).Error; err != nil {
			return fmt.Errorf("failed to update stats counters: %w", err)
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to grant reward: %w", err)
	}

	if tier.RewardType == models.RewardTypeDiscountCode {
		discount, err := s.Discounts.GenerateDiscountCodeFromReward(tier.RewardValue, reward.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to mint reward discount code: %w", err)
		}
		if err := s.DB.Model(reward).Update("discount_code_id", discount.ID).Error; err != nil {
			return nil, fmt.Errorf("failed to link reward to discount code: %w", err)
		}
		reward.DiscountCodeID = &discount.ID
		reward.DiscountCode = discount
	}

	return reward, nil
}

// ClaimReward marks an unlocked, unclaimed reward as claimed. The update is
// conditional on ownership and claim state, so a repeat or foreign claim
// affects zero rows and returns (nil, nil).
func (s *rewardService) ClaimReward(rewardID uint, userID string) (*models.ReferralReward, error) {
	now := time.Now()
	var claimed *models.ReferralReward

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ReferralReward{}).
			Where("id = ? AND user_id = ? AND is_unlocked = ? AND is_claimed = ?",
				rewardID, userID, true, false).
			Updates(map[string]interface{}{
				"is_claimed": true,
				"claimed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to claim reward %d: %w", rewardID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.ReferralStats{}).
			Where("user_id = ?", userID).
			Update("total_rewards_claimed", gorm.Expr("total_rewards_claimed + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to update claim counter: %w", err)
		}

		var reward models.ReferralReward
		if err := tx.Preload("DiscountCode").First(&reward, rewardID).Error; err != nil {
			return fmt.Errorf("failed to reload reward %d: %w", rewardID, err)
		}
		claimed = &reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (s *rewardService) GetRewards(req request.GetRewardsRequest) ([]models.ReferralReward, int64, error) {
	var rewards []models.ReferralReward
	var count int64

	query := s.DB.Model(&models.ReferralReward{})
	query = request.ApplyGetRewardsRequest(req, query)

	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rewards: %w", err)
	}

	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Preload("Tier").Preload("DiscountCode").Find(&rewards).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch rewards: %w", err)
	}

	return rewards, count, nil
}
