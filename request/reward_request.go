package request

import "gorm.io/gorm"

type GetRewardsRequest struct {
	ID                   *uint                `form:"id"`
	UserID               *string              `form:"userID"`
	TierID               *uint                `form:"tierID"`
	SeasonID             *uint                `form:"seasonID"`
	RewardType           *string              `form:"rewardType"`
	IsUnlocked           *bool                `form:"isUnlocked"`
	IsClaimed            *bool                `form:"isClaimed"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetRewardsRequest(req GetRewardsRequest, query *gorm.DB) *gorm.DB {
	if req.ID != nil {
		query = query.Where("referral_rewards.id = ?", *req.ID)
	}
	if req.UserID != nil {
		query = query.Where("referral_rewards.user_id = ?", *req.UserID)
	}
	if req.TierID != nil {
		query = query.Where("referral_rewards.tier_id = ?", *req.TierID)
	}
	if req.SeasonID != nil {
		query = query.Where("referral_rewards.season_id = ?", *req.SeasonID)
	}
	if req.RewardType != nil {
		query = query.Where("referral_rewards.reward_type = ?", *req.RewardType)
	}
	if req.IsUnlocked != nil {
		query = query.Where("referral_rewards.is_unlocked = ?", *req.IsUnlocked)
	}
	if req.IsClaimed != nil {
		query = query.Where("referral_rewards.is_claimed = ?", *req.IsClaimed)
	}
	return query
}
