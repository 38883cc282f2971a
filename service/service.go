package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/request"
	"github.com/launchkit/go-rewards/response"
)

// ErrCodeGenerationExhausted is returned when a globally-unique shareable
// code could not be produced within the bounded attempt count.
var ErrCodeGenerationExhausted = errors.New("failed to generate a unique code within the attempt limit")

// SeasonService handles season and tier administration.
type SeasonService interface {
	CreateSeason(req request.CreateSeasonRequest) (*models.ReferralSeason, error)
	UpdateSeason(id uint, req request.UpdateSeasonRequest) (*models.ReferralSeason, error)
	SetDefaultSeason(id uint) (*models.ReferralSeason, error)
	GetDefaultSeason() (*models.ReferralSeason, error)
	GetSeasons(req request.GetSeasonsRequest) ([]models.ReferralSeason, int64, error)
	CreateTier(seasonID uint, req request.CreateTierRequest) (*models.ReferralTier, error)
	UpdateTier(id uint, req request.UpdateTierRequest) (*models.ReferralTier, error)
	GetTiers(seasonID uint) ([]models.ReferralTier, error)
}

// ReferralService owns code issuance, click attribution, signup attribution
// and conversion recording.
//
// TrackClick, RegisterReferral and ConvertReferral return (nil, nil) for the
// expected misses described in their doc comments; a non-nil error always
// means a storage failure.
type ReferralService interface {
	GetOrCreateReferralCode(userID string, seasonID *uint) (*models.ReferralCode, error)
	TrackClick(code string, req request.TrackClickRequest) (*models.Referral, error)
	RegisterReferral(code, referredUserID string, referredEmail *string) (*models.Referral, error)
	ConvertReferral(referralID uint, conversionType string, conversionValue decimal.Decimal, productID *string) (*models.Referral, error)
	GetReferralCodes(req request.GetReferralCodesRequest) ([]models.ReferralCode, int64, error)
	GetReferrals(req request.GetReferralsRequest) ([]models.Referral, int64, error)
}

// StatsService maintains the derived per-user aggregate row.
type StatsService interface {
	UpdateStats(userID string) (*models.ReferralStats, error)
	GetStats(userID string) (*models.ReferralStats, error)
	GetLeaderboard(seasonID *uint, limit int) ([]response.LeaderboardEntry, error)
}

// RewardService orchestrates tier-progress checks, grants and claims.
type RewardService interface {
	CheckTierProgress(userID string) ([]models.ReferralReward, error)
	GrantReward(userID string, tier models.ReferralTier) (*models.ReferralReward, error)
	ClaimReward(rewardID uint, userID string) (*models.ReferralReward, error)
	GetRewards(req request.GetRewardsRequest) ([]models.ReferralReward, int64, error)
}

// DiscountService validates and applies discount codes against purchases.
type DiscountService interface {
	CreateDiscountCode(req request.CreateDiscountCodeRequest) (*models.DiscountCode, error)
	GenerateDiscountCodeFromReward(rewardValue *string, rewardID uint) (*models.DiscountCode, error)
	ValidateDiscountCode(code, userID string, purchaseType *string, purchaseAmount *decimal.Decimal) (*response.DiscountValidation, error)
	ApplyDiscountCode(code, userID string, originalAmount decimal.Decimal, productType string, productID *string, orderID string) (*response.DiscountApplication, error)
	GetDiscountCodes(req request.GetDiscountCodesRequest) ([]models.DiscountCode, int64, error)
	GetUsages(req request.GetUsagesRequest) ([]models.DiscountCodeUsage, int64, error)
}

// Worker runs the time-based maintenance the request path never triggers:
// expiring clicked referrals that never signed up.
type Worker interface {
	ExpireStaleReferrals(window time.Duration) (int64, error)
	StartExpiryScheduler(interval, window time.Duration) error
	StopExpiryScheduler() error
}
