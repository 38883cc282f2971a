package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Referral status machine: clicked -> signed_up -> converted. A clicked
// referral that never signs up may be moved to expired by the worker;
// converted and expired are terminal.
const (
	ReferralStatusClicked   = "clicked"
	ReferralStatusSignedUp  = "signed_up"
	ReferralStatusConverted = "converted"
	ReferralStatusExpired   = "expired"
)

const (
	RewardTypeDiscountCode = "discount_code"

	DiscountTypePercent   = "percent"
	DiscountTypeFixed     = "fixed"
	DiscountTypeFreeMonth = "free_month"
	DiscountTypeFreeTrial = "free_trial"

	DiscountAppliesToAll = "all"

	DiscountSourceAdmin    = "admin"
	DiscountSourceReferral = "referral"
)

type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"index" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// SeasonConfig is persisted inline with the season and governs code issuance
// and attribution policy for that season.
type SeasonConfig struct {
	CodePrefix        string `gorm:"size:20;default:'REF'" json:"codePrefix"`
	AllowSelfReferral bool   `gorm:"default:false" json:"allowSelfReferral"`
}

// ReferralSeason is a bounded competition window with its own tiers and codes.
// At most one season is the active default at any time.
type ReferralSeason struct {
	BaseModel
	Name      string       `gorm:"size:255;not null;index" json:"name"`
	Slug      string       `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	StartDate time.Time    `gorm:"not null;index" json:"startDate"`
	EndDate   *time.Time   `gorm:"index" json:"endDate"`
	IsActive  bool         `gorm:"default:true;index" json:"isActive"`
	IsDefault bool         `gorm:"default:false;index" json:"isDefault"`
	Config    SeasonConfig `gorm:"embedded;embeddedPrefix:config_" json:"config"`

	Tiers []ReferralTier `gorm:"foreignKey:SeasonID" json:"tiers,omitempty"`
}

func (ReferralSeason) TableName() string {
	return "referral_seasons"
}

// ReferralTier is a threshold of successful referrals that unlocks a reward.
// Tiers within a season are totally ordered by ReferralsRequired; SortOrder
// and ID keep ties stable.
type ReferralTier struct {
	BaseModel
	SeasonID          uint    `gorm:"not null;index" json:"seasonId"`
	Name              string  `gorm:"size:255;not null" json:"name"`
	ReferralsRequired int64   `gorm:"not null;index" json:"referralsRequired"`
	RewardType        string  `gorm:"size:50;not null" json:"rewardType"` // e.g. "discount_code", "credit"
	RewardValue       *string `gorm:"type:json" json:"rewardValue"`       // opaque payload interpreted at grant time
	IsStackable       bool    `gorm:"default:false" json:"isStackable"`
	SortOrder         int     `gorm:"default:0" json:"sortOrder"`
	IsActive          bool    `gorm:"default:true;index" json:"isActive"`

	Season *ReferralSeason `gorm:"foreignKey:SeasonID" json:"season,omitempty"`
}

func (ReferralTier) TableName() string {
	return "referral_tiers"
}

// ReferralCode is a user's shareable code for a season. One active code per
// (user, season); the code itself is globally unique after normalization.
type ReferralCode struct {
	BaseModel
	UserID      string     `gorm:"size:100;not null;index:idx_referral_codes_user_season" json:"userId"`
	Code        string     `gorm:"size:50;not null;uniqueIndex" json:"code"`
	SeasonID    uint       `gorm:"not null;index:idx_referral_codes_user_season" json:"seasonId"`
	Clicks      int64      `gorm:"default:0" json:"clicks"`
	LastClickAt *time.Time `gorm:"index" json:"lastClickAt"`
	IsActive    bool       `gorm:"default:true;index" json:"isActive"`

	Season *ReferralSeason `gorm:"foreignKey:SeasonID" json:"season,omitempty"`
}

func (ReferralCode) TableName() string {
	return "referral_codes"
}

// Referral is the attribution record. Click rows have no referred user yet;
// once signed up, at most one row exists per (referred_user_id, season_id) —
// the unique index ignores the NULLs on click rows.
type Referral struct {
	BaseModel
	ReferrerID     string     `gorm:"size:100;not null;index" json:"referrerId"`
	ReferralCodeID uint       `gorm:"not null;index" json:"referralCodeId"`
	SeasonID       uint       `gorm:"not null;uniqueIndex:idx_referrals_referred_season" json:"seasonId"`
	ReferredUserID *string    `gorm:"size:100;uniqueIndex:idx_referrals_referred_season" json:"referredUserId"`
	ReferredEmail  *string    `gorm:"size:255" json:"referredEmail"`
	Status         string     `gorm:"size:50;not null;default:'clicked';index" json:"status"`
	ClickDate      time.Time  `gorm:"not null;index" json:"clickDate"`
	SignupDate     *time.Time `json:"signupDate"`
	ConversionDate *time.Time `json:"conversionDate"`

	ConversionType    *string          `gorm:"size:50" json:"conversionType"` // e.g. "subscription", "lifetime"
	ConversionValue   *decimal.Decimal `gorm:"type:decimal(38,18)" json:"conversionValue"`
	ConversionProduct *string          `gorm:"size:100" json:"conversionProduct"`

	UTMSource   *string `gorm:"size:100" json:"utmSource"`
	UTMMedium   *string `gorm:"size:100" json:"utmMedium"`
	UTMCampaign *string `gorm:"size:100" json:"utmCampaign"`
	IPAddress   *string `gorm:"size:64" json:"ipAddress"`
	UserAgent   *string `gorm:"size:512" json:"userAgent"`

	ReferralCode *ReferralCode   `gorm:"foreignKey:ReferralCodeID" json:"referralCode,omitempty"`
	Season       *ReferralSeason `gorm:"foreignKey:SeasonID" json:"season,omitempty"`
}

func (Referral) TableName() string {
	return "referrals"
}

// ReferralStats is a derived cache, fully recomputed from the referral ledger
// on every update. Never treat it as a source of truth.
type ReferralStats struct {
	BaseModel
	UserID               string          `gorm:"size:100;not null;uniqueIndex" json:"userId"`
	TotalClicks          int64           `gorm:"default:0" json:"totalClicks"`
	TotalReferrals       int64           `gorm:"default:0" json:"totalReferrals"`
	SuccessfulReferrals  int64           `gorm:"default:0;index" json:"successfulReferrals"`
	PendingReferrals     int64           `gorm:"default:0" json:"pendingReferrals"`
	ExpiredReferrals     int64           `gorm:"default:0" json:"expiredReferrals"`
	TotalConversions     int64           `gorm:"default:0" json:"totalConversions"`
	TotalConversionValue decimal.Decimal `gorm:"type:decimal(38,18);default:0" json:"totalConversionValue"`
	TotalRewardsEarned   int64           `gorm:"default:0" json:"totalRewardsEarned"`
	TotalRewardsClaimed  int64           `gorm:"default:0" json:"totalRewardsClaimed"`
	CurrentTierID        *uint           `json:"currentTierId"`
	NextTierID           *uint           `json:"nextTierId"`
	ReferralsToNextTier  *int64          `json:"referralsToNextTier"`
}

func (ReferralStats) TableName() string {
	return "referral_stats"
}

// ReferralReward records a tier grant. The (user_id, tier_id) unique index is
// the backstop that makes check-then-grant safe under concurrency.
type ReferralReward struct {
	BaseModel
	UserID         string     `gorm:"size:100;not null;uniqueIndex:idx_referral_rewards_user_tier" json:"userId"`
	TierID         uint       `gorm:"not null;uniqueIndex:idx_referral_rewards_user_tier" json:"tierId"`
	SeasonID       uint       `gorm:"not null;index" json:"seasonId"`
	RewardType     string     `gorm:"size:50;not null" json:"rewardType"`
	RewardData     *string    `gorm:"type:json" json:"rewardData"` // snapshot of the tier's reward value at grant time
	DiscountCodeID *uint      `gorm:"index" json:"discountCodeId"`
	IsUnlocked     bool       `gorm:"default:false" json:"isUnlocked"`
	IsClaimed      bool       `gorm:"default:false" json:"isClaimed"`
	ClaimedAt      *time.Time `json:"claimedAt"`

	Tier         *ReferralTier `gorm:"foreignKey:TierID" json:"tier,omitempty"`
	DiscountCode *DiscountCode `gorm:"foreignKey:DiscountCodeID" json:"discountCode,omitempty"`
}

func (ReferralReward) TableName() string {
	return "referral_rewards"
}

type DiscountCode struct {
	BaseModel
	Code             string           `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Type             string           `gorm:"size:50;not null" json:"type"` // percent, fixed, free_month, free_trial
	Value            decimal.Decimal  `gorm:"type:decimal(38,18);not null" json:"value"`
	AppliesTo        string           `gorm:"size:50;not null;default:'all'" json:"appliesTo"`
	MaxUses          *int64           `json:"maxUses"` // nil for unlimited
	CurrentUses      int64            `gorm:"default:0" json:"currentUses"`
	MaxUsesPerUser   int64            `gorm:"default:1" json:"maxUsesPerUser"`
	MinPurchase      *decimal.Decimal `gorm:"type:decimal(38,18)" json:"minPurchase"`
	MaxDiscount      *decimal.Decimal `gorm:"type:decimal(38,18)" json:"maxDiscount"`
	Source           string           `gorm:"size:50;not null;default:'admin';index" json:"source"`
	ReferralRewardID *uint            `gorm:"index" json:"referralRewardId"`
	IsActive         bool             `gorm:"default:true;index" json:"isActive"`
	IsPublic         bool             `gorm:"default:false" json:"isPublic"`
	StartsAt         *time.Time       `gorm:"index" json:"startsAt"`
	ExpiresAt        *time.Time       `gorm:"index" json:"expiresAt"`
}

func (DiscountCode) TableName() string {
	return "discount_codes"
}

// DiscountCodeUsage is the append-only redemption ledger. It is both the audit
// trail and the source for the per-user usage-count check.
type DiscountCodeUsage struct {
	BaseModel
	Reference      string          `gorm:"size:36;not null;uniqueIndex" json:"reference"`
	DiscountCodeID uint            `gorm:"not null;index" json:"discountCodeId"`
	UserID         string          `gorm:"size:100;not null;index" json:"userId"`
	OrderID        string          `gorm:"size:100;not null;index" json:"orderId"`
	OriginalAmount decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"originalAmount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"discountAmount"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"finalAmount"`
	ProductType    string          `gorm:"size:50;not null" json:"productType"`
	ProductID      *string         `gorm:"size:100" json:"productId"`

	DiscountCode *DiscountCode `gorm:"foreignKey:DiscountCodeID" json:"discountCode,omitempty"`
}

func (DiscountCodeUsage) TableName() string {
	return "discount_code_usages"
}
