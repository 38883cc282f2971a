package request

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateDiscountCodeRequest struct {
	Code           *string          `json:"code"` // generated when omitted
	CodePrefix     *string          `json:"codePrefix"`
	Type           string           `json:"type" binding:"required"`
	Value          decimal.Decimal  `json:"value" binding:"required"`
	AppliesTo      *string          `json:"appliesTo"`
	MaxUses        *int64           `json:"maxUses"`
	MaxUsesPerUser *int64           `json:"maxUsesPerUser"`
	MinPurchase    *decimal.Decimal `json:"minPurchase"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount"`
	IsActive       *bool            `json:"isActive"`
	IsPublic       bool             `json:"isPublic"`
	StartsAt       *time.Time       `json:"startsAt"`
	ExpiresAt      *time.Time       `json:"expiresAt"`
}

type GetDiscountCodesRequest struct {
	ID                   *uint                `form:"id"`
	Code                 *string              `form:"code"`
	Type                 *string              `form:"type"`
	Source               *string              `form:"source"`
	ReferralRewardID     *uint                `form:"referralRewardID"`
	IsActive             *bool                `form:"isActive"`
	IsPublic             *bool                `form:"isPublic"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetDiscountCodesRequest(req GetDiscountCodesRequest, query *gorm.DB) *gorm.DB {
	if req.ID != nil {
		query = query.Where("discount_codes.id = ?", *req.ID)
	}
	if req.Code != nil {
		query = query.Where("discount_codes.code = ?", *req.Code)
	}
	if req.Type != nil {
		query = query.Where("discount_codes.type = ?", *req.Type)
	}
	if req.Source != nil {
		query = query.Where("discount_codes.source = ?", *req.Source)
	}
	if req.ReferralRewardID != nil {
		query = query.Where("discount_codes.referral_reward_id = ?", *req.ReferralRewardID)
	}
	if req.IsActive != nil {
		query = query.Where("discount_codes.is_active = ?", *req.IsActive)
	}
	if req.IsPublic != nil {
		query = query.Where("discount_codes.is_public = ?", *req.IsPublic)
	}
	return query
}

type GetUsagesRequest struct {
	DiscountCodeID       *uint                `form:"discountCodeID"`
	UserID               *string              `form:"userID"`
	OrderID              *string              `form:"orderID"`
	ProductType          *string              `form:"productType"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetUsagesRequest(req GetUsagesRequest, query *gorm.DB) *gorm.DB {
	if req.DiscountCodeID != nil {
		query = query.Where("discount_code_usages.discount_code_id = ?", *req.DiscountCodeID)
	}
	if req.UserID != nil {
		query = query.Where("discount_code_usages.user_id = ?", *req.UserID)
	}
	if req.OrderID != nil {
		query = query.Where("discount_code_usages.order_id = ?", *req.OrderID)
	}
	if req.ProductType != nil {
		query = query.Where("discount_code_usages.product_type = ?", *req.ProductType)
	}
	return query
}
