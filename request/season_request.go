package request

import (
	"time"

	"gorm.io/gorm"
)

type CreateSeasonRequest struct {
	Name              string     `json:"name" binding:"required"`
	Slug              *string    `json:"slug"` // derived from name when omitted
	StartDate         time.Time  `json:"startDate" binding:"required"`
	EndDate           *time.Time `json:"endDate"`
	IsActive          *bool      `json:"isActive"`
	IsDefault         bool       `json:"isDefault"`
	CodePrefix        *string    `json:"codePrefix"`
	AllowSelfReferral *bool      `json:"allowSelfReferral"`
}

type UpdateSeasonRequest struct {
	Name              *string    `json:"name"`
	StartDate         *time.Time `json:"startDate"`
	EndDate           *time.Time `json:"endDate"`
	IsActive          *bool      `json:"isActive"`
	CodePrefix        *string    `json:"codePrefix"`
	AllowSelfReferral *bool      `json:"allowSelfReferral"`
}

type GetSeasonsRequest struct {
	ID                   *uint                `form:"id"`
	Slug                 *string              `form:"slug"`
	IsActive             *bool                `form:"isActive"`
	IsDefault            *bool                `form:"isDefault"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetSeasonsRequest(req GetSeasonsRequest, query *gorm.DB) *gorm.DB {
	if req.ID != nil {
		query = query.Where("referral_seasons.id = ?", *req.ID)
	}
	if req.Slug != nil {
		query = query.Where("referral_seasons.slug = ?", *req.Slug)
	}
	if req.IsActive != nil {
		query = query.Where("referral_seasons.is_active = ?", *req.IsActive)
	}
	if req.IsDefault != nil {
		query = query.Where("referral_seasons.is_default = ?", *req.IsDefault)
	}
	return query
}

type CreateTierRequest struct {
	Name              string  `json:"name" binding:"required"`
	ReferralsRequired int64   `json:"referralsRequired" binding:"required"`
	RewardType        string  `json:"rewardType" binding:"required"`
	RewardValue       *string `json:"rewardValue"`
	IsStackable       bool    `json:"isStackable"`
	SortOrder         int     `json:"sortOrder"`
	IsActive          *bool   `json:"isActive"`
}

type UpdateTierRequest struct {
	Name              *string `json:"name"`
	ReferralsRequired *int64  `json:"referralsRequired"`
	RewardType        *string `json:"rewardType"`
	RewardValue       *string `json:"rewardValue"`
	IsStackable       *bool   `json:"isStackable"`
	SortOrder         *int    `json:"sortOrder"`
	IsActive          *bool   `json:"isActive"`
}
