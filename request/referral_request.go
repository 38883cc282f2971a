package request

import "gorm.io/gorm"

// TrackClickRequest carries the attribution metadata captured on a click.
type TrackClickRequest struct {
	UTMSource   *string `json:"utmSource"`
	UTMMedium   *string `json:"utmMedium"`
	UTMCampaign *string `json:"utmCampaign"`
	IPAddress   *string `json:"ipAddress"`
	UserAgent   *string `json:"userAgent"`
}

type GetReferralCodesRequest struct {
	ID                   *uint                `form:"id"`
	UserID               *string              `form:"userID"`
	SeasonID             *uint                `form:"seasonID"`
	Code                 *string              `form:"code"`
	IsActive             *bool                `form:"isActive"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetReferralCodesRequest(req GetReferralCodesRequest, query *gorm.DB) *gorm.DB {
	if req.ID != nil {
		query = query.Where("referral_codes.id = ?", *req.ID)
	}
	if req.UserID != nil {
		query = query.Where("referral_codes.user_id = ?", *req.UserID)
	}
	if req.SeasonID != nil {
		query = query.Where("referral_codes.season_id = ?", *req.SeasonID)
	}
	if req.Code != nil {
		query = query.Where("referral_codes.code = ?", *req.Code)
	}
	if req.IsActive != nil {
		query = query.Where("referral_codes.is_active = ?", *req.IsActive)
	}
	return query
}

type GetReferralsRequest struct {
	ID                   *uint                `form:"id"`
	ReferrerID           *string              `form:"referrerID"`
	ReferredUserID       *string              `form:"referredUserID"`
	ReferralCodeID       *uint                `form:"referralCodeID"`
	SeasonID             *uint                `form:"seasonID"`
	Status               *string              `form:"status"`
	PaginationConditions PaginationConditions `form:"paginationConditions"`
}

func ApplyGetReferralsRequest(req GetReferralsRequest, query *gorm.DB) *gorm.DB {
	if req.ID != nil {
		query = query.Where("referrals.id = ?", *req.ID)
	}
	if req.ReferrerID != nil {
		query = query.Where("referrals.referrer_id = ?", *req.ReferrerID)
	}
	if req.ReferredUserID != nil {
		query = query.Where("referrals.referred_user_id = ?", *req.ReferredUserID)
	}
	if req.ReferralCodeID != nil {
		query = query.Where("referrals.referral_code_id = ?", *req.ReferralCodeID)
	}
	if req.SeasonID != nil {
		query = query.Where("referrals.season_id = ?", *req.SeasonID)
	}
	if req.Status != nil {
		query = query.Where("referrals.status = ?", *req.Status)
	}
	return query
}
