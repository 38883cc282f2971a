package serviceimpl

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/request"
	"github.com/launchkit/go-rewards/service"
	"github.com/launchkit/go-rewards/utils"
)

type referralService struct {
	DB *gorm.DB
}

var _ service.ReferralService = &referralService{}

func NewReferralService(db *gorm.DB) *referralService {
	return &referralService{DB: db}
}

// resolveSeason returns the explicitly requested season, or the active
// default when none is given.
func (s *referralService) resolveSeason(seasonID *uint) (*models.ReferralSeason, error) {
	var season models.ReferralSeason
	if seasonID != nil {
		if err := s.DB.First(&season, *seasonID).Error; err != nil {
			return nil, fmt.Errorf("failed to fetch season %d: %w", *seasonID, err)
		}
		return &season, nil
	}
	if err := s.DB.Where("is_default = ? AND is_active = ?", true, true).
		First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no active default season configured")
		}
		return nil, fmt.Errorf("failed to fetch default season: %w", err)
	}
	return &season, nil
}

// GetOrCreateReferralCode returns the user's active code for the season,
// minting one on first request. The call is idempotent: a second call never
// creates a duplicate. Code generation retries up to codeGenerationAttempts
// times; the storage uniqueness constraint is the authoritative guard, so a
// duplicate-key insert is retried rather than surfaced.
func (s *referralService) GetOrCreateReferralCode(userID string, seasonID *uint) (*models.ReferralCode, error) {
	season, err := s.resolveSeason(seasonID)
	if err != nil {
		return nil, err
	}

	var existing models.ReferralCode
	err = s.DB.Where("user_id = ? AND season_id = ? AND is_active = ?", userID, season.ID, true).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch referral code: %w", err)
	}

	prefix := season.Config.CodePrefix
	if prefix == "" {
		prefix = "REF"
	}

	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := utils.GenerateCode(prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to generate referral code: %w", err)
		}

		referralCode := &models.ReferralCode{
			UserID:   userID,
			Code:     code,
			SeasonID: season.ID,
			IsActive: true,
		}
		err = s.DB.Create(referralCode).Error
		if err == nil {
			return referralCode, nil
		}
		if isDuplicateKeyError(err) {
			continue
		}
		return nil, fmt.Errorf("failed to create referral code: %w", err)
	}

	return nil, service.ErrCodeGenerationExhausted
}

// TrackClick records a click against a code. Unknown or inactive codes
// return (nil, nil) — an expected outcome, not an error. Every click creates
// a fresh Referral row; clicks are never deduplicated here.
func (s *referralService) TrackClick(code string, req request.TrackClickRequest) (*models.Referral, error) {
	normalized := utils.NormalizeCode(code)

	var referralCode models.ReferralCode
	if err := s.DB.Where("code = ? AND is_active = ?", normalized, true).
		First(&referralCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch referral code: %w", err)
	}

	now := time.Now()
	referral := &models.Referral{
		ReferrerID:     referralCode.UserID,
		ReferralCodeID: referralCode.ID,
		SeasonID:       referralCode.SeasonID,
		Status:         models.ReferralStatusClicked,
		ClickDate:      now,
		UTMSource:      req.UTMSource,
		UTMMedium:      req.UTMMedium,
		UTMCampaign:    req.UTMCampaign,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ReferralCode{}).Where("id = ?", referralCode.ID).
			Updates(map[string]interface{}{
				"clicks":        gorm.Expr("clicks + ?", 1),
				"last_click_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to increment clicks: %w", err)
		}
		if err := tx.Create(referral).Error; err != nil {
			return fmt.Errorf("failed to create referral: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return referral, nil
}

// RegisterReferral attributes a signup to a referral code. It enforces the
// season's self-referral policy and is idempotent on (referred user, season):
// a repeat call returns the existing row unchanged. When a pending click
// exists for the code, the most recent one is upgraded to signed_up;
// otherwise a new referral is created directly in signed_up.
func (s *referralService) RegisterReferral(code, referredUserID string, referredEmail *string) (*models.Referral, error) {
	normalized := utils.NormalizeCode(code)

	var referralCode models.ReferralCode
	if err := s.DB.Preload("Season").Where("code = ? AND is_active = ?", normalized, true).
		First(&referralCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch referral code: %w", err)
	}

	if referralCode.UserID == referredUserID {
		if referralCode.Season == nil || !referralCode.Season.Config.AllowSelfReferral {
			return nil, nil
		}
	}

	var existing models.Referral
	err := s.DB.Where("referred_user_id = ? AND season_id = ?", referredUserID, referralCode.SeasonID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch existing referral: %w", err)
	}

	now := time.Now()
	var referral *models.Referral

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Attribution-by-click: upgrade the most recent pending click for
		// this code if one exists.
		var pending models.Referral
		err := tx.Where("referral_code_id = ? AND status = ? AND referred_user_id IS NULL",
			referralCode.ID, models.ReferralStatusClicked).
			Order("click_date DESC, id DESC").
			First(&pending).Error
		if err == nil {
			if err := tx.Model(&pending).Updates(map[string]interface{}{
				"referred_user_id": referredUserID,
				"referred_email":   referredEmail,
				"status":           models.ReferralStatusSignedUp,
				"signup_date":      now,
			}).Error; err != nil {
				return fmt.Errorf("failed to upgrade pending referral: %w", err)
			}
			referral = &pending
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to fetch pending referral: %w", err)
		}

		referral = &models.Referral{
			ReferrerID:     referralCode.UserID,
			ReferralCodeID: referralCode.ID,
			SeasonID:       referralCode.SeasonID,
			ReferredUserID: &referredUserID,
			ReferredEmail:  referredEmail,
			Status:         models.ReferralStatusSignedUp,
			ClickDate:      now,
			SignupDate:     &now,
		}
		if err := tx.Create(referral).Error; err != nil {
			return fmt.Errorf("failed to create referral: %w", err)
		}
		return nil
	})
	if err != nil {
		// A concurrent registration may have won the unique index on
		// (referred_user_id, season_id); return that row instead.
		if isDuplicateKeyError(err) {
			var winner models.Referral
			if ferr := s.DB.Where("referred_user_id = ? AND season_id = ?", referredUserID, referralCode.SeasonID).
				First(&winner).Error; ferr == nil {
				return &winner, nil
			}
		}
		return nil, err
	}

	if err := s.DB.First(referral, referral.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload referral: %w", err)
	}
	return referral, nil
}

// ConvertReferral transitions a referral from signed_up to converted. The
// update is guarded on the current status, so a duplicate conversion event
// affects zero rows and returns (nil, nil) — already-converted is a no-op,
// not an error.
func (s *referralService) ConvertReferral(referralID uint, conversionType string, conversionValue decimal.Decimal, productID *string) (*models.Referral, error) {
	now := time.Now()

	res := s.DB.Model(&models.Referral{}).
		Where("id = ? AND status = ?", referralID, models.ReferralStatusSignedUp).
		Updates(map[string]interface{}{
			"status":             models.ReferralStatusConverted,
			"conversion_date":    now,
			"conversion_type":    conversionType,
			"conversion_value":   conversionValue,
			"conversion_product": productID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to convert referral %d: %w", referralID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var referral models.Referral
	if err := s.DB.First(&referral, referralID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload referral %d: %w", referralID, err)
	}
	return &referral, nil
}

func (s *referralService) GetReferralCodes(req request.GetReferralCodesRequest) ([]models.ReferralCode, int64, error) {
	var codes []models.ReferralCode
	var count int64

	query := s.DB.Model(&models.ReferralCode{})
	query = request.ApplyGetReferralCodesRequest(req, query)

	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count referral codes: %w", err)
	}

	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Find(&codes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch referral codes: %w", err)
	}

	return codes, count, nil
}

func (s *referralService) GetReferrals(req request.GetReferralsRequest) ([]models.Referral, int64, error) {
	var referrals []models.Referral
	var count int64

	query := s.DB.Model(&models.Referral{})
	query = request.ApplyGetReferralsRequest(req, query)

	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Preload("ReferralCode").Find(&referrals).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch referrals: %w", err)
	}

	return referrals, count, nil
}
