package serviceimpl

import (
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/request"
	"github.com/launchkit/go-rewards/service"
)

type seasonService struct {
	DB *gorm.DB
}

var _ service.SeasonService = &seasonService{}

func NewSeasonService(db *gorm.DB) *seasonService {
	return &seasonService{DB: db}
}

// CreateSeason creates a new season. When the season is marked default, any
// previous default is cleared in the same transaction.
func (s *seasonService) CreateSeason(req request.CreateSeasonRequest) (*models.ReferralSeason, error) {
	if req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return nil, errors.New("start date cannot be after end date")
	}

	seasonSlug := ""
	if req.Slug != nil && *req.Slug != "" {
		seasonSlug = slug.Make(*req.Slug)
	} else {
		seasonSlug = slug.Make(req.Name)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	season := &models.ReferralSeason{
		Name:      req.Name,
		Slug:      seasonSlug,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  isActive,
		IsDefault: req.IsDefault,
	}
	if req.CodePrefix != nil {
		season.Config.CodePrefix = *req.CodePrefix
	} else {
		season.Config.CodePrefix = "REF"
	}
	if req.AllowSelfReferral != nil {
		season.Config.AllowSelfReferral = *req.AllowSelfReferral
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if season.IsDefault {
			if err := tx.Model(&models.ReferralSeason{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return fmt.Errorf("failed to clear previous default season: %w", err)
			}
		}
		return tx.Create(season).Error
	})
	if err != nil {
		return nil, err
	}
	return season, nil
}

// UpdateSeason applies partial updates; only supplied fields are modified.
func (s *seasonService) UpdateSeason(id uint, req request.UpdateSeasonRequest) (*models.ReferralSeason, error) {
	var season models.ReferralSeason
	if err := s.DB.First(&season, id).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch season %d: %w", id, err)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.CodePrefix != nil {
		updates["config_code_prefix"] = *req.CodePrefix
	}
	if req.AllowSelfReferral != nil {
		updates["config_allow_self_referral"] = *req.AllowSelfReferral
	}

	if len(updates) > 0 {
		if err := s.DB.Model(&season).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update season %d: %w", id, err)
		}
	}
	return &season, nil
}

// SetDefaultSeason makes the given season the single default, clearing any
// previous default first.
func (s *seasonService) SetDefaultSeason(id uint) (*models.ReferralSeason, error) {
	var season models.ReferralSeason
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&season, id).Error; err != nil {
			return fmt.Errorf("failed to fetch season %d: %w", id, err)
		}
		if err := tx.Model(&models.ReferralSeason{}).Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to clear previous default season: %w", err)
		}
		if err := tx.Model(&season).Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to set default season: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// GetDefaultSeason returns the active default season, or (nil, nil) when no
// default is configured.
func (s *seasonService) GetDefaultSeason() (*models.ReferralSeason, error) {
	var season models.ReferralSeason
	if err := s.DB.Where("is_default = ? AND is_active = ?", true, true).
		First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch default season: %w", err)
	}
	return &season, nil
}

func (s *seasonService) GetSeasons(req request.GetSeasonsRequest) ([]models.ReferralSeason, int64, error) {
	var seasons []models.ReferralSeason
	var count int64

	query := s.DB.Model(&models.ReferralSeason{})
	query = request.ApplyGetSeasonsRequest(req, query)

	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count seasons: %w", err)
	}

	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Find(&seasons).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch seasons: %w", err)
	}

	return seasons, count, nil
}

func (s *seasonService) CreateTier(seasonID uint, req request.CreateTierRequest) (*models.ReferralTier, error) {
	var season models.ReferralSeason
	if err := s.DB.First(&season, seasonID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch season %d: %w", seasonID, err)
	}

	if req.ReferralsRequired <= 0 {
		return nil, errors.New("referrals required must be greater than 0")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	tier := &models.ReferralTier{
		SeasonID:          seasonID,
		Name:              req.Name,
		ReferralsRequired: req.ReferralsRequired,
		RewardType:        req.RewardType,
		RewardValue:       req.RewardValue,
		IsStackable:       req.IsStackable,
		SortOrder:         req.SortOrder,
		IsActive:          isActive,
	}

	if err := s.DB.Create(tier).Error; err != nil {
		return nil, fmt.Errorf("failed to create tier: %w", err)
	}
	return tier, nil
}

func (s *seasonService) UpdateTier(id uint, req request.UpdateTierRequest) (*models.ReferralTier, error) {
	var tier models.ReferralTier
	if err := s.DB.First(&tier, id).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tier %d: %w", id, err)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ReferralsRequired != nil {
		if *req.ReferralsRequired <= 0 {
			return nil, errors.New("referrals required must be greater than 0")
		}
		updates["referrals_required"] = *req.ReferralsRequired
	}
	if req.RewardType != nil {
		updates["reward_type"] = *req.RewardType
	}
	if req.RewardValue != nil {
		updates["reward_value"] = *req.RewardValue
	}
	if req.IsStackable != nil {
		updates["is_stackable"] = *req.IsStackable
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.DB.Model(&tier).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update tier %d: %w", id, err)
		}
	}
	return &tier, nil
}

// GetTiers returns the season's active tiers in ascending requirement order.
// SortOrder and ID keep ties stable.
func (s *seasonService) GetTiers(seasonID uint) ([]models.ReferralTier, error) {
	var tiers []models.ReferralTier
	if err := s.DB.Where("season_id = ? AND is_active = ?", seasonID, true).
		Order("referrals_required ASC, sort_order ASC, id ASC").
		Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tiers for season %d: %w", seasonID, err)
	}
	return tiers, nil
}
